package decoder

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// MemoKind distinguishes the two memo layouts carried inside transfer payloads.
type MemoKind int

const (
	// MemoBridge carries destination receiver, channel and denom.
	MemoBridge MemoKind = iota
	// MemoHook carries the same three strings plus an opaque hook payload.
	MemoHook
)

func (k MemoKind) String() string {
	if k == MemoHook {
		return "hook"
	}
	return "bridge"
}

// Memo field numbers. Field 4 only exists in hook memos.
const (
	memoFieldReceiver protowire.Number = 1
	memoFieldChannel  protowire.Number = 2
	memoFieldDenom    protowire.Number = 3
	memoFieldHook     protowire.Number = 4
)

var ErrEmptyMemo = errors.New("memo is empty")

// Memo is the decoded destination of a transfer.
type Memo struct {
	Kind                MemoKind
	DestinationReceiver string
	DestinationChannel  string
	DestinationDenom    string
	HookPayload         []byte
}

// DecodeMemo decodes a protobuf-encoded memo. Unknown fields are skipped; a known
// field with the wrong wire type, a truncated field, or a string that is not valid
// UTF-8 is an error.
func DecodeMemo(b []byte) (Memo, error) {
	if len(b) == 0 {
		return Memo{}, ErrEmptyMemo
	}

	var m Memo
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Memo{}, errors.Wrap(protowire.ParseError(n), "memo tag")
		}
		b = b[n:]

		known := num >= memoFieldReceiver && num <= memoFieldHook
		if !known {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Memo{}, errors.Wrapf(protowire.ParseError(n), "memo field %d", num)
			}
			b = b[n:]
			continue
		}
		if typ != protowire.BytesType {
			return Memo{}, errors.Errorf("memo field %d has wire type %d, want bytes", num, typ)
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return Memo{}, errors.Wrapf(protowire.ParseError(n), "memo field %d", num)
		}
		b = b[n:]

		if num == memoFieldHook {
			m.Kind = MemoHook
			m.HookPayload = append([]byte(nil), v...)
			continue
		}
		if !utf8.Valid(v) {
			return Memo{}, errors.Errorf("memo field %d is not valid UTF-8", num)
		}
		switch num {
		case memoFieldReceiver:
			m.DestinationReceiver = string(v)
		case memoFieldChannel:
			m.DestinationChannel = string(v)
		case memoFieldDenom:
			m.DestinationDenom = string(v)
		}
	}
	return m, nil
}

// Encode returns the protobuf encoding of m. Empty strings are omitted.
func (m Memo) Encode() []byte {
	var b []byte
	appendString := func(num protowire.Number, s string) {
		if s == "" {
			return
		}
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	appendString(memoFieldReceiver, m.DestinationReceiver)
	appendString(memoFieldChannel, m.DestinationChannel)
	appendString(memoFieldDenom, m.DestinationDenom)
	if m.Kind == MemoHook {
		b = protowire.AppendTag(b, memoFieldHook, protowire.BytesType)
		b = protowire.AppendBytes(b, m.HookPayload)
	}
	return b
}
