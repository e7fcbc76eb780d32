package decoder

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// Route is the decoded form of a "channel/receiver[:base64-memo]" string.
type Route struct {
	Channel  string
	Receiver string
	Memo     *Memo  // nil when the route has no memo
	RawMemo  string // base64 text as found in the route
}

// ParseRoute decodes a compound route string.
//
//	channel-1/orai1receiver              -> channel + receiver
//	channel-1/orai1receiver:CgVvcmFpMQ== -> channel + receiver + memo
//	orai1receiver                        -> receiver only
func ParseRoute(s string) (Route, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Route{}, errors.New("route is empty")
	}

	var r Route
	rest := s
	if i := strings.Index(rest, "/"); i >= 0 {
		r.Channel = rest[:i]
		rest = rest[i+1:]
		if r.Channel == "" {
			return Route{}, errors.Errorf("route %q has an empty channel", s)
		}
	}

	if i := strings.Index(rest, ":"); i >= 0 {
		r.Receiver = rest[:i]
		r.RawMemo = rest[i+1:]
	} else {
		r.Receiver = rest
	}
	if r.Receiver == "" {
		return Route{}, errors.Errorf("route %q has an empty receiver", s)
	}

	if r.RawMemo != "" {
		raw, err := decodeBase64Lenient(r.RawMemo)
		if err != nil {
			return Route{}, errors.Wrapf(err, "route %q memo is not base64", s)
		}
		memo, err := DecodeMemo(raw)
		if err != nil {
			return Route{}, errors.Wrapf(err, "route %q memo", s)
		}
		r.Memo = &memo
	}
	return r, nil
}

// String renders the route back into its compound form.
func (r Route) String() string {
	var sb strings.Builder
	if r.Channel != "" {
		sb.WriteString(r.Channel)
		sb.WriteByte('/')
	}
	sb.WriteString(r.Receiver)
	if r.Memo != nil {
		sb.WriteByte(':')
		sb.WriteString(base64.StdEncoding.EncodeToString(r.Memo.Encode()))
	}
	return sb.String()
}

// decodeBase64Lenient accepts standard and URL alphabets, padded or not.
func decodeBase64Lenient(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("invalid base64")
}
