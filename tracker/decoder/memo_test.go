package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestMemoRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		memo Memo
	}{
		{
			name: "bridge",
			memo: Memo{
				Kind:                MemoBridge,
				DestinationReceiver: "cosmos1receiver",
				DestinationChannel:  "channel-15",
				DestinationDenom:    "uatom",
			},
		},
		{
			name: "hook",
			memo: Memo{
				Kind:                MemoHook,
				DestinationReceiver: "orai1receiver",
				DestinationDenom:    "orai",
				HookPayload:         []byte(`{"swap":{}}`),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeMemo(tc.memo.Encode())
			require.NoError(t, err)
			assert.Equal(t, tc.memo, got)
			assert.Equal(t, tc.name, got.Kind.String())
		})
	}
}

func TestDecodeMemoErrors(t *testing.T) {
	_, err := DecodeMemo(nil)
	assert.ErrorIs(t, err, ErrEmptyMemo)

	t.Run("wrong wire type", func(t *testing.T) {
		b := protowire.AppendTag(nil, memoFieldChannel, protowire.VarintType)
		b = protowire.AppendVarint(b, 7)
		_, err := DecodeMemo(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wire type")
	})

	t.Run("truncated", func(t *testing.T) {
		b := Memo{DestinationReceiver: "orai1receiver"}.Encode()
		_, err := DecodeMemo(b[:len(b)-3])
		require.Error(t, err)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		b := protowire.AppendTag(nil, memoFieldDenom, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte{0xff, 0xfe})
		_, err := DecodeMemo(b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UTF-8")
	})
}

func TestDecodeMemoSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 300)
	b = append(b, Memo{DestinationChannel: "channel-13"}.Encode()...)

	m, err := DecodeMemo(b)
	require.NoError(t, err)
	assert.Equal(t, "channel-13", m.DestinationChannel)
	assert.Equal(t, MemoBridge, m.Kind)
}

func TestParseRoute(t *testing.T) {
	memo := Memo{DestinationReceiver: "cosmos1dest", DestinationChannel: "channel-15", DestinationDenom: "uatom"}
	withMemo := Route{Channel: "channel-1", Receiver: "orai1receiver", Memo: &memo}
	encoded := withMemo.String()

	cases := []struct {
		name    string
		in      string
		want    Route
		wantErr bool
	}{
		{name: "channel and receiver", in: "channel-1/orai1receiver", want: Route{Channel: "channel-1", Receiver: "orai1receiver"}},
		{name: "receiver only", in: "orai1receiver", want: Route{Receiver: "orai1receiver"}},
		{name: "empty", in: "  ", wantErr: true},
		{name: "empty channel", in: "/orai1receiver", wantErr: true},
		{name: "empty receiver", in: "channel-1/", wantErr: true},
		{name: "bad memo", in: "channel-1/orai1receiver:!!!", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRoute(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("memo", func(t *testing.T) {
		got, err := ParseRoute(encoded)
		require.NoError(t, err)
		require.NotNil(t, got.Memo)
		assert.Equal(t, memo, *got.Memo)
		assert.Equal(t, encoded, got.String())
	})
}
