package cosmos

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func hexes(t *testing.T, hashes []string) [][]byte {
	t.Helper()
	out := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, mustHex(t, h))
	}
	return out
}
