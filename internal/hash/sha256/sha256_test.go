package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashMatchesKnownDigests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	h := New()
	for _, tc := range tests {
		got, err := h.Hash([]byte(tc.input))
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestHashDistinguishesRecords(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte(`{"name":"Fresh Bakes","metadata":{"analysisComplete":true}}`))
	require.NoError(t, err)
	b, err := h.Hash([]byte(`{"name":"Fresh Bakes","metadata":{"analysisComplete":false}}`))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Len(t, a, 64)
}
