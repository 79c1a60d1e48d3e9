package harvest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Path", "https://example.com/Path"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"trims trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"empty path becomes root", "https://example.com", "https://example.com/"},
		{"keeps query", "https://example.com/a/?b=C&a=1", "https://example.com/a?b=C&a=1"},
		{"collapses repeated slashes", "https://example.com/a//", "https://example.com/a"},
		{"keeps port", "http://Example.com:8080/x/", "http://example.com:8080/x"},
		{"keeps encoded trailing slash", "https://a.com/a%2F", "https://a.com/a%2F"},
		{"trims slash after encoded one", "https://a.com/a%2F/", "https://a.com/a%2F"},
		{"keeps encoded space", "https://a.com/a%20b/", "https://a.com/a%20b"},
		{"unparseable returned as is", "http://[::1", "http://[::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestNormalizeURLEquivalence(t *testing.T) {
	t.Parallel()

	require.Equal(t, NormalizeURL("https://example.com/a"), NormalizeURL("https://Example.com/a/"))
}

func TestNormalizeURLIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://Example.com/a/",
		"https://example.com//",
		"https://example.com/a//b///",
		"https://a.com/a%2F/",
		"http://shop.example/products?id=3#top",
		"mailto:someone@example.com",
		"/relative/path/",
		"",
		"%zz",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		require.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func FuzzNormalizeURLIdempotent(f *testing.F) {
	for _, seed := range []string{"https://Example.com/a/", "http://x/y//#z", "ftp://a", "::"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := NormalizeURL(in)
		if twice := NormalizeURL(once); twice != once {
			t.Errorf("NormalizeURL not idempotent for %q: %q then %q", in, once, twice)
		}
	})
}

func TestParseSeed(t *testing.T) {
	t.Parallel()

	u, err := ParseSeed(" https://Shop.Example/ ")
	require.NoError(t, err)
	require.Equal(t, "shop.example", u.Host)
	require.Equal(t, "https://shop.example/", u.String())

	for _, bad := range []string{"", "not a url", "ftp://example.com", "https://", "/relative"} {
		_, err := ParseSeed(bad)
		require.Error(t, err, "seed %q", bad)
		require.True(t, errors.Is(err, ErrInvalidSeed), "seed %q", bad)
		var seedErr *InvalidSeedError
		require.ErrorAs(t, err, &seedErr)
	}
}
