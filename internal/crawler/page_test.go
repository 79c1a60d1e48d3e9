package crawler

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	t.Parallel()

	pageURL, err := url.Parse("https://shop.example/products/")
	require.NoError(t, err)
	body := `<html><head>
		<title>  Fresh Bakes  </title>
		<meta name="description" content=" Daily bread and pastries. ">
		<meta property="og:description" content="ignored">
	</head><body>
		<a href="sourdough">Sourdough</a>
		<a href="/products/sourdough#top">Again</a>
		<a href="https://instagram.com/bakes">IG</a>
		<a href="/menu.pdf">Menu</a>
		<a>no href</a>
	</body></html>`

	page, err := parsePage([]byte(body), pageURL, newScope(pageURL))
	require.NoError(t, err)
	require.Equal(t, "Fresh Bakes", page.title)
	require.Equal(t, "Daily bread and pastries.", page.description)
	require.Equal(t, []string{
		"https://shop.example/products/sourdough",
		"https://shop.example/menu.pdf",
	}, page.links)
}

func TestParsePageDescriptionFallbacks(t *testing.T) {
	t.Parallel()

	pageURL, err := url.Parse("https://shop.example/")
	require.NoError(t, err)
	sc := newScope(pageURL)

	og := `<html><head><meta property="og:description" content="From open graph"></head><body></body></html>`
	page, err := parsePage([]byte(og), pageURL, sc)
	require.NoError(t, err)
	require.Equal(t, "From open graph", page.description)
	require.Empty(t, page.title)

	long := strings.Repeat("é", 400)
	page, err = parsePage([]byte(`<meta name="description" content="`+long+`">`), pageURL, sc)
	require.NoError(t, err)
	require.Len(t, []rune(page.description), maxDescriptionRunes)

	page, err = parsePage([]byte(`<p>nothing here</p>`), pageURL, sc)
	require.NoError(t, err)
	require.Empty(t, page.description)
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	require.True(t, isHTML("text/html; charset=utf-8", nil))
	require.True(t, isHTML("application/xhtml+xml", nil))
	require.True(t, isHTML("", []byte("<!DOCTYPE html><html><body>x</body></html>")))
	require.False(t, isHTML("application/json", []byte("{}")))
	require.False(t, isHTML("image/png", nil))
	require.False(t, isHTML("", []byte("plain words only")))
}
