package crawler

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxDescriptionRunes = 250

type parsedPage struct {
	title       string
	description string
	links       []string
}

// isHTML reports whether the response is an HTML document. When the server
// sent no content type the body is sniffed.
func isHTML(contentType string, body []byte) bool {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// parsePage pulls the title, description and in-scope links out of an HTML body.
func parsePage(body []byte, pageURL *url.URL, sc scope) (parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return parsedPage{}, fmt.Errorf("parse html: %w", err)
	}

	page := parsedPage{
		title:       strings.TrimSpace(doc.Find("title").First().Text()),
		description: truncateRunes(extractDescription(doc), maxDescriptionRunes),
	}

	local := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link, ok := sc.Admit(pageURL, href)
		if !ok {
			return
		}
		if _, dup := local[link]; dup {
			return
		}
		local[link] = struct{}{}
		page.links = append(page.links, link)
	})
	return page, nil
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
