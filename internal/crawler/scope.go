package crawler

import (
	"net/url"
	"path"
	"strings"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

// deniedExtensions lists file extensions that never hold a crawlable page.
var deniedExtensions = newExtensionDenylist(
	// archives
	".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".rar", ".7z",
	// styles and scripts
	".css", ".scss", ".less", ".js", ".mjs", ".map",
	// structured data
	".json", ".xml", ".rss", ".atom", ".csv", ".yaml", ".yml",
	// images
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".bmp", ".tif", ".tiff", ".avif",
	// audio
	".mp3", ".wav", ".ogg", ".oga", ".flac", ".aac", ".m4a",
	// video
	".mp4", ".m4v", ".webm", ".mov", ".avi", ".mkv", ".wmv",
)

type extensionDenylist map[string]struct{}

func newExtensionDenylist(exts ...string) extensionDenylist {
	d := make(extensionDenylist, len(exts))
	for _, ext := range exts {
		d[strings.ToLower(ext)] = struct{}{}
	}
	return d
}

// Denies reports whether the URL path ends in a denied extension.
func (d extensionDenylist) Denies(u *url.URL) bool {
	if u == nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	_, denied := d[ext]
	return denied
}

// scope decides which discovered links belong to the crawl.
type scope struct {
	host string
}

func newScope(seed *url.URL) scope {
	return scope{host: strings.ToLower(seed.Host)}
}

// Admit resolves href against base and returns the normalized absolute URL
// when it is an http(s) link on the seed host with a page-like extension.
func (s scope) Admit(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	target, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if !harvest.IsWebScheme(target.Scheme) {
		return "", false
	}
	if strings.ToLower(target.Host) != s.host {
		return "", false
	}
	if deniedExtensions.Denies(target) {
		return "", false
	}
	return harvest.NormalizeURL(target.String()), true
}
