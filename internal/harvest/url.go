package harvest

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL so equivalent forms collapse to one frontier entry.
// It drops the fragment, lowercases the host, and trims the trailing slash unless
// the path is exactly "/" (an empty path becomes "/"). Query and path casing are
// left alone.
// Unparseable input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	// All trailing slashes go so "/a//" and "/a" collapse to the same key.
	// Work on the escaped form: an encoded "%2F" is data, not a separator.
	if escaped := u.EscapedPath(); escaped != "/" && strings.HasSuffix(escaped, "/") {
		trimmed := strings.TrimRight(escaped, "/")
		if path, err := url.PathUnescape(trimmed); err == nil {
			u.Path = path
			u.RawPath = trimmed
		}
	}
	if u.Path == "" && u.Host != "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u.String()
}

// ParseSeed validates that raw is an absolute http(s) URL with a host and
// returns it normalized and parsed.
func ParseSeed(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &InvalidSeedError{Seed: raw, Reason: "empty"}
	}
	u, err := url.Parse(NormalizeURL(trimmed))
	if err != nil {
		return nil, &InvalidSeedError{Seed: raw, Reason: err.Error()}
	}
	if !IsWebScheme(u.Scheme) {
		return nil, &InvalidSeedError{Seed: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return nil, &InvalidSeedError{Seed: raw, Reason: "missing host"}
	}
	return u, nil
}

// IsWebScheme reports whether scheme is http or https.
func IsWebScheme(scheme string) bool {
	s := strings.ToLower(scheme)
	return s == "http" || s == "https"
}
