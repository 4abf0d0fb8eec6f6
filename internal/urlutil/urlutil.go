// Package urlutil resolves site-relative links against the public base URL.
package urlutil

import (
	"net/url"
	"strings"
)

// AbsoluteURL resolves maybeURL against base. Absolute http(s) links are
// returned as-is, root-relative paths are appended to base and anything else
// is joined with a separator. Blank input yields "".
func AbsoluteURL(maybeURL, base string) string {
	s := strings.TrimSpace(maybeURL)
	if s == "" {
		return ""
	}
	if hasHTTPScheme(s) {
		return s
	}

	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasPrefix(s, "/") {
		return base + s
	}
	return base + "/" + s
}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
