package server

import (
	"net/url"
	"strings"
)

// DocumentIDFromURL returns the last non-empty path segment of a Paperless
// document URL, e.g. ".../api/documents/123/" -> "123".
func DocumentIDFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return strings.TrimSpace(path)
}
