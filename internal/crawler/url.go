package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveReference joins a path such as "/sitemap.xml" onto an origin.
func ResolveReference(base, ref string) (string, error) {
	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}

// SiteLabel returns the lowercase host of a URL, or "unknown".
func SiteLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
