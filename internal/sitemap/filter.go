package sitemap

import (
	"net/url"
	"strings"
)

// IncludePrefixes are the content sections kept by FilterContentURLs.
var IncludePrefixes = []string{
	"/article/",
	"/articles/",
	"/essays/",
	"/essay/",
	"/blogs/",
	"/blog/",
	"/commentary/",
	"/topics/",
}

// ExcludeSubstrings drop non-article pages that live under content sections.
var ExcludeSubstrings = []string{
	"/churches/",
	"/store/",
	"/donate/",
	"/courses/",
	"/course/",
	"/auth",
	"/login",
	"/register",
	"/page/",
	"/feed/",
	"/tag/",
	"/author/",
	"/?",
}

// FilterContentURLs keeps article-like URLs, deduplicated on the URL with its
// trailing slash trimmed. First-seen order and spelling are preserved.
func FilterContentURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		if !IsContentURL(raw) {
			continue
		}
		key := strings.TrimRight(raw, "/")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, raw)
	}
	return out
}

// IsContentURL applies the include and exclude rules to one URL.
func IsContentURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	included := false
	for _, prefix := range IncludePrefixes {
		if strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/") {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, ex := range ExcludeSubstrings {
		if strings.Contains(p, ex) {
			return false
		}
	}
	return true
}
