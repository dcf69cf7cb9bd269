package parser

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkedData is a decoded JSON-LD Article or NewsArticle object.
type linkedData map[string]any

func isArticleType(obj map[string]any) bool {
	t, _ := obj["@type"].(string)
	return t == "Article" || t == "NewsArticle"
}

// findJSONLD returns the first article object from the page's
// application/ld+json scripts. Scripts that fail to decode are skipped.
func findJSONLD(doc *goquery.Document) linkedData {
	var found linkedData
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}
		switch v := data.(type) {
		case map[string]any:
			if isArticleType(v) {
				found = v
				return false
			}
		case []any:
			for _, item := range v {
				if obj, ok := item.(map[string]any); ok && isArticleType(obj) {
					found = obj
					return false
				}
			}
		}
		return true
	})
	return found
}

func (ld linkedData) str(key string) string {
	s, _ := ld[key].(string)
	return s
}

// author accepts an object with a name, a plain string, or a list whose first
// entry is either.
func (ld linkedData) author() string {
	switch a := ld["author"].(type) {
	case map[string]any:
		name, _ := a["name"].(string)
		return name
	case string:
		return a
	case []any:
		if len(a) == 0 {
			return ""
		}
		switch first := a[0].(type) {
		case map[string]any:
			name, _ := first["name"].(string)
			return name
		case string:
			return first
		}
	}
	return ""
}
