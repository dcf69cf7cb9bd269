package sitemap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Namespace is the sitemaps.org schema namespace. Documents may also omit it.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// ErrEmptyDocument is returned for bodies with no root element.
var ErrEmptyDocument = errors.New("sitemap has no root element")

// Document is a parsed sitemap.
type Document struct {
	// Locs holds the trimmed text of every <loc> element in document order.
	Locs []string
	// IsIndex is true when the document contains any <sitemap> element.
	IsIndex bool
}

// Parse decodes body as XML. Namespaced and bare documents are both accepted.
func Parse(body []byte) (Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Document{}, ErrEmptyDocument
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse sitemap xml: %w", err)
	}
	if xmlquery.FindOne(doc, "/*") == nil {
		return Document{}, ErrEmptyDocument
	}

	var out Document
	for _, loc := range xmlquery.Find(doc, "//*[local-name()='loc']") {
		if !inSitemapNamespace(loc) {
			continue
		}
		if text := strings.TrimSpace(loc.InnerText()); text != "" {
			out.Locs = append(out.Locs, text)
		}
	}
	for _, sm := range xmlquery.Find(doc, "//*[local-name()='sitemap']") {
		if inSitemapNamespace(sm) {
			out.IsIndex = true
			break
		}
	}
	return out, nil
}

// inSitemapNamespace accepts the sitemaps.org namespace or no namespace at all.
func inSitemapNamespace(n *xmlquery.Node) bool {
	return n.NamespaceURI == "" || n.NamespaceURI == Namespace
}
