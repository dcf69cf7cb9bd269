// Package parser turns article HTML into crawler.Article values.
package parser

import (
	"bytes"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/tgc-rag/internal/crawler"
)

const (
	// MinContentLength is the shortest body, in characters, accepted as an article.
	MinContentLength = 100
	// preferredBodyLength stops the body selector search early.
	preferredBodyLength = 200
	dateLength          = 10
)

const (
	defaultTitle   = "Untitled"
	defaultAuthor  = "Unknown"
	defaultSection = "General"
)

var (
	bodySelectors   = []string{"article", ".post-content", ".entry-content", ".article-body", "[class*=content]", "main"}
	authorSelectors = []string{".author", ".byline", "[rel=author]", ".post-author"}
)

const breadcrumbSelector = "nav[aria-label=breadcrumb], .breadcrumb, [class*=breadcrumb]"

// Parser extracts article fields with per-field fallback chains.
type Parser struct{}

// New constructs a Parser.
func New() *Parser {
	return &Parser{}
}

var _ crawler.Parser = (*Parser)(nil)

// Parse extracts an article from html. ok is false when the page is not
// HTML or its body text is shorter than MinContentLength.
func (p *Parser) Parse(html []byte, pageURL string) (crawler.Article, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return crawler.Article{}, false
	}
	ld := findJSONLD(doc)

	title := firstNonEmpty(
		metaProperty(doc, "og:title"),
		ld.str("headline"),
		selectionText(doc.Find("h1").First()),
		selectionText(doc.Find("title").First()),
	)
	author := firstNonEmpty(metaProperty(doc, "article:author"), ld.author())
	if author == "" {
		author = authorFromMarkup(doc)
	}
	section := firstNonEmpty(metaProperty(doc, "article:section"), sectionFromURL(pageURL))
	if section == "" {
		section = sectionFromBreadcrumb(doc)
	}
	date := truncateRunes(firstNonEmpty(metaProperty(doc, "article:published_time"), ld.str("datePublished")), dateLength)

	// extractBody mutates doc, so it runs after every metadata lookup.
	body := extractBody(doc)
	if utf8.RuneCountInString(body) < MinContentLength {
		return crawler.Article{}, false
	}

	return crawler.Article{
		URL:     pageURL,
		Title:   orDefault(title, defaultTitle),
		Author:  orDefault(author, defaultAuthor),
		Section: orDefault(section, defaultSection),
		Date:    date,
		Content: body,
	}, true
}

func extractBody(doc *goquery.Document) string {
	body := ""
	for _, sel := range bodySelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		el.Find("script, style, nav").Remove()
		body = selectionText(el)
		if utf8.RuneCountInString(body) > preferredBodyLength {
			break
		}
	}
	if body == "" {
		if article := doc.Find("article").First(); article.Length() > 0 {
			body = selectionText(article)
		}
	}
	return body
}

// metaProperty reads the first <meta property=...> tag. A present tag with an
// empty content attribute ends the lookup.
func metaProperty(doc *goquery.Document, property string) string {
	tag := doc.FindMatcher(goquery.Single(`meta[property="` + property + `"]`))
	content, _ := tag.Attr("content")
	return strings.TrimSpace(content)
}

func authorFromMarkup(doc *goquery.Document) string {
	for _, sel := range authorSelectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			return selectionText(el)
		}
	}
	return ""
}

// sectionFromURL title-cases the first path segment that is neither
// "article" nor numeric, e.g. /blogs/kevin-deyoung/... gives "Blogs".
func sectionFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if part == "" || part == "article" || isDigits(part) {
			continue
		}
		return cases.Title(language.English).String(strings.ReplaceAll(part, "-", " "))
	}
	return ""
}

func sectionFromBreadcrumb(doc *goquery.Document) string {
	nav := doc.Find(breadcrumbSelector).First()
	if nav.Length() == 0 {
		return ""
	}
	links := nav.Find("a")
	if links.Length() < 2 {
		return ""
	}
	return selectionText(links.Eq(links.Length() - 2))
}

// selectionText joins every descendant text node with spaces and collapses
// whitespace runs.
func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "#text":
				b.WriteString(child.Text())
				b.WriteByte(' ')
			case "#comment":
			default:
				walk(child)
			}
		})
	}
	walk(sel)
	return strings.Join(strings.Fields(b.String()), " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
