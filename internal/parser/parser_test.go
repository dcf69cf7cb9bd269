package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func page(head, body string) []byte {
	return []byte(fmt.Sprintf("<html><head>%s</head><body>%s</body></html>", head, body))
}

func sentence(n int) string {
	return strings.TrimSpace(strings.Repeat("Grace upon grace. ", n))
}

func TestParseUsesMetaTags(t *testing.T) {
	t.Parallel()

	html := page(`
		<meta property="og:title" content="  Why the Resurrection Matters ">
		<meta property="article:author" content="Jane Doe">
		<meta property="article:section" content="Theology">
		<meta property="article:published_time" content="2024-03-31T08:00:00+00:00">
		<title>ignored</title>`,
		`<h1>Also ignored</h1><article><p>`+sentence(20)+`</p><script>var x = 1;</script><nav>Menu</nav></article>`)

	a, ok := New().Parse(html, "https://www.example.org/article/why-the-resurrection-matters/")
	require.True(t, ok)
	require.Equal(t, "Why the Resurrection Matters", a.Title)
	require.Equal(t, "Jane Doe", a.Author)
	require.Equal(t, "Theology", a.Section)
	require.Equal(t, "2024-03-31", a.Date)
	require.Equal(t, sentence(20), a.Content)
	require.NotContains(t, a.Content, "var x")
	require.NotContains(t, a.Content, "Menu")
}

func TestParseFallsBackToJSONLD(t *testing.T) {
	t.Parallel()

	html := page(`
		<script type="application/ld+json">{not json</script>
		<script type="application/ld+json">{"@type":"WebSite","headline":"Site"}</script>
		<script type="application/ld+json">[{"@type":"BreadcrumbList"},
			{"@type":"NewsArticle","headline":"From LD","author":[{"name":"Sam Storms"},"Other"],"datePublished":"2023-11-02T10:00:00Z"}]</script>`,
		`<div class="entry-content">`+sentence(15)+`</div>`)

	a, ok := New().Parse(html, "https://www.example.org/blogs/justin-taylor/from-ld/")
	require.True(t, ok)
	require.Equal(t, "From LD", a.Title)
	require.Equal(t, "Sam Storms", a.Author)
	require.Equal(t, "Blogs", a.Section)
	require.Equal(t, "2023-11-02", a.Date)
}

func TestParseJSONLDAuthorShapes(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		`{"name":"Object Author"}`: "Object Author",
		`"String Author"`:          "String Author",
		`["First","Second"]`:       "First",
		`[]`:                       "",
	}
	for raw, want := range tests {
		ld := page(`<script type="application/ld+json">{"@type":"Article","author":`+raw+`}</script>`,
			`<article>`+sentence(10)+`</article>`)
		a, ok := New().Parse(ld, "https://www.example.org/")
		require.True(t, ok, raw)
		if want == "" {
			want = "Unknown"
		}
		require.Equal(t, want, a.Author, raw)
	}
}

func TestParseMarkupFallbacks(t *testing.T) {
	t.Parallel()

	html := page(`<title>Page Title</title>`, `
		<nav aria-label="breadcrumb"><a href="/">Home</a><a href="/essays/">Essays</a><a href="#">This Essay</a></nav>
		<h1>  Heading <em>Title</em> </h1>
		<span class="byline"> By Tim Keller </span>
		<main>`+sentence(12)+`</main>`)

	a, ok := New().Parse(html, "https://www.example.org/article/2024/")
	require.True(t, ok)
	require.Equal(t, "Heading Title", a.Title)
	require.Equal(t, "By Tim Keller", a.Author)
	require.Equal(t, "Essays", a.Section)
	require.Empty(t, a.Date)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	a, ok := New().Parse(page("", "<article>"+sentence(8)+"</article>"), "https://www.example.org/")
	require.True(t, ok)
	require.Equal(t, "Untitled", a.Title)
	require.Equal(t, "Unknown", a.Author)
	require.Equal(t, "General", a.Section)
	require.Empty(t, a.Date)
}

func TestParseSectionFromURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"https://x.org/article/2021/05/word-of-god/": "Word Of God",
		"https://x.org/the-gospel-coalition-blog/":   "The Gospel Coalition Blog",
		"https://x.org/essay/some-essay/":            "Essay",
		"https://x.org/":                             "",
		"https://x.org/article/12/":                  "",
		"https://x.org/topics/?q=1":                  "Topics",
	}
	for in, want := range tests {
		require.Equal(t, want, sectionFromURL(in), in)
	}
}

func TestParseRejectionBoundary(t *testing.T) {
	t.Parallel()

	_, ok := New().Parse(page("", "<article>"+strings.Repeat("a", MinContentLength-1)+"</article>"), "https://x.org/")
	require.False(t, ok)

	a, ok := New().Parse(page("", "<article>"+strings.Repeat("a", MinContentLength)+"</article>"), "https://x.org/")
	require.True(t, ok)
	require.Len(t, a.Content, MinContentLength)

	_, ok = New().Parse(page("<title>Only a title</title>", "<p>no content container</p>"), "https://x.org/")
	require.False(t, ok)
}

func TestParsePrefersLongBodyCandidate(t *testing.T) {
	t.Parallel()

	short := sentence(7)
	long := sentence(20)
	html := page("", `<article>`+short+`</article><div class="entry-content">`+long+`</div>`)

	a, ok := New().Parse(html, "https://x.org/")
	require.True(t, ok)
	require.Equal(t, long, a.Content)
}

func TestParseKeepsLastCandidateWhenAllShort(t *testing.T) {
	t.Parallel()

	first := sentence(7)
	last := "Main text. " + sentence(8)
	html := page("", `<article>`+first+`</article><main>`+last+`</main>`)

	a, ok := New().Parse(html, "https://x.org/")
	require.True(t, ok)
	require.Equal(t, last, a.Content)
}
