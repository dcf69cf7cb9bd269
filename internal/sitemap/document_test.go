package sitemap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLSet(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc> https://example.com/article/foo </loc></url>
	<url><loc>https://example.com/article/bar</loc></url>
</urlset>`))
	require.NoError(t, err)
	require.False(t, doc.IsIndex)
	require.Equal(t, []string{"https://example.com/article/foo", "https://example.com/article/bar"}, doc.Locs)
}

func TestParseIndex(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://example.com/sitemap-1.xml</loc></sitemap>
</sitemapindex>`))
	require.NoError(t, err)
	require.True(t, doc.IsIndex)
	require.Equal(t, []string{"https://example.com/sitemap-1.xml"}, doc.Locs)
}

func TestParseBareAndPrefixed(t *testing.T) {
	t.Parallel()

	bare, err := Parse([]byte(`<sitemapindex><sitemap><loc>https://example.com/a.xml</loc></sitemap></sitemapindex>`))
	require.NoError(t, err)
	require.True(t, bare.IsIndex)
	require.Len(t, bare.Locs, 1)

	prefixed, err := Parse([]byte(`<sm:urlset xmlns:sm="http://www.sitemaps.org/schemas/sitemap/0.9">
		<sm:url><sm:loc>https://example.com/article/x</sm:loc></sm:url></sm:urlset>`))
	require.NoError(t, err)
	require.False(t, prefixed.IsIndex)
	require.Equal(t, []string{"https://example.com/article/x"}, prefixed.Locs)
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("   "))
	require.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Parse([]byte(`<urlset><url><loc>https://example.com</loc></url>`))
	require.Error(t, err)
}
