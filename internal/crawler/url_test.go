package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveReference(t *testing.T) {
	t.Parallel()

	got, err := ResolveReference("https://www.thegospelcoalition.org/", "/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, "https://www.thegospelcoalition.org/sitemap.xml", got)

	_, err = ResolveReference("://bad", "/x")
	require.Error(t, err)
}

func TestSiteLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.thegospelcoalition.org", SiteLabel("https://WWW.TheGospelCoalition.org/article/a"))
	require.Equal(t, "unknown", SiteLabel("not a url"))
}
