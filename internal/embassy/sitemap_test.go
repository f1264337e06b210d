package embassy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSitemapURLSet(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:image="http://www.google.com/schemas/sitemap-image/1.1">
  <url>
    <loc>https://fr.usembassy.gov/post-one/</loc>
    <lastmod>2023-07-04T10:00:00+00:00</lastmod>
    <image:image><image:loc>https://fr.usembassy.gov/img.jpg</image:loc></image:image>
  </url>
  <url><loc> https://fr.usembassy.gov/post-two/ </loc></url>
</urlset>`

	sm, err := ParseSitemap([]byte(body))
	require.NoError(t, err)
	require.False(t, sm.Index)
	require.Equal(t, []string{
		"https://fr.usembassy.gov/post-one/",
		"https://fr.usembassy.gov/post-two/",
	}, sm.Locations)
}

func TestParseSitemapIndex(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://fr.usembassy.gov/post-sitemap.xml</loc></sitemap>
  <sitemap><loc>https://fr.usembassy.gov/post-sitemap2.xml</loc></sitemap>
</sitemapindex>`

	sm, err := ParseSitemap([]byte(body))
	require.NoError(t, err)
	require.True(t, sm.Index)
	require.Len(t, sm.Locations, 2)
	require.Equal(t, "https://fr.usembassy.gov/post-sitemap2.xml", sm.Locations[1])
}

func TestParseSitemapEmpty(t *testing.T) {
	t.Parallel()

	_, err := ParseSitemap([]byte(`<urlset></urlset>`))
	require.ErrorIs(t, err, ErrEmptySitemap)
}

func TestParsePostListing(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("X-WP-TotalPages", "7")
	listing, err := ParsePostListing(
		[]byte(`[{"link":"https://fr.usembassy.gov/a/"},{"link":""},{"link":"https://fr.usembassy.gov/b/"}]`),
		headers,
	)
	require.NoError(t, err)
	require.Equal(t, 7, listing.TotalPages)
	require.Equal(t, []string{"https://fr.usembassy.gov/a/", "https://fr.usembassy.gov/b/"}, listing.Links)

	listing, err = ParsePostListing([]byte(`[]`), nil)
	require.NoError(t, err)
	require.Equal(t, 1, listing.TotalPages)
	require.Empty(t, listing.Links)

	_, err = ParsePostListing([]byte(`{"code":"rest_no_route"}`), nil)
	require.Error(t, err)
}
