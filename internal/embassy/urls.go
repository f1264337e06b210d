package embassy

import (
	"fmt"
	"net/url"
	"strings"
)

// Default paths on WordPress embassy sites.
const (
	DefaultSitemapPath = "/post-sitemap.xml"
	DefaultRESTPath    = "/wp-json/wp/v2/posts"
)

// SitemapURL joins a website root with the post sitemap path.
func SitemapURL(website, path string) string {
	if path == "" {
		path = DefaultSitemapPath
	}
	return strings.TrimRight(website, "/") + "/" + strings.TrimLeft(path, "/")
}

// RESTListingURL builds the URL of one page of the posts collection. Only the
// link field is requested to keep responses small.
func RESTListingURL(website, path string, page, perPage int) string {
	if path == "" {
		path = DefaultRESTPath
	}
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	if perPage > 0 {
		q.Set("per_page", fmt.Sprint(perPage))
	}
	q.Set("_fields", "link")
	return strings.TrimRight(website, "/") + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()
}

// Host returns the lowercase host of rawURL, or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
