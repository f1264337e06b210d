package embassy

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrEmptySitemap is returned when a sitemap carries no <loc> entries.
var ErrEmptySitemap = errors.New("sitemap has no entries")

// Sitemap is the parsed form of either a <urlset> or a <sitemapindex>.
type Sitemap struct {
	// Index is true for a <sitemapindex>, whose locations are child sitemaps.
	Index     bool
	Locations []string
}

// ParseSitemap extracts the <loc> values from a sitemap document. Image and
// video extensions nested inside <url> entries are ignored.
func ParseSitemap(body []byte) (Sitemap, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Sitemap{}, fmt.Errorf("parse sitemap: %w", err)
	}

	sm := Sitemap{}
	selector := "url > loc"
	if doc.Find("sitemapindex").Length() > 0 {
		sm.Index = true
		selector = "sitemap > loc"
	}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			sm.Locations = append(sm.Locations, loc)
		}
	})
	if len(sm.Locations) == 0 {
		// Some generators omit the <url> wrapper; fall back to any <loc>.
		doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
			if loc := strings.TrimSpace(s.Text()); loc != "" {
				sm.Locations = append(sm.Locations, loc)
			}
		})
	}
	if len(sm.Locations) == 0 {
		return Sitemap{}, ErrEmptySitemap
	}
	return sm, nil
}
