// Package directory builds the country -> embassy website map from the
// usembassy.gov post sitemap and persists it as JSON.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/embassy-scraper/internal/embassy"
)

// DefaultIndexURL lists one page per embassy on the central site.
const DefaultIndexURL = "https://www.usembassy.gov/post-sitemap.xml"

const defaultConcurrency = 4

var embassyLink = regexp.MustCompile(`^https?://([^\s]*)\.(usmission|usembassy|usconsulate)`)

// Config controls discovery.
type Config struct {
	IndexURL    string
	Concurrency int
}

// Result is the outcome of a discovery pass.
type Result struct {
	Directory embassy.Directory
	// Pages are all embassy page URLs listed by the index sitemap.
	Pages []string
}

// Discoverer resolves embassy pages to country websites.
type Discoverer struct {
	fetcher embassy.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Discoverer.
func New(fetcher embassy.Fetcher, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.IndexURL == "" {
		cfg.IndexURL = DefaultIndexURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Discover fetches the index sitemap and every embassy page it lists. Pages
// that fail to load or carry no embassy link are skipped; only a failure to
// load the index or a canceled context is returned as an error. When two
// pages resolve to the same country the later page in the sitemap wins.
func (d *Discoverer) Discover(ctx context.Context) (Result, error) {
	resp, err := d.fetcher.Fetch(ctx, embassy.FetchRequest{URL: d.cfg.IndexURL})
	if err != nil {
		return Result{}, fmt.Errorf("fetch embassy index: %w", err)
	}
	sitemap, err := embassy.ParseSitemap(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("parse embassy index: %w", err)
	}
	pages := sitemap.Locations

	websites := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, page := range pages {
		g.Go(func() error {
			site, err := d.resolve(gctx, page)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger.Warn("embassy page skipped", zap.String("url", page), zap.Error(err))
				return nil
			}
			websites[i] = site
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("discover embassies: %w", err)
	}

	found := make(map[string]string)
	for i, page := range pages {
		name := CountryName(page)
		if websites[i] == "" || name == "" {
			continue
		}
		found[name] = websites[i]
	}
	d.logger.Info("embassy discovery finished",
		zap.Int("pages", len(pages)),
		zap.Int("countries", len(found)),
	)
	return Result{Directory: embassy.NewDirectory(found), Pages: pages}, nil
}

func (d *Discoverer) resolve(ctx context.Context, page string) (string, error) {
	resp, err := d.fetcher.Fetch(ctx, embassy.FetchRequest{URL: page})
	if err != nil {
		return "", fmt.Errorf("fetch embassy page: %w", err)
	}
	site, ok := FindWebsite(resp.Body)
	if !ok {
		return "", fmt.Errorf("no embassy link found")
	}
	return site, nil
}

// FindWebsite returns scheme://host of the first anchor on the page that
// points at an embassy, mission or consulate site outside www.
func FindWebsite(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	var site string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !IsEmbassyLink(href) {
			return true
		}
		site = SiteRoot(href)
		return false
	})
	return site, site != ""
}

// IsEmbassyLink reports whether href is an absolute http(s) link to an embassy
// site whose host does not start with "www".
func IsEmbassyLink(href string) bool {
	m := embassyLink.FindStringSubmatch(href)
	if m == nil {
		return false
	}
	rest := href[strings.Index(href, "://")+3:]
	return !strings.HasPrefix(rest, "www")
}

// SiteRoot keeps the first three slash-separated parts of a URL, which is
// scheme://host for absolute links.
func SiteRoot(href string) string {
	parts := strings.SplitN(href, "/", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return strings.Join(parts, "/")
}

// CountryName is the second-to-last slash-separated part of an embassy page
// URL, so https://www.usembassy.gov/france/ names "france".
func CountryName(pageURL string) string {
	parts := strings.Split(pageURL, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Missing lists the pages whose country is absent from dir.
func Missing(pages []string, dir embassy.Directory) []string {
	var missing []string
	for _, page := range pages {
		if _, ok := dir.Lookup(CountryName(page)); !ok {
			missing = append(missing, page)
		}
	}
	return missing
}

// Save writes dir as an indented JSON object, replacing path atomically.
func Save(path string, dir embassy.Directory) error {
	data, err := json.MarshalIndent(dir, "", "  ")
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create directory parent: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".directory-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write directory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close directory file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace directory file: %w", err)
	}
	return nil
}

// Load reads a directory written by Save (or any JSON object of
// country -> website).
func Load(path string) (embassy.Directory, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var dir embassy.Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("decode directory %s: %w", path, err)
	}
	return dir, nil
}
