package embassy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ListingSource selects how a country's posts are enumerated.
type ListingSource string

// Supported listing sources.
const (
	SourceSitemap ListingSource = "sitemap"
	SourceREST    ListingSource = "rest"
)

// ParseListingSource validates a configured listing source.
func ParseListingSource(raw string) (ListingSource, error) {
	switch ListingSource(strings.ToLower(strings.TrimSpace(raw))) {
	case SourceSitemap:
		return SourceSitemap, nil
	case SourceREST:
		return SourceREST, nil
	default:
		return "", fmt.Errorf("unknown listing source %q", raw)
	}
}

// JobKind distinguishes listing jobs, which fan out, from terminal post jobs.
type JobKind int

// Job kinds processed by the workers.
const (
	KindListing JobKind = iota
	KindPost
)

func (k JobKind) String() string {
	switch k {
	case KindListing:
		return "listing"
	case KindPost:
		return "post"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Country pairs a country slug with the root URL of its embassy website.
type Country struct {
	Name    string
	Website string
}

// Job is one unit of queued work.
type Job struct {
	Kind    JobKind
	Source  ListingSource
	Country Country
	// URL is the listing URL for listing jobs and the post URL for post jobs.
	URL string
	// Page is the 1-based REST page; zero for sitemap listings and posts.
	Page int
	// Order is the position of a post within its listing.
	Order int
}

// Post is the text extracted from one embassy post page.
type Post struct {
	URL   string
	Title string
	Body  string
}

// Render returns the file payload: the title line followed by the body text.
func (p Post) Render() []byte {
	return []byte(p.Title + "\n" + p.Body)
}

// Directory is the set of known embassy websites ordered by country name.
type Directory []Country

// NewDirectory builds a sorted Directory from a country -> website map.
func NewDirectory(websites map[string]string) Directory {
	dir := make(Directory, 0, len(websites))
	for name, site := range websites {
		dir = append(dir, Country{Name: name, Website: site})
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name < dir[j].Name })
	return dir
}

// Lookup returns the country with the given name.
func (d Directory) Lookup(name string) (Country, bool) {
	for _, c := range d {
		if c.Name == name {
			return c, true
		}
	}
	return Country{}, false
}

// Range returns the countries in [start, end). A non-positive end means "to the end".
func (d Directory) Range(start, end int) Directory {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > len(d) {
		end = len(d)
	}
	if start >= end {
		return Directory{}
	}
	return append(Directory(nil), d[start:end]...)
}

// Filter keeps the named countries, preserving directory order.
func (d Directory) Filter(names []string) Directory {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = struct{}{}
	}
	out := Directory{}
	for _, c := range d {
		if _, ok := want[c.Name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON encodes the directory as a {country: website} object.
func (d Directory) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(d))
	for _, c := range d {
		m[c.Name] = c.Website
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal directory: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes a {country: website} object.
func (d *Directory) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshal directory: %w", err)
	}
	*d = NewDirectory(m)
	return nil
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
