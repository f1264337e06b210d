package embassy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// totalPagesHeader is set by the WordPress REST API on collection responses.
const totalPagesHeader = "X-WP-TotalPages"

// PostListing is one page of the WordPress posts collection.
type PostListing struct {
	Links      []string
	TotalPages int
}

type restPost struct {
	Link string `json:"link"`
}

// ParsePostListing decodes a /wp-json/wp/v2/posts page. A missing or malformed
// total pages header is treated as a single page.
func ParsePostListing(body []byte, headers http.Header) (PostListing, error) {
	var posts []restPost
	if err := json.Unmarshal(body, &posts); err != nil {
		return PostListing{}, fmt.Errorf("decode post listing: %w", err)
	}
	listing := PostListing{TotalPages: 1}
	for _, p := range posts {
		if link := strings.TrimSpace(p.Link); link != "" {
			listing.Links = append(listing.Links, link)
		}
	}
	if headers != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(headers.Get(totalPagesHeader))); err == nil && n > 0 {
			listing.TotalPages = n
		}
	}
	return listing, nil
}
