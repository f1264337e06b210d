package embassy

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extraction failures.
var (
	ErrNoTitle   = errors.New("post title not found")
	ErrNoContent = errors.New("post content not found")
)

// asciiPunctuation matches the punctuation characters stripped from titles.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ExtractPost pulls the title and body text out of an embassy post page.
//
// The title is the breadcrumb h1. The body is built from the paragraphs that
// follow the first div of the article's entry content; byline paragraphs and
// paragraphs carrying attributes other than class are skipped.
func ExtractPost(rawURL string, body []byte) (Post, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Post{}, fmt.Errorf("parse post html: %w", err)
	}

	title := strings.TrimSpace(doc.Find(".mo-breadcrumbs").First().Find("h1").First().Text())
	title = StripPunctuation(title)
	if strings.TrimSpace(title) == "" {
		return Post{}, ErrNoTitle
	}

	content := doc.Find(".main").First().Find("article").First().Find(".entry-content").First()
	anchor := content.Find("div").First()
	if anchor.Length() == 0 {
		return Post{}, ErrNoContent
	}

	var sb strings.Builder
	anchor.NextAll().Each(func(_ int, s *goquery.Selection) {
		if !s.Is("p") || !keepParagraph(s) {
			return
		}
		sb.WriteString(s.Text())
		sb.WriteByte(' ')
	})

	return Post{URL: rawURL, Title: title, Body: sb.String()}, nil
}

func keepParagraph(s *goquery.Selection) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	if len(s.Nodes[0].Attr) == 0 {
		return true
	}
	if _, ok := s.Attr("class"); !ok {
		return false
	}
	return !s.HasClass("byline")
}

// StripPunctuation removes ASCII punctuation, leaving letters, digits, and spaces.
func StripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, s)
}
