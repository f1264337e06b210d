// Package embassy defines the domain types shared across the scraper: countries
// and their embassy websites, queue jobs, extracted posts, and the parsers for
// sitemaps, WordPress REST listings, and post pages.
package embassy
