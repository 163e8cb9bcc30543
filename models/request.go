package models

import "strings"

// ScrapeRequest is the payload for POST /scrape.
type ScrapeRequest struct {
	// URL is the product page to render. Required; no validation beyond
	// presence, malformed URLs surface as navigation failures.
	URL string `json:"url"`
}

// Normalize trims surrounding whitespace from the request fields.
func (r *ScrapeRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
}

// Valid reports whether the request carries the required fields.
func (r *ScrapeRequest) Valid() bool {
	return r.URL != ""
}
