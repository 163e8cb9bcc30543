package models

// ProductData is the data extracted from a single product page.
type ProductData struct {
	// Title is the trimmed product title. Never empty on success.
	Title string `json:"title"`

	// Price is the raw price text of the first matching price element,
	// or empty when no price element exists.
	Price string `json:"price"`

	// Photos holds absolute image URLs, deduplicated in first-seen order.
	Photos []string `json:"photos"`

	// ProductURL is the final page URL after redirects.
	ProductURL string `json:"product_url"`
}

// ScrapeResponse is the success body for POST /scrape.
type ScrapeResponse struct {
	Data *ProductData `json:"data"`
}

// ErrorResponse is the failure body for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	Engine         string `json:"engine"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}
