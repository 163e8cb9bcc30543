package models

// Document is a snapshot of a rendered page, taken once the readiness
// condition was met.
type Document struct {
	// HTML is the serialized DOM.
	HTML string

	// URL is the final page URL after redirects, not the requested one.
	URL string

	// StatusCode is the HTTP status of the main navigation, or 0 when the
	// backend could not observe it.
	StatusCode int
}
