package models

import "fmt"

// Error codes used in logs and internal error handling. The HTTP surface
// only exposes the message; codes stay server-side.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeBrowserLaunch  = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeTimeout        = "SCRAPE_TIMEOUT"
	ErrCodeEvaluation     = "EVALUATION_FAILED"
	ErrCodeMissingProduct = "MISSING_PRODUCT_DATA"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// Kind groups error codes into the failure classes a caller can act on.
type Kind string

const (
	KindInvalidRequest     Kind = "InvalidRequest"
	KindNavigationFailure  Kind = "NavigationFailure"
	KindMissingProductData Kind = "MissingProductData"
	KindInternal           Kind = "Internal"
)

// MsgURLRequired is the fixed message returned when the request has no URL.
const MsgURLRequired = "URL requise"

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Kind reports the failure class of the error code.
func (e *ScrapeError) Kind() Kind {
	switch e.Code {
	case ErrCodeInvalidRequest:
		return KindInvalidRequest
	case ErrCodeBrowserLaunch, ErrCodeNavigation, ErrCodeTimeout, ErrCodeEvaluation:
		return KindNavigationFailure
	case ErrCodeMissingProduct:
		return KindMissingProductData
	default:
		return KindInternal
	}
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
