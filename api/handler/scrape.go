package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prodscrape/api/middleware"
	"github.com/use-agent/prodscrape/extractor"
	"github.com/use-agent/prodscrape/metrics"
	"github.com/use-agent/prodscrape/models"
	"github.com/use-agent/prodscrape/scraper"
)

// Scrape returns a handler for POST /scrape.
//
// Orchestration flow:
//  1. Parse & validate request; no browser work on a bad request.
//  2. Driver.WithSession → launch, navigate, snapshot, close.
//  3. Extractor.Extract  → title, price, photos, final URL (inside the session).
//  4. Respond 200 {"data": ...} or 500 {"error": ...}.
func Scrape(driver *scraper.Driver, ext *extractor.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			req = models.ScrapeRequest{}
		}
		req.Normalize()
		if !req.Valid() {
			observe(string(models.KindInvalidRequest), start)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgURLRequired})
			return
		}

		// ── 2+3. Render and extract in one scoped session ───────────
		var product *models.ProductData
		err := driver.WithSession(c.Request.Context(), req.URL, func(doc *models.Document) error {
			var extractErr error
			product, extractErr = ext.Extract(*doc)
			return extractErr
		})

		// ── 4. Respond ──────────────────────────────────────────────
		if err != nil {
			respondError(c, req.URL, err, start)
			return
		}

		observe("success", start)
		c.JSON(http.StatusOK, models.ScrapeResponse{Data: product})
	}
}

// respondError logs the failure with its kind and cause, then writes the
// fixed 500 body. Codes and causes never reach the client.
func respondError(c *gin.Context, targetURL string, err error, start time.Time) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "unexpected failure", err)
	}

	kind := scrapeErr.Kind()
	attrs := []any{
		"kind", kind,
		"code", scrapeErr.Code,
		"url", targetURL,
		"request_id", middleware.GetRequestID(c),
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if scrapeErr.Err != nil {
		attrs = append(attrs, "error", scrapeErr.Err.Error())
	}

	switch kind {
	case models.KindMissingProductData:
		slog.Warn("product data not found", attrs...)
	case models.KindNavigationFailure:
		slog.Error("navigation failed", attrs...)
	default:
		slog.Error("scrape failed", attrs...)
	}

	observe(string(kind), start)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: scrapeErr.Message})
}

// observe records the request outcome and its end-to-end latency.
func observe(outcome string, start time.Time) {
	metrics.ScrapeRequests.WithLabelValues(outcome).Inc()
	metrics.ScrapeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
