// Package metrics holds the Prometheus collectors for scrape requests and
// browser session lifecycle.
package metrics

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScrapeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodscrape_scrape_requests_total",
			Help: "Scrape requests by outcome kind.",
		},
		[]string{"outcome"},
	)

	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prodscrape_scrape_duration_seconds",
			Help:    "End-to-end scrape latency by outcome kind.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"outcome"},
	)

	SessionsLaunched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodscrape_sessions_launched_total",
			Help: "Browser sessions launched by engine.",
		},
		[]string{"engine"},
	)

	SessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodscrape_sessions_closed_total",
			Help: "Browser sessions closed by engine.",
		},
		[]string{"engine"},
	)

	TeardownFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prodscrape_session_teardown_failures_total",
			Help: "Session close calls that returned an error or panicked.",
		},
		[]string{"engine"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prodscrape_active_sessions",
			Help: "Browser sessions currently open.",
		},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ScrapeRequests,
			ScrapeDuration,
			SessionsLaunched,
			SessionsClosed,
			TeardownFailures,
			ActiveSessions,
		)
	})
}

// Handler exposes the default registry for GET /metrics.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
