package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prodscrape/models"
	"github.com/use-agent/prodscrape/scraper"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// LivenessMessage is the plain-text body of GET /.
const LivenessMessage = "Service de scraping Amazon actif"

// Root returns a handler for GET /.
func Root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, LivenessMessage)
	}
}

// Health returns a handler for GET /health.
//
// Sessions are per-request, so there is no pool to saturate; the status is
// always "healthy" while the process serves requests.
func Health(driver *scraper.Driver, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:         "healthy",
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			Engine:         driver.Engine(),
			ActiveSessions: driver.ActiveSessions(),
			Version:        Version,
		})
	}
}
