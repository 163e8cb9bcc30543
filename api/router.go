package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prodscrape/api/handler"
	"github.com/use-agent/prodscrape/api/middleware"
	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/extractor"
	"github.com/use-agent/prodscrape/metrics"
	"github.com/use-agent/prodscrape/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain (global):
//
//	Recovery → RequestID → Logger → CORS
func NewRouter(driver *scraper.Driver, ext *extractor.Extractor, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/", handler.Root())
	r.GET("/health", handler.Health(driver, startTime))
	r.GET("/metrics", metrics.Handler())

	r.POST("/scrape", handler.Scrape(driver, ext))

	return r
}
