package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/prodscrape/api"
	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/extractor"
	"github.com/use-agent/prodscrape/metrics"
	"github.com/use-agent/prodscrape/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("prodscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Browser.Engine,
		"waitUntil", cfg.Render.WaitUntil,
	)

	// ── 3. Initialise render driver ─────────────────────────────────
	// No browser is started here: each request launches and closes its own.
	launcher, err := scraper.NewLauncher(cfg.Browser, cfg.Render)
	if err != nil {
		slog.Error("failed to initialise launcher", "error", err)
		os.Exit(1)
	}
	driver := scraper.NewDriver(launcher)

	// ── 4. Initialise extractor ─────────────────────────────────────
	ext, err := extractor.New(extractor.DefaultRules())
	if err != nil {
		slog.Error("failed to compile selector rules", "error", err)
		os.Exit(1)
	}

	// ── 5. Register metrics & setup router ──────────────────────────
	metrics.Register()
	startTime := time.Now()
	router := api.NewRouter(driver, ext, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if n := driver.ActiveSessions(); n > 0 {
		slog.Warn("sessions still open at exit", "count", n)
	}
	slog.Info("prodscrape stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
