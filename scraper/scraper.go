package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/metrics"
	"github.com/use-agent/prodscrape/models"
)

// Session is one isolated browsing context used for exactly one request.
type Session interface {
	// Open navigates to targetURL, waits for the readiness condition and
	// returns a snapshot of the rendered page.
	Open(ctx context.Context, targetURL string) (*models.Document, error)

	// Close releases every resource held by the session, including the
	// browser process.
	Close() error
}

// Launcher starts new sessions. A Launcher that fails part-way through
// setup must release whatever it already acquired before returning.
type Launcher interface {
	Name() string
	Launch(ctx context.Context) (Session, error)
}

// NewLauncher builds the launcher for the configured engine. The browser
// binary is resolved here, once, rather than on each launch.
func NewLauncher(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) (Launcher, error) {
	switch browserCfg.Engine {
	case "", "rod":
		return newRodLauncher(browserCfg, renderCfg, config.ResolveBrowserBin(browserCfg.BrowserBin)), nil
	case "chromedp":
		return newChromedpLauncher(browserCfg, renderCfg, config.ResolveBrowserBin(browserCfg.BrowserBin)), nil
	case "http":
		return newHTTPLauncher(browserCfg, renderCfg), nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want rod, chromedp or http)", browserCfg.Engine)
	}
}

// Driver owns the per-request session lifecycle. Every call launches its
// own session and tears it down before returning; nothing is shared or
// reused across calls. It is safe for concurrent use.
type Driver struct {
	launcher Launcher
	active   atomic.Int32
}

// NewDriver creates a Driver on top of the given launcher.
func NewDriver(l Launcher) *Driver {
	return &Driver{launcher: l}
}

// Engine returns the name of the underlying launcher.
func (d *Driver) Engine() string {
	return d.launcher.Name()
}

// ActiveSessions reports how many sessions are currently open.
func (d *Driver) ActiveSessions() int {
	return int(d.active.Load())
}

// Render opens targetURL in a fresh session and returns the page snapshot.
// The session is closed before Render returns.
func (d *Driver) Render(ctx context.Context, targetURL string) (*models.Document, error) {
	var doc *models.Document
	err := d.WithSession(ctx, targetURL, func(rendered *models.Document) error {
		doc = rendered
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// WithSession launches a session, renders targetURL and runs fn on the
// result. The session is closed exactly once on every path, including a
// panic inside fn. A close failure is logged and never replaces the
// returned error.
func (d *Driver) WithSession(ctx context.Context, targetURL string, fn func(*models.Document) error) (err error) {
	logger := slog.With("url", targetURL, "engine", d.launcher.Name())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected failure during scrape", "panic", r)
			err = models.NewScrapeError(models.ErrCodeInternal, "unexpected failure", fmt.Errorf("panic: %v", r))
		}
	}()

	sess, launchErr := d.launcher.Launch(ctx)
	if launchErr != nil {
		return wrapLaunchError(launchErr)
	}

	d.active.Add(1)
	metrics.ActiveSessions.Inc()
	metrics.SessionsLaunched.WithLabelValues(d.launcher.Name()).Inc()
	defer func() {
		d.release(sess, logger)
		d.active.Add(-1)
		metrics.ActiveSessions.Dec()
	}()

	doc, openErr := sess.Open(ctx, targetURL)
	if openErr != nil {
		return wrapNavigationError(openErr)
	}

	return fn(doc)
}

// release closes the session, swallowing and logging any fault.
func (d *Driver) release(sess Session, logger *slog.Logger) {
	name := d.launcher.Name()
	defer func() {
		if r := recover(); r != nil {
			metrics.TeardownFailures.WithLabelValues(name).Inc()
			logger.Warn("session teardown failed", "panic", r)
		}
	}()

	metrics.SessionsClosed.WithLabelValues(name).Inc()
	if err := sess.Close(); err != nil {
		metrics.TeardownFailures.WithLabelValues(name).Inc()
		logger.Warn("session teardown failed", "error", err)
	}
}

func wrapLaunchError(err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return categorizeError(err, "failed to launch browser")
	}
	return models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
}

func wrapNavigationError(err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return categorizeError(err, "navigation to target URL failed")
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can log the failure kind.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg+": timeout", err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// statusError reports a non-2xx terminal navigation.
func statusError(status int, targetURL string) *models.ScrapeError {
	return models.NewScrapeError(
		models.ErrCodeNavigation,
		fmt.Sprintf("navigation to target URL returned HTTP %d", status),
		fmt.Errorf("status %d for %s", status, targetURL),
	)
}

// navigationStatusJS reads the main document's HTTP status without CDP
// event listeners. Returns 0 when the browser does not expose it.
const navigationStatusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch(e) {}
	return 0;
}`
