package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/models"
	"github.com/ysmood/gson"
)

// lifecycleEvents maps readiness conditions to CDP page lifecycle events.
var lifecycleEvents = map[string]proto.PageLifecycleEventName{
	config.WaitDOMContentLoaded: proto.PageLifecycleEventNameDOMContentLoaded,
	config.WaitLoad:             proto.PageLifecycleEventNameLoad,
	config.WaitNetworkIdle:      proto.PageLifecycleEventNameNetworkIdle,
}

// rodLauncher starts a dedicated Chromium process per session.
type rodLauncher struct {
	browserCfg config.BrowserConfig
	renderCfg  config.RenderConfig
	bin        string
	policy     *blockPolicy
}

func newRodLauncher(browserCfg config.BrowserConfig, renderCfg config.RenderConfig, bin string) *rodLauncher {
	return &rodLauncher{
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		bin:        bin,
		policy:     newBlockPolicy(renderCfg.BlockResources, renderCfg.BlockedResourceTypes, renderCfg.BlockAds),
	}
}

func (l *rodLauncher) Name() string { return "rod" }

// Launch starts Chromium, connects over CDP and opens a single page in a
// fresh incognito context.
func (l *rodLauncher) Launch(ctx context.Context) (Session, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless).
		NoSandbox(l.browserCfg.NoSandbox).
		Leakless(false)

	if l.bin != "" {
		ln = ln.Bin(l.bin)
	}
	if l.browserCfg.Proxy != "" {
		ln = ln.Proxy(l.browserCfg.Proxy)
	}

	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("no-first-run"))

	s := &rodSession{cfg: l.renderCfg, policy: l.policy, launcher: ln}

	controlURL, err := ln.Launch()
	if err != nil {
		ln.Kill()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.browser = nil
		s.abort()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	incognito, err := s.browser.Incognito()
	if err != nil {
		s.abort()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to create browser context", err)
	}

	s.page, err = incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.abort()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}

	if err := s.configure(); err != nil {
		s.abort()
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to configure page", err)
	}

	return s, nil
}

// rodSession is one Chromium process with a single page.
type rodSession struct {
	cfg      config.RenderConfig
	policy   *blockPolicy
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

// configure applies user agent, viewport, headers, stealth and resource
// blocking. All of it must happen before navigation to take effect.
func (s *rodSession) configure() error {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.cfg.UserAgent,
		AcceptLanguage: s.cfg.Locale,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if headers := extraHeaders(s.cfg); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(headers),
		}).Call(s.page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}

	if s.cfg.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err,
			)
		}
	}

	s.router = setupHijack(s.page, s.policy)
	return nil
}

// Open navigates and snapshots the page. The lifecycle waiter is created
// before Navigate so the event cannot be missed.
func (s *rodSession) Open(ctx context.Context, targetURL string) (*models.Document, error) {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	p := s.page.Context(navCtx)

	event, ok := lifecycleEvents[s.cfg.WaitUntil]
	if !ok {
		event = proto.PageLifecycleEventNameDOMContentLoaded
	}
	wait := p.WaitNavigation(event)

	if err := p.Navigate(targetURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	wait()
	if err := navCtx.Err(); err != nil {
		return nil, categorizeError(err, "page did not become ready")
	}

	var status int
	if res, err := p.Eval(navigationStatusJS); err == nil {
		status = res.Value.Int()
	}
	if status != 0 && (status < 200 || status >= 300) {
		return nil, statusError(status, targetURL)
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, evaluationError(err)
	}

	res, err := p.Eval(`() => window.location.href`)
	if err != nil {
		return nil, evaluationError(err)
	}
	finalURL := res.Value.Str()
	if finalURL == "" {
		finalURL = targetURL
	}

	return &models.Document{
		HTML:       rawHTML,
		URL:        finalURL,
		StatusCode: status,
	}, nil
}

// Close stops request interception, closes the browser and kills the
// process. Every step runs even if an earlier one fails.
func (s *rodSession) Close() error {
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return errors.Join(errs...)
}

// abort releases a session that never reached the caller.
func (s *rodSession) abort() {
	if err := s.Close(); err != nil {
		slog.Warn("cleanup after failed launch", "error", err)
	}
}

// setupHijack installs a request interceptor that aborts requests the
// policy rejects. Returns nil when there is nothing to block.
func setupHijack(page *rod.Page, policy *blockPolicy) *rod.HijackRouter {
	if policy == nil {
		return nil
	}

	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to block or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if policy.Blocks(string(ctx.Request.Type()), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// extraHeaders returns the optional Referer and Accept-Language headers.
func extraHeaders(cfg config.RenderConfig) map[string]string {
	headers := make(map[string]string, 2)
	if cfg.Referer != "" {
		headers["Referer"] = cfg.Referer
	}
	if cfg.Locale != "" {
		headers["Accept-Language"] = cfg.Locale
	}
	return headers
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func evaluationError(err error) *models.ScrapeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return categorizeError(err, "page evaluation did not complete")
	}
	return models.NewScrapeError(models.ErrCodeEvaluation, "failed to read rendered page", err)
}
