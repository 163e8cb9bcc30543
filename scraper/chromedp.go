package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/models"
)

// chromedpLauncher starts a dedicated Chrome process per session through a
// chromedp exec allocator.
type chromedpLauncher struct {
	browserCfg config.BrowserConfig
	renderCfg  config.RenderConfig
	bin        string
	policy     *blockPolicy
}

func newChromedpLauncher(browserCfg config.BrowserConfig, renderCfg config.RenderConfig, bin string) *chromedpLauncher {
	return &chromedpLauncher{
		browserCfg: browserCfg,
		renderCfg:  renderCfg,
		bin:        bin,
		policy:     newBlockPolicy(renderCfg.BlockResources, renderCfg.BlockedResourceTypes, renderCfg.BlockAds),
	}
}

func (l *chromedpLauncher) Name() string { return "chromedp" }

func (l *chromedpLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.browserCfg.Headless),
		chromedp.Flag("no-sandbox", l.browserCfg.NoSandbox),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserAgent(l.renderCfg.UserAgent),
		chromedp.WindowSize(l.renderCfg.ViewportWidth, l.renderCfg.ViewportHeight),
	)
	if l.bin != "" {
		opts = append(opts, chromedp.ExecPath(l.bin))
	}
	if l.browserCfg.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(l.browserCfg.Proxy))
	}
	return opts
}

// Launch starts the browser and prepares its first tab. The browser lives
// on a context detached from ctx so that only Close tears it down.
func (l *chromedpLauncher) Launch(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	s := &chromedpSession{
		cfg:         l.renderCfg,
		policy:      l.policy,
		allocCancel: allocCancel,
		taskCtx:     taskCtx,
		taskCancel:  taskCancel,
	}

	stop := context.AfterFunc(ctx, taskCancel)
	err := chromedp.Run(taskCtx, s.setupActions()...)
	stop()
	if err != nil {
		if cerr := s.Close(); cerr != nil {
			slog.Warn("cleanup after failed launch", "error", cerr)
		}
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "failed to launch browser")
		}
		return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}

	if l.policy != nil {
		s.interceptRequests()
	}
	return s, nil
}

// chromedpSession is one Chrome process with a single tab.
type chromedpSession struct {
	cfg         config.RenderConfig
	policy      *blockPolicy
	allocCancel context.CancelFunc
	taskCtx     context.Context
	taskCancel  context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

func (s *chromedpSession) setupActions() []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		chromedp.EmulateViewport(int64(s.cfg.ViewportWidth), int64(s.cfg.ViewportHeight)),
		page.SetLifecycleEventsEnabled(true),
	}
	if headers := extraHeaders(s.cfg); len(headers) > 0 {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}
	if s.cfg.Stealth {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
			return err
		}))
	}
	if s.policy != nil {
		actions = append(actions, fetch.Enable())
	}
	return actions
}

// interceptRequests answers every paused request, failing the ones the
// policy rejects. Replies run on their own goroutine because the listener
// must not block the event loop.
func (s *chromedpSession) interceptRequests() {
	chromedp.ListenTarget(s.taskCtx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(s.taskCtx)
			if c == nil || c.Target == nil {
				return
			}
			execCtx := cdp.WithExecutor(s.taskCtx, c.Target)

			var err error
			if s.policy.Blocks(string(e.ResourceType), e.Request.URL) {
				err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
			} else {
				err = fetch.ContinueRequest(e.RequestID).Do(execCtx)
			}
			if err != nil {
				slog.Debug("chromedp intercept reply failed", "url", e.Request.URL, "error", err)
			}
		}()
	})
}

// readyEvents maps readiness conditions to CDP page lifecycle event names.
var readyEvents = map[string]string{
	config.WaitDOMContentLoaded: "DOMContentLoaded",
	config.WaitLoad:             "load",
	config.WaitNetworkIdle:      "networkIdle",
}

// Open navigates and snapshots the page. Navigation is issued as a raw
// Page.navigate so the readiness condition alone decides when the page is
// ready; the lifecycle listener is attached before navigation starts.
func (s *chromedpSession) Open(ctx context.Context, targetURL string) (*models.Document, error) {
	navCtx, cancel := context.WithTimeout(s.taskCtx, s.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	event, ok := readyEvents[s.cfg.WaitUntil]
	if !ok {
		event = readyEvents[config.WaitDOMContentLoaded]
	}
	waiter := newLifecycleWaiter(event)
	chromedp.ListenTarget(navCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			waiter.observe(e.Name, string(e.FrameID))
		}
	})

	if err := chromedp.Run(navCtx, navigate(targetURL)); err != nil {
		if ctxErr := navCtx.Err(); ctxErr != nil {
			return nil, categorizeError(ctxErr, "navigation to target URL failed")
		}
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	select {
	case <-waiter.Done():
	case <-navCtx.Done():
		return nil, categorizeError(navCtx.Err(), "page did not become ready")
	}

	var status int
	if err := chromedp.Run(navCtx, chromedp.Evaluate("("+navigationStatusJS+")()", &status)); err != nil {
		status = 0
	}
	if status != 0 && (status < 200 || status >= 300) {
		return nil, statusError(status, targetURL)
	}

	var rawHTML, finalURL string
	if err := chromedp.Run(navCtx,
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	); err != nil {
		return nil, evaluationError(err)
	}
	if finalURL == "" {
		finalURL = targetURL
	}

	return &models.Document{
		HTML:       rawHTML,
		URL:        finalURL,
		StatusCode: status,
	}, nil
}

// navigate issues Page.navigate without waiting for the load event.
func navigate(targetURL string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(targetURL), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return fmt.Errorf("page load error %s", res.ErrorText)
		}
		return nil
	}
}

// lifecycleWaiter closes Done on the first target lifecycle event reported
// by the main frame of the new document. The main frame is the first frame
// to report "init" after navigation starts; events before it belong to the
// previous document and are ignored.
type lifecycleWaiter struct {
	target string

	mu    sync.Mutex
	frame string
	once  sync.Once
	done  chan struct{}
}

func newLifecycleWaiter(target string) *lifecycleWaiter {
	return &lifecycleWaiter{target: target, done: make(chan struct{})}
}

func (w *lifecycleWaiter) observe(name, frameID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == "init" {
		if w.frame == "" {
			w.frame = frameID
		}
		return
	}
	if name == w.target && w.frame != "" && frameID == w.frame {
		w.once.Do(func() { close(w.done) })
	}
}

func (w *lifecycleWaiter) Done() <-chan struct{} {
	return w.done
}

// Close shuts the browser down gracefully, then releases the allocator,
// which kills the process and removes its profile directory.
func (s *chromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.taskCtx); err != nil {
			s.closeErr = fmt.Errorf("close browser: %w", err)
		}
		s.taskCancel()
		s.allocCancel()
	})
	return s.closeErr
}
