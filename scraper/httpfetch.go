package scraper

import (
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/prodscrape/config"
	"github.com/use-agent/prodscrape/models"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// chromeH1Spec returns a fresh Chrome-like TLS ClientHello with ALPN forced
// to http/1.1 only. ApplyPreset mutates the extensions it is given, so every
// connection needs its own copy.
func chromeH1Spec() (*tls.ClientHelloSpec, error) {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	// Go's http.Transport cannot speak HTTP/2 over a utls connection, so
	// the server must never be offered h2.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	return &spec, nil
}

// httpLauncher serves pages without a browser: one GET with a Chrome TLS
// fingerprint. No JavaScript runs, so resource blocking does not apply.
type httpLauncher struct {
	proxy     string
	renderCfg config.RenderConfig

	// rootCAs overrides the system trust store; nil uses the system pool.
	rootCAs *x509.CertPool
}

func newHTTPLauncher(browserCfg config.BrowserConfig, renderCfg config.RenderConfig) *httpLauncher {
	return &httpLauncher{proxy: browserCfg.Proxy, renderCfg: renderCfg}
}

func (l *httpLauncher) Name() string { return "http" }

func (l *httpLauncher) Launch(_ context.Context) (Session, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, l.rootCAs)
		},
		ForceAttemptHTTP2: false,
	}
	if l.proxy != "" {
		proxyURL, err := url.Parse(l.proxy)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserLaunch, "invalid proxy URL", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &httpSession{
		cfg: l.renderCfg,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}, nil
}

// httpSession is a single-use HTTP client.
type httpSession struct {
	cfg    config.RenderConfig
	client *http.Client
}

func (s *httpSession) Open(ctx context.Context, targetURL string) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range extraHeaders(s.cfg) {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, targetURL)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, models.NewScrapeError(
			models.ErrCodeNavigation,
			"target URL did not return an HTML page",
			fmt.Errorf("content-type %q", ct),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, categorizeError(err, "failed to read page body")
	}

	return &models.Document{
		HTML:       string(body),
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint via utls.
func dialTLSChrome(ctx context.Context, network, addr string, rootCAs *x509.CertPool) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	var tlsConn *tls.UConn
	if spec, specErr := chromeH1Spec(); specErr == nil {
		tlsConn = tls.UClient(rawConn, &tls.Config{ServerName: host, RootCAs: rootCAs}, tls.HelloCustom)
		if err := tlsConn.ApplyPreset(spec); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("apply tls spec: %w", err)
		}
	} else {
		tlsConn = tls.UClient(rawConn, &tls.Config{ServerName: host, RootCAs: rootCAs, NextProtos: []string{"http/1.1"}}, tls.HelloGolang)
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
