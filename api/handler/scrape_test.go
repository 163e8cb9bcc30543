package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/prodscrape/extractor"
	"github.com/use-agent/prodscrape/models"
	"github.com/use-agent/prodscrape/scraper"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const widgetPage = `<html><body>
	<span id="productTitle"> Widget </span>
	<span class="a-price"><span class="a-offscreen">$19.99</span></span>
	<div id="altImages"><img src="/img/widget._AC_US40_.jpg"></div>
</body></html>`

type stubSession struct {
	doc     *models.Document
	openErr error
	closes  *atomic.Int32
}

func (s *stubSession) Open(ctx context.Context, targetURL string) (*models.Document, error) {
	return s.doc, s.openErr
}

func (s *stubSession) Close() error {
	s.closes.Add(1)
	return nil
}

// stubLauncher hands out sessions serving a fixed document.
type stubLauncher struct {
	html     string
	finalURL string
	openErr  error
	launches atomic.Int32
	closes   atomic.Int32
}

func (l *stubLauncher) Name() string { return "stub" }

func (l *stubLauncher) Launch(ctx context.Context) (scraper.Session, error) {
	l.launches.Add(1)
	return &stubSession{
		doc:     &models.Document{HTML: l.html, URL: l.finalURL, StatusCode: 200},
		openErr: l.openErr,
		closes:  &l.closes,
	}, nil
}

func newScrapeRouter(t *testing.T, l *stubLauncher) *gin.Engine {
	t.Helper()
	ext, err := extractor.New(extractor.DefaultRules())
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	r := gin.New()
	r.POST("/scrape", Scrape(scraper.NewDriver(l), ext))
	return r
}

func postScrape(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/scrape", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScrape_Success(t *testing.T) {
	l := &stubLauncher{html: widgetPage, finalURL: "https://example.com/product"}
	r := newScrapeRouter(t, l)

	w := postScrape(r, `{"url":"https://example.com/dp/123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	want := `{"data":{"title":"Widget","price":"$19.99","photos":["https://example.com/img/widget.jpg"],"product_url":"https://example.com/product"}}`
	if got := w.Body.String(); got != want {
		t.Errorf("body = %s\nwant   %s", got, want)
	}
	if l.launches.Load() != 1 || l.closes.Load() != 1 {
		t.Errorf("launches = %d, closes = %d", l.launches.Load(), l.closes.Load())
	}
}

func TestScrape_MissingURL(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"url":""}`,
		`{"url":"   "}`,
		`not json`,
		``,
		`{"url":42}`,
	}

	for _, body := range bodies {
		l := &stubLauncher{html: widgetPage}
		r := newScrapeRouter(t, l)

		w := postScrape(r, body)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: status = %d", body, w.Code)
		}
		if got := w.Body.String(); got != `{"error":"URL requise"}` {
			t.Errorf("%q: body = %s", body, got)
		}
		if n := l.launches.Load(); n != 0 {
			t.Errorf("%q: browser launched %d times", body, n)
		}
	}
}

func TestScrape_MissingTitle(t *testing.T) {
	l := &stubLauncher{
		html:     `<html><body><span class="a-price"><span class="a-offscreen">$5</span></span></body></html>`,
		finalURL: "https://example.com/product",
	}
	r := newScrapeRouter(t, l)

	w := postScrape(r, `{"url":"https://example.com/product"}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != extractor.MsgProductNotFound {
		t.Errorf("error = %q", resp.Error)
	}
	if l.closes.Load() != 1 {
		t.Errorf("closes = %d, want 1", l.closes.Load())
	}
}

func TestScrape_NavigationFailure(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		wantMsg string
	}{
		{
			name:    "timeout",
			openErr: context.DeadlineExceeded,
			wantMsg: "navigation to target URL failed: timeout",
		},
		{
			name:    "dns",
			openErr: errors.New("net::ERR_NAME_NOT_RESOLVED"),
			wantMsg: "navigation to target URL failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &stubLauncher{openErr: tt.openErr}
			r := newScrapeRouter(t, l)

			w := postScrape(r, `{"url":"https://nonexistent.invalid/"}`)

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d", w.Code)
			}
			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp) != 1 || resp["error"] != tt.wantMsg {
				t.Errorf("body = %s", w.Body.String())
			}
			if l.closes.Load() != 1 {
				t.Errorf("closes = %d, want 1", l.closes.Load())
			}
		})
	}
}

func TestRootAndHealth(t *testing.T) {
	l := &stubLauncher{}
	r := gin.New()
	r.GET("/", Root())
	r.GET("/health", Health(scraper.NewDriver(l), time.Now()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Body.String() != "Service de scraping Amazon actif" {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q", ct)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var health models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "healthy" || health.Engine != "stub" || health.ActiveSessions != 0 || health.Version != Version {
		t.Errorf("health = %+v", health)
	}
}
