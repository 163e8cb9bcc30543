package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Render  RenderConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string // default: ["*"]

	// ShutdownGrace is how long in-flight requests get on shutdown.
	ShutdownGrace time.Duration // default: 5s
}

// BrowserConfig controls how a browser process is started for each request.
type BrowserConfig struct {
	// Engine selects the render backend: "rod", "chromedp" or "http".
	Engine string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in most containers).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path. When empty the
	// platform table is consulted once at startup.
	BrowserBin string

	// Proxy is an optional proxy URL for browser and HTTP traffic.
	Proxy string
}

// RenderConfig controls how a single page is loaded.
type RenderConfig struct {
	// UserAgent is sent on every navigation.
	UserAgent string

	// ViewportWidth and ViewportHeight fix the page viewport.
	ViewportWidth  int // default: 1366
	ViewportHeight int // default: 768

	// Locale, when set, is sent as Accept-Language.
	Locale string

	// Referer, when set, is sent as the Referer header.
	Referer string

	// Stealth injects anti-automation-detection evasions before navigation.
	Stealth bool // default: false

	// NavigationTimeout bounds navigation plus the readiness wait.
	NavigationTimeout time.Duration // default: 30s

	// WaitUntil is the readiness condition: "domcontentloaded", "load"
	// or "networkidle".
	WaitUntil string // default: "domcontentloaded"

	// BlockResources enables the network request filter.
	BlockResources bool // default: true

	// BlockedResourceTypes lists resource types to abort.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds additionally aborts requests to known ad/tracking hosts.
	BlockAds bool // default: false
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Readiness conditions accepted by RenderConfig.WaitUntil.
const (
	WaitDOMContentLoaded = "domcontentloaded"
	WaitLoad             = "load"
	WaitNetworkIdle      = "networkidle"
)

// DefaultUserAgent is a realistic desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	width, height := envViewportOr("PRODSCRAPE_VIEWPORT", 1366, 768)

	return &Config{
		Server: ServerConfig{
			Host:          envOr("PRODSCRAPE_HOST", "0.0.0.0"),
			Port:          envIntOr("PORT", envIntOr("PRODSCRAPE_PORT", 3000)),
			Mode:          envOr("PRODSCRAPE_MODE", "release"),
			CORSOrigins:   envSliceOr("PRODSCRAPE_CORS_ORIGINS", []string{"*"}),
			ShutdownGrace: envDurationOr("PRODSCRAPE_SHUTDOWN_GRACE", 5*time.Second),
		},
		Browser: BrowserConfig{
			Engine:     strings.ToLower(envOr("PRODSCRAPE_ENGINE", "rod")),
			Headless:   envBoolOr("PRODSCRAPE_HEADLESS", true),
			NoSandbox:  envBoolOr("PRODSCRAPE_NO_SANDBOX", true),
			BrowserBin: os.Getenv("PRODSCRAPE_BROWSER_BIN"),
			Proxy:      os.Getenv("PRODSCRAPE_PROXY"),
		},
		Render: RenderConfig{
			UserAgent:         envOr("PRODSCRAPE_USER_AGENT", DefaultUserAgent),
			ViewportWidth:     width,
			ViewportHeight:    height,
			Locale:            os.Getenv("PRODSCRAPE_LOCALE"),
			Referer:           os.Getenv("PRODSCRAPE_REFERER"),
			Stealth:           envBoolOr("PRODSCRAPE_STEALTH", false),
			NavigationTimeout: envDurationOr("PRODSCRAPE_NAV_TIMEOUT", 30*time.Second),
			WaitUntil:         strings.ToLower(envOr("PRODSCRAPE_WAIT_UNTIL", WaitDOMContentLoaded)),
			BlockResources:    envBoolOr("PRODSCRAPE_BLOCK_RESOURCES", true),
			BlockedResourceTypes: envSliceOr("PRODSCRAPE_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
			BlockAds: envBoolOr("PRODSCRAPE_BLOCK_ADS", false),
		},
		Log: LogConfig{
			Level:  envOr("PRODSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("PRODSCRAPE_LOG_FORMAT", "json"),
		},
	}
}

// envViewportOr parses a "WIDTHxHEIGHT" value.
func envViewportOr(key string, width, height int) (int, int) {
	v := os.Getenv(key)
	if v == "" {
		return width, height
	}
	w, h, ok := strings.Cut(strings.ToLower(v), "x")
	if !ok {
		return width, height
	}
	wi, errW := strconv.Atoi(strings.TrimSpace(w))
	hi, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || wi <= 0 || hi <= 0 {
		return width, height
	}
	return wi, hi
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
