package config

import (
	"os"
	"runtime"

	"github.com/go-rod/rod/lib/launcher"
)

// browserBins lists well-known Chromium locations per GOOS, in lookup order.
var browserBins = map[string][]string{
	"linux": {
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/snap/bin/chromium",
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

// ResolveBrowserBin picks the browser executable once at startup.
//
// Precedence: explicit override, then the platform table, then rod's own
// lookup. An empty result lets the launcher download a browser.
func ResolveBrowserBin(override string) string {
	return resolveBrowserBin(override, runtime.GOOS, fileExists, launcher.LookPath)
}

func resolveBrowserBin(override, goos string, exists func(string) bool, lookPath func() (string, bool)) string {
	if override != "" {
		return override
	}
	for _, p := range browserBins[goos] {
		if exists(p) {
			return p
		}
	}
	if p, ok := lookPath(); ok {
		return p
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
