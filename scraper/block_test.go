package scraper

import "testing"

// Both browser backends route every intercepted request through
// blockPolicy.Blocks (rod's hijack handler in setupHijack, chromedp's
// fetch.EventRequestPaused listener), so these cases decide which requests
// a real page load aborts or continues.
func TestBlockPolicy(t *testing.T) {
	policy := newBlockPolicy(true, []string{"image", " Stylesheet ", "FONT", "media", "bogus"}, true)
	if policy == nil {
		t.Fatal("expected a policy")
	}

	tests := []struct {
		resourceType string
		url          string
		want         bool
	}{
		{"Image", "https://m.media-amazon.com/images/I/81abc.jpg", true},
		{"Stylesheet", "https://example.com/site.css", true},
		{"Font", "https://example.com/a.woff2", true},
		{"Media", "https://example.com/v.mp4", true},
		{"Script", "https://example.com/app.js", false},
		{"XHR", "https://example.com/api", false},
		{"Script", "https://pagead2.googlesyndication.com/tag.js", true},
		{"XHR", "https://aax-us-east.amazon-adsystem.com/e/dtb", true},
		{"Document", "https://doubleclick.net/page", false},
		{"Document", "https://example.com/product", false},
	}

	for _, tt := range tests {
		if got := policy.Blocks(tt.resourceType, tt.url); got != tt.want {
			t.Errorf("Blocks(%q, %q) = %v, want %v", tt.resourceType, tt.url, got, tt.want)
		}
	}
}

func TestBlockPolicy_Disabled(t *testing.T) {
	if p := newBlockPolicy(false, []string{"image"}, true); p != nil {
		t.Error("disabled blocking must yield nil policy")
	}
	if p := newBlockPolicy(true, nil, false); p != nil {
		t.Error("nothing to block must yield nil policy")
	}

	var nilPolicy *blockPolicy
	if nilPolicy.Blocks("Image", "https://example.com/a.png") {
		t.Error("nil policy must not block")
	}
}

func TestBlockPolicy_AdsOnly(t *testing.T) {
	p := newBlockPolicy(true, nil, true)
	if p == nil {
		t.Fatal("expected ads-only policy")
	}
	if p.Blocks("Image", "https://example.com/a.png") {
		t.Error("images must pass when only ads are blocked")
	}
	if !p.Blocks("Image", "https://stats.g.doubleclick.net/pixel.gif") {
		t.Error("ad subdomain must be blocked")
	}
}

func TestIsAdDomain(t *testing.T) {
	tests := map[string]bool{
		"doubleclick.net":         true,
		"STATS.G.DOUBLECLICK.NET": true,
		"notdoubleclick.net":      false,
		"www.amazon.com":          false,
		"c.amazon-adsystem.com":   true,
		"":                        false,
	}
	for host, want := range tests {
		if got := isAdDomain(host); got != want {
			t.Errorf("isAdDomain(%q) = %v, want %v", host, got, want)
		}
	}
}
