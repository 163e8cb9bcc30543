package scraper

import (
	"net/url"
	"strings"
)

// resourceTypes maps config names (any case) to the CDP resource type
// names shared by rod's proto and chromedp's cdproto packages.
var resourceTypes = map[string]string{
	"image":      "Image",
	"stylesheet": "Stylesheet",
	"font":       "Font",
	"media":      "Media",
	"script":     "Script",
	"texttrack":  "TextTrack",
	"manifest":   "Manifest",
	"other":      "Other",
}

// adDomains is a set of well-known ad and tracking domains to block
// when BlockAds is enabled.
var adDomains = map[string]struct{}{
	"doubleclick.net":        {},
	"googlesyndication.com":  {},
	"googleadservices.com":   {},
	"google-analytics.com":   {},
	"googletagmanager.com":   {},
	"googletagservices.com":  {},
	"facebook.net":           {},
	"connect.facebook.net":   {},
	"facebook.com":           {},
	"fbcdn.net":              {},
	"adnxs.com":              {},
	"adsrvr.org":             {},
	"amazon-adsystem.com":    {},
	"criteo.com":             {},
	"criteo.net":             {},
	"outbrain.com":           {},
	"taboola.com":            {},
	"moatads.com":            {},
	"pubmatic.com":           {},
	"rubiconproject.com":     {},
	"scorecardresearch.com":  {},
	"quantserve.com":         {},
	"hotjar.com":             {},
	"mixpanel.com":           {},
	"segment.io":             {},
	"segment.com":            {},
	"analytics.twitter.com":  {},
	"ads-twitter.com":        {},
	"static.ads-twitter.com": {},
	"chartbeat.com":          {},
	"chartbeat.net":          {},
	"optimizely.com":         {},
	"zedo.com":               {},
	"media.net":              {},
	"contextweb.com":         {},
	"bidswitch.net":          {},
	"openx.net":              {},
	"casalemedia.com":        {},
	"demdex.net":             {},
	"krxd.net":               {},
	"bluekai.com":            {},
	"exelator.com":           {},
	"turn.com":               {},
	"mathtag.com":            {},
	"serving-sys.com":        {},
	"eyeota.net":             {},
	"agkn.com":               {},
	"rlcdn.com":              {},
	"sharethis.com":          {},
	"addthis.com":            {},
	"consensu.org":           {},
}

// blockPolicy decides which in-page requests are aborted during navigation.
// A nil policy blocks nothing.
type blockPolicy struct {
	types map[string]struct{}
	ads   bool
}

// newBlockPolicy builds a policy from config. It returns nil when blocking
// is disabled or there is nothing to block.
func newBlockPolicy(enabled bool, blockedTypes []string, blockAds bool) *blockPolicy {
	if !enabled {
		return nil
	}
	types := make(map[string]struct{}, len(blockedTypes))
	for _, name := range blockedTypes {
		if rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(name))]; ok {
			types[rt] = struct{}{}
		}
	}
	if len(types) == 0 && !blockAds {
		return nil
	}
	return &blockPolicy{types: types, ads: blockAds}
}

// Blocks reports whether a request of resourceType for rawURL must be
// aborted. The main document is never blocked.
func (p *blockPolicy) Blocks(resourceType, rawURL string) bool {
	if p == nil || resourceType == "Document" {
		return false
	}
	if _, ok := p.types[resourceType]; ok {
		return true
	}
	if p.ads {
		if u, err := url.Parse(rawURL); err == nil && isAdDomain(u.Hostname()) {
			return true
		}
	}
	return false
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	// Check exact match first.
	if _, ok := adDomains[host]; ok {
		return true
	}
	// Check parent domains (e.g., "pagead2.googlesyndication.com" → "googlesyndication.com").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if _, ok := adDomains[host]; ok {
			return true
		}
	}
	return false
}
