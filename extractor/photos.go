package extractor

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resolutionMarker matches the "._AC_US40_." style segment image CDNs put
// before the file extension to request a downscaled variant.
var resolutionMarker = regexp.MustCompile(`\._[A-Za-z0-9,_\-]*_\.`)

// placeholderMarkers identify sprite sheets and blank placeholder images.
var placeholderMarkers = []string{
	"sprite",
	"transparent-pixel",
	"grey-pixel",
}

// collectPhotos returns the thumbnail strip images, normalized, filtered
// and deduplicated in document order. When the strip yields nothing it
// falls back to the single main image.
func (e *Extractor) collectPhotos(doc *goquery.Document, base *url.URL) []string {
	photos := []string{}
	seen := make(map[string]struct{})

	add := func(raw string) {
		u, ok := normalizePhoto(raw, base)
		if !ok {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		photos = append(photos, u)
	}

	doc.FindMatcher(e.thumbnails).Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
	})

	if len(photos) == 0 {
		accept := func(raw string) bool {
			_, ok := normalizePhoto(raw, base)
			return ok
		}
		if src, ok := e.mainImage.FirstAttrFunc(doc, accept, "data-old-hires", "src"); ok {
			add(src)
		}
	}

	return photos
}

// normalizePhoto resolves raw against base, strips the resolution marker
// from the file name and rejects non-http(s) and placeholder URLs.
func normalizePhoto(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}

	dir, file := path.Split(ref.Path)
	file = resolutionMarker.ReplaceAllString(file, ".")
	ref.Path = dir + file
	ref.RawPath = ""

	if isPlaceholder(ref.String()) {
		return "", false
	}
	return ref.String(), true
}

func isPlaceholder(u string) bool {
	lower := strings.ToLower(u)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
