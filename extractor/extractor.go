// Package extractor pulls product fields out of a rendered product page.
//
// Extraction is a pure function of the page snapshot: every field is read
// through an ordered selector chain, and only a missing title fails the
// whole extraction. Empty price and photo list are valid results.
package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/prodscrape/models"
	"golang.org/x/net/html"
)

// MsgProductNotFound is returned when the page has no product title.
const MsgProductNotFound = "Impossible de trouver les informations du produit"

// Rules configures the selectors used for each field.
type Rules struct {
	Title      []string
	Price      []string
	Thumbnails string
	MainImage  []string
}

// DefaultRules returns the selectors for Amazon-style product pages.
func DefaultRules() Rules {
	return Rules{
		Title: []string{"#productTitle"},
		Price: []string{
			"#priceblock_ourprice",
			".a-price .a-offscreen",
			"#price_inside_buybox",
			".a-price-whole",
			"#corePrice_feature_div .a-offscreen",
			"#price",
		},
		Thumbnails: "#altImages img",
		MainImage:  []string{"#landingImage", "#imgBlkFront"},
	}
}

// Extractor holds compiled selector chains. It is safe for concurrent use.
type Extractor struct {
	title      Chain
	price      Chain
	thumbnails cascadia.Selector
	mainImage  Chain
}

// New compiles the rules into an Extractor.
func New(rules Rules) (*Extractor, error) {
	title, err := NewChain(rules.Title...)
	if err != nil {
		return nil, err
	}
	price, err := NewChain(rules.Price...)
	if err != nil {
		return nil, err
	}
	thumbs, err := cascadia.Compile(rules.Thumbnails)
	if err != nil {
		return nil, err
	}
	mainImage, err := NewChain(rules.MainImage...)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		title:      title,
		price:      price,
		thumbnails: thumbs,
		mainImage:  mainImage,
	}, nil
}

var defaultExtractor = mustNew(DefaultRules())

func mustNew(rules Rules) *Extractor {
	e, err := New(rules)
	if err != nil {
		panic(err)
	}
	return e
}

// Extract runs the default rules against doc.
func Extract(doc models.Document) (*models.ProductData, error) {
	return defaultExtractor.Extract(doc)
}

// Extract reads title, price, photos and the canonical URL from doc.
//
// A page without a title yields an ErrCodeMissingProduct error; absent
// price or photos leave those fields empty.
func (e *Extractor) Extract(doc models.Document) (*models.ProductData, error) {
	root, err := html.Parse(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeEvaluation,
			"failed to parse rendered page",
			err,
		)
	}
	dom := goquery.NewDocumentFromNode(root)

	title, _ := e.title.First(dom)
	if title == "" {
		return nil, models.NewScrapeError(models.ErrCodeMissingProduct, MsgProductNotFound, nil)
	}

	price, _ := e.price.First(dom)

	base, err := url.Parse(doc.URL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	return &models.ProductData{
		Title:      title,
		Price:      price,
		Photos:     e.collectPhotos(dom, base),
		ProductURL: doc.URL,
	}, nil
}
