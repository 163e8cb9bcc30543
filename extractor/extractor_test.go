package extractor

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/prodscrape/models"
)

const productURL = "https://example.com/product"

func page(body string) models.Document {
	return models.Document{
		HTML: "<html><head><title>shop</title></head><body>" + body + "</body></html>",
		URL:  productURL,
	}
}

func TestExtract_FullProduct(t *testing.T) {
	doc := page(`
		<span id="productTitle">
			Widget
		</span>
		<div class="a-price"><span class="a-offscreen">$19.99</span></div>
		<div id="altImages">
			<img src="https://example.com/img/widget._AC_US40_.jpg">
			<img src="https://example.com/img/widget._AC_US40_.jpg">
		</div>`)

	got, err := Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &models.ProductData{
		Title:      "Widget",
		Price:      "$19.99",
		Photos:     []string{"https://example.com/img/widget.jpg"},
		ProductURL: productURL,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestExtract_MissingTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no element", `<div class="a-price"><span class="a-offscreen">$5</span></div>`},
		{"blank element", `<span id="productTitle">   </span>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(page(tt.body))
			var se *models.ScrapeError
			if !errors.As(err, &se) {
				t.Fatalf("expected ScrapeError, got %v", err)
			}
			if se.Code != models.ErrCodeMissingProduct {
				t.Errorf("code = %s, want %s", se.Code, models.ErrCodeMissingProduct)
			}
			if se.Kind() != models.KindMissingProductData {
				t.Errorf("kind = %s", se.Kind())
			}
		})
	}
}

func TestExtract_PricePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "price block beats offscreen",
			body: `<div class="a-price"><span class="a-offscreen">$2</span></div>
				<span id="priceblock_ourprice">$1</span>`,
			want: "$1",
		},
		{
			name: "offscreen beats buy box",
			body: `<span id="price_inside_buybox">$3</span>
				<div class="a-price"><span class="a-offscreen"> $2 </span></div>`,
			want: "$2",
		},
		{
			name: "whole fragment as fallback",
			body: `<span class="a-price-whole">42</span><span id="price">$99</span>`,
			want: "42",
		},
		{
			name: "generic price id last",
			body: `<span id="price">$99</span>`,
			want: "$99",
		},
		{
			name: "first match wins even when empty",
			body: `<span id="priceblock_ourprice"></span><span id="price">$99</span>`,
			want: "",
		},
		{
			name: "no price",
			body: ``,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(page(`<h1 id="productTitle">Thing</h1>` + tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Price != tt.want {
				t.Errorf("price = %q, want %q", got.Price, tt.want)
			}
		})
	}
}

func TestExtract_Photos(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "dedup keeps first-seen order",
			body: `<div id="altImages">
				<img src="https://cdn.example.com/I/b._SX38_SY50_CR,0,0,38,50_.jpg">
				<img src="https://cdn.example.com/I/a._AC_US40_.jpg">
				<img src="https://cdn.example.com/I/b._AC_US40_.jpg">
			</div>`,
			want: []string{
				"https://cdn.example.com/I/b.jpg",
				"https://cdn.example.com/I/a.jpg",
			},
		},
		{
			name: "sprites and placeholders dropped",
			body: `<div id="altImages">
				<img src="https://cdn.example.com/G/01/x-locale/common/sprite._V1_.png">
				<img src="https://cdn.example.com/G/01/transparent-pixel.gif">
				<img src="https://cdn.example.com/I/a.jpg">
			</div>`,
			want: []string{"https://cdn.example.com/I/a.jpg"},
		},
		{
			name: "relative and data urls",
			body: `<div id="altImages">
				<img src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">
				<img src="/img/c._AC_US40_.jpg">
			</div>`,
			want: []string{"https://example.com/img/c.jpg"},
		},
		{
			name: "falls back to hi-res main image",
			body: `<img id="landingImage" src="https://cdn.example.com/I/m._AC_SY300_.jpg"
				data-old-hires="https://cdn.example.com/I/m._AC_SL1500_.jpg">`,
			want: []string{"https://cdn.example.com/I/m.jpg"},
		},
		{
			name: "falls back to main image src",
			body: `<img id="landingImage" src="https://cdn.example.com/I/m.jpg">`,
			want: []string{"https://cdn.example.com/I/m.jpg"},
		},
		{
			name: "lazy main image falls through to front cover",
			body: `<img id="landingImage" src="data:image/gif;base64,R0lGODlhAQABAAAAACw=">
				<img id="imgBlkFront" src="https://cdn.example.com/I/front.jpg">`,
			want: []string{"https://cdn.example.com/I/front.jpg"},
		},
		{
			name: "placeholder hi-res falls through to main image src",
			body: `<img id="landingImage" src="https://cdn.example.com/I/m._AC_SY300_.jpg"
				data-old-hires="https://cdn.example.com/G/01/grey-pixel.gif">`,
			want: []string{"https://cdn.example.com/I/m.jpg"},
		},
		{
			name: "thumbnails win over main image",
			body: `<img id="landingImage" src="https://cdn.example.com/I/m.jpg">
				<div id="altImages"><img src="https://cdn.example.com/I/t.jpg"></div>`,
			want: []string{"https://cdn.example.com/I/t.jpg"},
		},
		{
			name: "no images",
			body: ``,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(page(`<span id="productTitle">Thing</span>` + tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got.Photos, tt.want) {
				t.Errorf("photos = %v, want %v", got.Photos, tt.want)
			}
		})
	}
}

func TestExtract_ProductURLIsFinalURL(t *testing.T) {
	doc := page(`<span id="productTitle">Thing</span>`)
	doc.URL = "https://example.com/dp/B000?ref=redirected"

	got, err := Extract(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ProductURL != doc.URL {
		t.Errorf("product_url = %q, want %q", got.ProductURL, doc.URL)
	}
}

func TestNewChain_InvalidSelector(t *testing.T) {
	if _, err := NewChain("#ok", "[[["); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := New(Rules{Title: []string{"#t"}, Thumbnails: ":::"}); err == nil {
		t.Fatal("expected compile error for thumbnails")
	}
}

func TestChain_Selectors(t *testing.T) {
	c := MustChain("#a", ".b")
	got := c.Selectors()
	if !reflect.DeepEqual(got, []string{"#a", ".b"}) {
		t.Errorf("selectors = %v", got)
	}
	got[0] = "mutated"
	if c.Selectors()[0] != "#a" {
		t.Error("Selectors must return a copy")
	}
}

func TestChain_FirstAttrFunc(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<img id="a" data-hi="" src="skip-me">
		<img id="b" src="take-me">`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := MustChain("#a", "#b")
	notSkipped := func(v string) bool { return v != "skip-me" }

	if got, ok := c.FirstAttrFunc(doc, notSkipped, "data-hi", "src"); !ok || got != "take-me" {
		t.Errorf("FirstAttrFunc = %q, %v", got, ok)
	}
	if got, ok := c.FirstAttr(doc, "data-hi", "src"); !ok || got != "skip-me" {
		t.Errorf("FirstAttr = %q, %v", got, ok)
	}
	if _, ok := c.FirstAttrFunc(doc, func(string) bool { return false }, "src"); ok {
		t.Error("expected no match when every value is rejected")
	}
}
