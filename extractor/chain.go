package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Chain is an ordered list of CSS selectors tried in sequence. The first
// selector that matches any element wins; later selectors are fallbacks
// for markup variants and are never merged with earlier matches.
type Chain struct {
	exprs    []string
	matchers []cascadia.Selector
}

// MustChain compiles the selectors and panics on an invalid one. Chains
// are built from constants at package init, so a bad selector is a bug.
func MustChain(selectors ...string) Chain {
	c, err := NewChain(selectors...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewChain compiles the selectors in order.
func NewChain(selectors ...string) (Chain, error) {
	c := Chain{
		exprs:    make([]string, 0, len(selectors)),
		matchers: make([]cascadia.Selector, 0, len(selectors)),
	}
	for _, s := range selectors {
		m, err := cascadia.Compile(s)
		if err != nil {
			return Chain{}, err
		}
		c.exprs = append(c.exprs, s)
		c.matchers = append(c.matchers, m)
	}
	return c, nil
}

// Selectors returns the selector expressions in precedence order.
func (c Chain) Selectors() []string {
	out := make([]string, len(c.exprs))
	copy(out, c.exprs)
	return out
}

// Find returns the first element matched by the highest-priority selector
// that matches anything, and the index of that selector. The index is -1
// when nothing matched.
func (c Chain) Find(doc *goquery.Document) (*goquery.Selection, int) {
	for i, m := range c.matchers {
		if sel := doc.FindMatcher(m); sel.Length() > 0 {
			return sel.First(), i
		}
	}
	return nil, -1
}

// First returns the trimmed text of the winning element and whether any
// selector matched. A match with empty text still wins.
func (c Chain) First(doc *goquery.Document) (string, bool) {
	sel, idx := c.Find(doc)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}

// FirstAttr returns the trimmed value of attr on the first element, across
// the chain, that carries a non-empty value for it.
func (c Chain) FirstAttr(doc *goquery.Document, attrs ...string) (string, bool) {
	return c.FirstAttrFunc(doc, func(string) bool { return true }, attrs...)
}

// FirstAttrFunc walks the chain in precedence order (selector, then
// element, then attribute) and returns the first non-empty trimmed value
// that accept approves. Rejected values fall through to the next candidate.
func (c Chain) FirstAttrFunc(doc *goquery.Document, accept func(string) bool, attrs ...string) (string, bool) {
	for _, m := range c.matchers {
		sel := doc.FindMatcher(m)
		for i := range sel.Nodes {
			node := sel.Eq(i)
			for _, attr := range attrs {
				v, ok := node.Attr(attr)
				v = strings.TrimSpace(v)
				if ok && v != "" && accept(v) {
					return v, true
				}
			}
		}
	}
	return "", false
}
