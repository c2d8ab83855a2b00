// Package htmldoc adapts the HTML parser the spec treats as a black
// box (spec §1: "a pure function parse(bytes) → Document") onto
// goquery, with an XPath accessor over the same parsed tree.
package htmldoc

import (
	"bytes"
	"regexp"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document is the parsed-page black box spec §1 requires: element
// queries by tag/class/attribute and text content extraction.
// Grounded on the teacher's internal/types/response.go Document()
// (goquery) generalized with an XPath accessor grounded on the
// teacher's internal/parser/xpath.go, sharing the same tree instead of
// reparsing it.
type Document struct {
	gq *goquery.Document

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// Parse parses raw HTML bytes into a Document. This is the only
// function the fetch engine calls directly; everything else is reached
// through the returned Document.
func Parse(body []byte) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Document{gq: gq}, nil
}

// Find runs a CSS selector over the document (goquery.Selection).
func (d *Document) Find(selector string) *goquery.Selection {
	return d.gq.Find(selector)
}

// Text returns the document's full text content.
func (d *Document) Text() string {
	return d.gq.Text()
}

// Root returns the underlying goquery document for callers that want
// the full goquery API.
func (d *Document) Root() *goquery.Document {
	return d.gq
}

// XPath evaluates an XPath expression against the document's HTML tree
// using antchfx/htmlquery, without a second parse of the body: it walks
// the same *html.Node tree goquery already built. Spec §1 only requires
// "element queries by tag/class/attribute"; XPath is a supplemental
// query mode carried forward from the teacher's separate XPath parser
// (internal/parser/xpath.go there re-parses the body with
// antchfx/htmlquery.Parse — here we reuse goquery's tree instead).
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	if d.gq == nil || len(d.gq.Nodes) == 0 {
		return nil, nil
	}
	return htmlquery.QueryAll(d.gq.Nodes[0], expr)
}

// GetLinksMatching returns every href attribute value on an <a> element
// whose value matches the given regular expression. Spec §9 flags that
// the source compiles a fresh regexp on every call ("a hot path hazard
// if not [cached]"); we cache compiled patterns by their source string,
// as the spec explicitly permits.
func (d *Document) GetLinksMatching(pattern string) ([]string, error) {
	re, err := d.compile(pattern)
	if err != nil {
		return nil, err
	}
	var links []string
	d.gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if ok && re.MatchString(href) {
			links = append(links, href)
		}
	})
	return links, nil
}

func (d *Document) compile(pattern string) (*regexp.Regexp, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compiled == nil {
		d.compiled = make(map[string]*regexp.Regexp)
	}
	if re, ok := d.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	d.compiled[pattern] = re
	return re, nil
}
