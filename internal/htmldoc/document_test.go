package htmldoc

import (
	"strings"
	"testing"
)

const testHTML = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
  <h1 class="title">Hello World</h1>
  <div class="links">
    <a href="/page2">Page 2</a>
    <a href="https://example.com/page3">Page 3</a>
    <a href="/assets/logo.png">Logo</a>
  </div>
</body>
</html>`

func TestParseAndFind(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	title := doc.Find("h1.title").Text()
	if title != "Hello World" {
		t.Errorf("expected %q, got %q", "Hello World", title)
	}
}

func TestText(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(doc.Text(), "Hello World") {
		t.Errorf("expected document text to contain %q, got %q", "Hello World", doc.Text())
	}
}

func TestXPath(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	nodes, err := doc.XPath("//h1")
	if err != nil {
		t.Fatalf("XPath: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 <h1> node, got %d", len(nodes))
	}
}

func TestXPathOnEmptyDocument(t *testing.T) {
	doc := &Document{}
	nodes, err := doc.XPath("//h1")
	if err != nil {
		t.Fatalf("expected no error on empty document, got %v", err)
	}
	if nodes != nil {
		t.Errorf("expected nil nodes for an empty document, got %v", nodes)
	}
}

func TestGetLinksMatching(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	links, err := doc.GetLinksMatching(`^/page\d+$`)
	if err != nil {
		t.Fatalf("GetLinksMatching: %v", err)
	}
	if len(links) != 1 || links[0] != "/page2" {
		t.Errorf("expected [/page2], got %v", links)
	}
}

func TestGetLinksMatchingCachesCompiledPattern(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	const pattern = `\.png$`
	if _, err := doc.GetLinksMatching(pattern); err != nil {
		t.Fatalf("first GetLinksMatching: %v", err)
	}
	first := doc.compiled[pattern]
	if _, err := doc.GetLinksMatching(pattern); err != nil {
		t.Fatalf("second GetLinksMatching: %v", err)
	}
	second := doc.compiled[pattern]
	if first != second {
		t.Error("expected the compiled regexp to be reused across calls, not recompiled")
	}
}

func TestGetLinksMatchingInvalidPattern(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := doc.GetLinksMatching("("); err == nil {
		t.Fatal("expected an error for an invalid regular expression")
	}
}

func TestRoot(t *testing.T) {
	doc, err := Parse([]byte(testHTML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Root() == nil {
		t.Fatal("expected Root to return the underlying goquery document")
	}
}
