package frontier

import "testing"

func TestAddDedupesByExactString(t *testing.T) {
	f := New()
	if !f.Add("https://example.com/a", 0) {
		t.Fatal("expected first Add to return true")
	}
	if f.Add("https://example.com/a", 0) {
		t.Fatal("expected duplicate Add to return false")
	}
	if f.Add("https://example.com/a/", 0) != true {
		t.Fatal("expected trailing-slash variant to be a distinct URL")
	}
	if f.PendingSize() != 2 {
		t.Fatalf("expected 2 pending entries, got %d", f.PendingSize())
	}
	if f.VisitedSize() != 2 {
		t.Fatalf("expected 2 visited entries, got %d", f.VisitedSize())
	}
}

func TestPopIsFIFO(t *testing.T) {
	f := New()
	f.Add("https://example.com/1", 0)
	f.Add("https://example.com/2", 1)
	f.Add("https://example.com/3", 2)

	var order []string
	for f.HasURLs() {
		order = append(order, f.Pop().URL)
	}

	want := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(order))
	}
	for i, u := range want {
		if order[i] != u {
			t.Errorf("position %d: expected %q, got %q", i, u, order[i])
		}
	}
}

func TestPopPreservesDepth(t *testing.T) {
	f := New()
	f.Add("https://example.com/child", 3)
	e := f.Pop()
	if e.Depth != 3 {
		t.Errorf("expected depth 3, got %d", e.Depth)
	}
}

func TestClearEmptiesPendingButNotVisited(t *testing.T) {
	f := New()
	f.Add("https://example.com/a", 0)
	f.Add("https://example.com/b", 0)
	f.Clear()

	if f.HasURLs() {
		t.Fatal("expected no pending entries after Clear")
	}
	if f.PendingSize() != 0 {
		t.Errorf("expected pending size 0, got %d", f.PendingSize())
	}
	if f.VisitedSize() != 2 {
		t.Errorf("expected visited set to survive Clear, got %d", f.VisitedSize())
	}
	// Re-adding an already-visited URL after Clear must still be rejected.
	if f.Add("https://example.com/a", 0) {
		t.Fatal("expected Clear not to reset the visited set")
	}
}

func TestVisitedSetIsACopy(t *testing.T) {
	f := New()
	f.Add("https://example.com/a", 0)

	snapshot := f.VisitedSet()
	snapshot["https://example.com/injected"] = struct{}{}

	if f.VisitedSize() != 1 {
		t.Fatal("mutating the returned visited set must not affect the frontier")
	}
}

func TestHasURLsOnEmptyFrontier(t *testing.T) {
	f := New()
	if f.HasURLs() {
		t.Fatal("expected empty frontier to report no URLs")
	}
}
