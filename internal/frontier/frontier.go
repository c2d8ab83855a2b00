// Package frontier implements the crawl engine's URL frontier: a
// deduplicating queue of (url, depth) pairs plus an append-only visited
// set, as described in spec.md §3 and §4.6.
package frontier

import (
	"github.com/eapache/queue"
)

// Entry is one pending fetch, grounded on spec §3's URL entry.
type Entry struct {
	URL   string
	Depth uint
}

// Frontier is the pending-URL queue plus visited-URL history.
//
// Order: spec.md §9 flags that the C++ source's URLRequestManager is a
// deque with push_front/pop_back, which despite the "stack" framing is
// FIFO by construction (push to front, pop from back walks the queue
// in insertion order). We implement genuine FIFO directly — Add enqueues
// at the back, Pop dequeues from the front — which is the behavior the
// source actually exhibits, not the LIFO its naming suggests. See
// SPEC_FULL.md "Resolved Open Questions".
type Frontier struct {
	pending *queue.Queue
	visited map[string]struct{}
}

// New creates an empty Frontier.
func New() *Frontier {
	return &Frontier{
		pending: queue.New(),
		visited: make(map[string]struct{}),
	}
}

// Add enqueues (url, depth) if url has never been seen before,
// returning true exactly once per distinct url (spec §8 property 1).
func (f *Frontier) Add(url string, depth uint) bool {
	if _, seen := f.visited[url]; seen {
		return false
	}
	f.visited[url] = struct{}{}
	f.pending.Add(Entry{URL: url, Depth: depth})
	return true
}

// Pop removes and returns the next entry in FIFO order. The caller must
// check HasURLs first; Pop panics on an empty frontier, matching the
// source's unchecked pop_back (callers are expected to guard it, per
// spec §4.6).
func (f *Frontier) Pop() Entry {
	e := f.pending.Peek().(Entry)
	f.pending.Remove()
	return e
}

// Clear empties the pending queue only; the visited set is untouched
// (spec §4.8 clear_queue).
func (f *Frontier) Clear() {
	for f.pending.Length() > 0 {
		f.pending.Remove()
	}
}

// HasURLs reports whether any entry is pending.
func (f *Frontier) HasURLs() bool { return f.pending.Length() > 0 }

// PendingSize returns the number of entries waiting to be popped.
func (f *Frontier) PendingSize() int { return f.pending.Length() }

// VisitedSize returns the number of distinct URLs ever added.
func (f *Frontier) VisitedSize() int { return len(f.visited) }

// VisitedSet returns a copy of the set of URLs ever added (the visited
// set "grows monotonically for the lifetime of the engine", spec §3 —
// callers must not be able to mutate it through the returned map).
func (f *Frontier) VisitedSet() map[string]struct{} {
	out := make(map[string]struct{}, len(f.visited))
	for u := range f.visited {
		out[u] = struct{}{}
	}
	return out
}
