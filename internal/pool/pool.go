// Package pool implements the bounded Handle Pool spec.md §1 and §4.4
// describe: a fixed-capacity stack of pre-constructed Request Handles
// that the fetch engine acquires from and releases back to instead of
// allocating a new handle per fetch.
package pool

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dcrichton/reactorcrawl/internal/rhandle"
)

// Pool is a bounded LIFO stack of *rhandle.Handle, grounded on the
// teacher's worker-pool sizing convention (internal/engine/scheduler.go
// pre-sizes its worker slice once at construction) generalized to a
// pop/push stack of reusable handles instead of goroutines.
type Pool struct {
	mu     sync.Mutex
	stack  []*rhandle.Handle
	cap    int
	logger *slog.Logger
}

// New pre-allocates capacity handles up front, matching the source's
// expectation that the pool never grows past its initial size.
func New(capacity int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		stack:  make([]*rhandle.Handle, 0, capacity),
		cap:    capacity,
		logger: logger.With("component", "pool"),
	}
	for i := 0; i < capacity; i++ {
		p.stack = append(p.stack, rhandle.New(logger))
	}
	return p
}

// Acquire pops a handle off the stack. It returns an error rather than
// blocking when the pool is exhausted — spec §4.4 leaves exhaustion
// handling to the caller (the fetch engine throttles concurrent
// transfers to the pool's capacity, so exhaustion should not occur in
// normal operation).
func (p *Pool) Acquire() (*rhandle.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.stack)
	if n == 0 {
		return nil, fmt.Errorf("pool: exhausted (capacity %d)", p.cap)
	}
	h := p.stack[n-1]
	p.stack = p.stack[:n-1]
	return h, nil
}

// Release pushes the handle back onto the stack as-is. It does not
// reset the handle's configured options — a handle's UserAgent, auth,
// headers, proxy, and TLS settings must survive the
// idle->in-flight->idle round trip so bulk configuration applied once
// before a crawl starts still holds for every wave of requests the
// handle serves, not just its first. Reset is reserved for the
// explicit pool-wide reset path. A release past the original capacity
// indicates a caller bug (double release, or a handle not obtained
// from this pool); it is logged and dropped rather than growing the
// stack, keeping the pool's capacity fixed for its lifetime.
func (p *Pool) Release(h *rhandle.Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stack) >= p.cap {
		p.logger.Warn("release exceeds pool capacity, dropping handle", "capacity", p.cap)
		return
	}
	p.stack = append(p.stack, h)
}

// Len reports how many handles are currently available.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stack)
}

// Cap reports the pool's fixed capacity.
func (p *Pool) Cap() int { return p.cap }

// Propagate applies fn to every handle currently sitting in the pool,
// mirroring CurlEasyHandle-level options the source applies uniformly
// across a curl_multi's easy handles (e.g. a blanket setVerify or
// setUserAgent change issued before a crawl starts). It only reaches
// handles that are idle in the pool at the time of the call; handles
// currently on loan to an in-flight transfer are unaffected, matching
// the source's expectation that such bulk configuration happens before
// a crawl is underway.
func (p *Pool) Propagate(fn func(*rhandle.Handle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.stack {
		fn(h)
	}
}
