package reactor

import (
	"container/heap"
	"time"
)

// Timer is a single-shot-per-Start reactor handle. Grounded on
// original_source/src/async/TimerWrapper.hpp: Start(timeoutMs, repeatMs)
// arms the timer; this engine only ever uses repeatMs == 0 (the multi
// driver re-arms on every timer-change callback instead of relying on
// a repeating timer), so repeat is accepted but not implemented beyond
// single-shot.
type Timer struct {
	handle
	deadline time.Time
	armed    bool
	index    int // heap index, maintained by container/heap
	cb       func()
}

// NewTimer creates a Timer bound to the reactor. It does not fire until
// Start is called.
func NewTimer(r *Reactor, cb func()) *Timer {
	t := &Timer{handle: handle{reactor: r}, cb: cb, index: -1}
	return t
}

// Start (re)arms the timer for a single shot at timeoutMs from now.
// Calling Start while already armed re-arms it (matches spec §4.7.3:
// "restarting is legal").
func (t *Timer) Start(timeoutMs, repeatMs int64) {
	if t.closing {
		return
	}
	if t.armed {
		removeTimer(&t.reactor.timers, t)
	}
	t.deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	t.armed = true
	t.active = true
	pushTimer(&t.reactor.timers, t)
}

// Stop disarms the timer without releasing reactor resources.
func (t *Timer) Stop() {
	if t.armed {
		removeTimer(&t.reactor.timers, t)
		t.armed = false
	}
	t.active = false
}

// Close idempotently tears the timer down; onClosed (if non-nil) fires
// exactly once, after the reactor's next close-queue drain.
func (t *Timer) Close(onClosed func()) {
	t.beginClose(onClosed, func() {
		if t.armed {
			removeTimer(&t.reactor.timers, t)
			t.armed = false
		}
	})
}

// timerHeap is a container/heap ordered by deadline.
type timerHeap []*Timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any)         { t := x.(*Timer); t.index = len(*h); *h = append(*h, t) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

func pushTimer(h *timerHeap, t *Timer) {
	heap.Push(h, t)
}

func removeTimer(h *timerHeap, t *Timer) {
	if t.index < 0 || t.index >= h.Len() {
		return
	}
	heap.Remove(h, t.index)
}
