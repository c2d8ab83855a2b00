package reactor

import (
	"container/heap"
	"time"
)

// FDEvent is the readiness mask a Poll watch reports, mirroring the
// reactor-level "readable"/"writable" events spec §4.7.2 maps the
// client library's IN/OUT/INOUT actions onto.
type FDEvent uint8

const (
	EventReadable FDEvent = 1 << iota
	EventWritable
)

// epoller is the platform-specific half of the reactor: registering and
// polling raw file descriptors. Implemented by epoll_linux.go on Linux
// and by reactor_stub.go (returns an error from New) elsewhere.
type epoller interface {
	add(fd int, events FDEvent) error
	modify(fd int, events FDEvent) error
	remove(fd int) error
	wait(timeoutMs int) ([]pollReadiness, error)
	close() error
}

type pollReadiness struct {
	fd     int
	events FDEvent
	err    bool
}

// Reactor is the single-threaded event loop. Construct with New, wire
// up handles with NewTimer/NewPoll/NewCheck, then call Run.
type Reactor struct {
	ep epoller

	polls  map[int]*Poll
	checks []*Check
	timers timerHeap

	closeQueue []func()

	stopped bool
}

// New creates a Reactor backed by the platform poller.
func New() (*Reactor, error) {
	ep, err := newEpoller()
	if err != nil {
		return nil, err
	}
	r := &Reactor{
		ep:    ep,
		polls: make(map[int]*Poll),
	}
	heap.Init(&r.timers)
	return r, nil
}

// enqueueClose defers fn to run once teardown is safe — at the end of
// the current loop iteration, never reentrant with the firing callback.
func (r *Reactor) enqueueClose(fn func()) {
	r.closeQueue = append(r.closeQueue, fn)
}

func (r *Reactor) drainCloseQueue() {
	for len(r.closeQueue) > 0 {
		q := r.closeQueue
		r.closeQueue = nil
		for _, fn := range q {
			fn()
		}
	}
}

// Stop forces Run to return after the current iteration, regardless of
// whether any handle is still active. The fetch engine calls it from
// CloseProcessing (or after the last in-flight completion once the
// idler is stopped), because the multi driver's self-pipe watch stays
// registered for the engine's whole lifetime and would otherwise keep
// alive() true.
func (r *Reactor) Stop() {
	r.stopped = true
}

// alive reports whether any handle would still keep a libuv-style loop
// blocked: a registered Poll watch, an armed Timer, or an active Check
// hook. Run returns once alive() is false, or earlier if Stop is
// called. A registered Poll watch counts even while stopped, so a watch
// that is never closed keeps the loop alive until Stop.
func (r *Reactor) alive() bool {
	if len(r.polls) > 0 {
		return true
	}
	if r.timers.Len() > 0 {
		return true
	}
	for _, c := range r.checks {
		if c.active {
			return true
		}
	}
	return false
}

// Run drives the loop until Stop is called or alive() becomes false.
// Each iteration: compute the poll timeout from the nearest armed
// timer, poll for I/O readiness, dispatch fired Poll watches, fire
// expired timers, run the check phase, then drain deferred closes.
func (r *Reactor) Run() error {
	r.stopped = false
	for !r.stopped && r.alive() {
		timeout := r.nextTimeout()
		ready, err := r.ep.wait(timeout)
		if err != nil {
			return err
		}
		for _, rd := range ready {
			p, ok := r.polls[rd.fd]
			if !ok || !p.active {
				continue
			}
			status := 0
			if rd.err {
				status = -1
			}
			p.cb(status, rd.events)
		}

		r.fireExpiredTimers()

		for _, c := range r.checks {
			if c.active {
				c.cb()
			}
		}

		r.drainCloseQueue()
	}
	return nil
}

// nextTimeout returns the epoll_wait timeout in milliseconds: -1 (block
// indefinitely) if no timer is armed and no check hook is active, 0 if
// a check hook is active (check hooks run every iteration), else the
// milliseconds until the nearest timer deadline.
func (r *Reactor) nextTimeout() int {
	for _, c := range r.checks {
		if c.active {
			return 0
		}
	}
	if r.timers.Len() == 0 {
		return -1
	}
	next := r.timers[0]
	d := time.Until(next.deadline)
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return int(ms)
}

func (r *Reactor) fireExpiredTimers() {
	now := time.Now()
	for r.timers.Len() > 0 && !r.timers[0].deadline.After(now) {
		t := heap.Pop(&r.timers).(*Timer)
		t.armed = false
		if t.active && !t.closing {
			t.active = false
			t.cb()
		}
	}
}

// Close releases the underlying poller. Call only after Run has
// returned.
func (r *Reactor) Close() error {
	return r.ep.close()
}
