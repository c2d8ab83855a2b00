// Package reactor implements the single-threaded event loop that drives
// the fetch engine: file-descriptor polling, a shared timer, and a
// per-iteration check hook, in the style of a libuv event loop.
//
// All types in this package are single-threaded: every method is meant
// to be called from the loop goroutine (inside Reactor.Run or from a
// callback it invokes). There is no internal locking.
package reactor

// handle is the base embedded by Timer, Poll and Check. It implements
// the two-phase close protocol required by spec §4.1: Close marks the
// handle as closing and defers teardown to the reactor's close queue so
// that a callback currently firing for this handle is never freed out
// from under itself.
type handle struct {
	reactor  *Reactor
	active   bool
	closing  bool
	closed   bool
	onClosed func()
}

// IsActive reports whether Start has been called more recently than Stop.
// A Timer also becomes inactive once its single shot has fired.
func (h *handle) IsActive() bool { return h.active && !h.closing }

// IsClosing reports whether Close has been called (idempotently true
// thereafter, even once teardown has completed).
func (h *handle) IsClosing() bool { return h.closing }

// beginClose marks the handle closing and idempotently enqueues it on
// the reactor's deferred close queue. finalize is invoked by the
// reactor once it is safe to release the underlying resource; it must
// not be invoked more than once.
func (h *handle) beginClose(onClosed func(), finalize func()) {
	if h.closing {
		return
	}
	h.closing = true
	h.active = false
	h.onClosed = onClosed
	h.reactor.enqueueClose(func() {
		if h.closed {
			return
		}
		h.closed = true
		finalize()
		if h.onClosed != nil {
			h.onClosed()
		}
	})
}
