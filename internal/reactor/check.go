package reactor

// Check is the per-iteration check-phase hook (spec §4.7.5: "fires
// once per loop iteration after I/O polling completes"). The fetch
// engine's idler is a Check handle. Grounded on
// original_source/include/async/CheckWrapper.hpp.
type Check struct {
	handle
	cb func()
}

// NewCheck creates (but does not arm) a Check hook.
func NewCheck(r *Reactor, cb func()) *Check {
	return &Check{handle: handle{reactor: r}, cb: cb}
}

// Start arms the hook; it will fire on every subsequent loop iteration.
func (c *Check) Start() {
	if c.closing || c.active {
		return
	}
	c.active = true
	c.reactor.checks = append(c.reactor.checks, c)
}

// Stop disarms the hook. Per spec §4.7.6, stopping the idler is the
// engine's shutdown signal: once stopped, the reactor has nothing left
// to keep Run blocked (no active checks means the poll phase can use an
// indefinite/timer-only timeout), and Run returns once all other
// handles are quiesced.
func (c *Check) Stop() {
	if !c.active {
		return
	}
	c.active = false
	checks := c.reactor.checks[:0]
	for _, h := range c.reactor.checks {
		if h != c {
			checks = append(checks, h)
		}
	}
	c.reactor.checks = checks
}

// Close idempotently tears the hook down.
func (c *Check) Close(onClosed func()) {
	c.beginClose(onClosed, func() {
		c.Stop()
	})
}
