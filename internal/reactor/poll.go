package reactor

// Poll is an fd-readiness watch, one per socket the multi driver asks
// the engine to observe (spec §4.7.2). Grounded on
// original_source/src/PollWrapper.hpp.
type Poll struct {
	handle
	fd int
	cb func(status int, events FDEvent)
}

// NewPoll creates (but does not arm) a Poll watch on fd. The caller
// must Start it with the desired event mask.
func NewPoll(r *Reactor, fd int, cb func(status int, events FDEvent)) *Poll {
	p := &Poll{handle: handle{reactor: r}, fd: fd, cb: cb}
	r.polls[fd] = p
	return p
}

// FD returns the watched file descriptor.
func (p *Poll) FD() int { return p.fd }

// Start arms (or re-arms) the watch for the given event mask. Calling
// Start while already active updates the subscribed events, matching
// spec §4.7.2 ("restarting is legal and updates the subscribed
// events").
func (p *Poll) Start(events FDEvent) error {
	if p.closing {
		return nil
	}
	var err error
	if p.active {
		err = p.reactor.ep.modify(p.fd, events)
	} else {
		err = p.reactor.ep.add(p.fd, events)
	}
	if err != nil {
		return err
	}
	p.active = true
	return nil
}

// Stop disarms the watch without releasing the reactor-side registration.
func (p *Poll) Stop() error {
	if !p.active {
		return nil
	}
	p.active = false
	return p.reactor.ep.remove(p.fd)
}

// Close idempotently tears the watch down. Per spec §3 ("Poll Watch"),
// teardown is deferred to the reactor's close queue so a callback
// currently firing for this fd is not freed under itself.
func (p *Poll) Close(onClosed func()) {
	p.beginClose(onClosed, func() {
		_ = p.reactor.ep.remove(p.fd)
		delete(p.reactor.polls, p.fd)
	})
}
