//go:build linux

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// linuxEpoller implements epoller using epoll_create1/epoll_ctl/epoll_wait.
// Grounded on momentics-hioload-ws/reactor/epoll_reactor.go's raw
// syscall.Epoll* loop, ported to golang.org/x/sys/unix (already a
// dependency of this module, unlike the bare syscall package the
// teacher for that idiom used).
type linuxEpoller struct {
	epfd int
}

func newEpoller() (epoller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &linuxEpoller{epfd: fd}, nil
}

func eventsToEpoll(events FDEvent) uint32 {
	var e uint32
	if events&EventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func (p *linuxEpoller) add(fd int, events FDEvent) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *linuxEpoller) modify(fd int, events FDEvent) error {
	ev := unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *linuxEpoller) remove(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *linuxEpoller) wait(timeoutMs int) ([]pollReadiness, error) {
	const maxEvents = 256
	var raw [maxEvents]unix.EpollEvent

	n, err := unix.EpollWait(p.epfd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	out := make([]pollReadiness, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		r := pollReadiness{fd: int(ev.Fd)}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
			r.events |= EventReadable
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			r.events |= EventWritable
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			r.err = true
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *linuxEpoller) close() error {
	return unix.Close(p.epfd)
}
