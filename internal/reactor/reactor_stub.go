//go:build !linux

package reactor

import "errors"

// newEpoller returns an error for unsupported platforms. Grounded on
// momentics-hioload-ws/reactor/reactor_stub.go, which takes the same
// approach for its non-Linux, non-Windows build: this engine's socket
// multiplexing protocol (spec §4.7.2) is epoll-specific, and a kqueue
// or IOCP poller is a separate, unwritten backend.
func newEpoller() (epoller, error) {
	return nil, errors.New("reactor: this platform is not supported (epoll only)")
}
