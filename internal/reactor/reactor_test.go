package reactor

import (
	"os"
	"testing"
	"time"
)

func TestTimerFiresAndDrainsLoop(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fired := false
	timer := NewTimer(r, func() { fired = true })
	timer.Start(5, 0)

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !fired {
		t.Fatal("expected timer callback to fire")
	}
	if r.alive() {
		t.Fatal("expected reactor to be quiescent after timer fired")
	}
}

func TestTimerRestartRearms(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	count := 0
	var timer *Timer
	timer = NewTimer(r, func() {
		count++
		if count == 1 {
			timer.Start(5, 0)
		}
	})
	timer.Start(5, 0)

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected timer to fire twice, fired %d times", count)
	}
}

func TestTimerStopPreventsFire(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fired := false
	timer := NewTimer(r, func() { fired = true })
	timer.Start(50, 0)
	timer.Stop()

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fired {
		t.Fatal("expected stopped timer not to fire")
	}
}

func TestCheckFiresEveryIterationUntilStopped(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	iterations := 0
	var check *Check
	check = NewCheck(r, func() {
		iterations++
		if iterations >= 3 {
			check.Stop()
		}
	})
	check.Start()

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if iterations != 3 {
		t.Fatalf("expected exactly 3 check iterations, got %d", iterations)
	}
}

func TestCheckKeepsLoopAliveWithNoTimerOrPoll(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	done := make(chan struct{})
	var check *Check
	n := 0
	check = NewCheck(r, func() {
		n++
		if n == 5 {
			check.Stop()
			close(done)
		}
	})
	check.Start()

	go func() {
		if err := r.Run(); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for check hook to stop the loop")
	}
}

func TestPollWatchesRealFD(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	readable := false
	poll := NewPoll(r, int(pr.Fd()), func(status int, events FDEvent) {
		if events&EventReadable != 0 {
			readable = true
		}
		poll.Close(nil)
	})
	if err := poll.Start(EventReadable); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !readable {
		t.Fatal("expected poll callback to observe readability")
	}
}

func TestPollCloseRemovesWatch(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer pr.Close()
	defer pw.Close()

	poll := NewPoll(r, int(pr.Fd()), func(status int, events FDEvent) {})
	if err := poll.Start(EventReadable); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Make the fd immediately ready so the first epoll_wait(-1) below
	// does not block: Close stops dispatch but the fd is still
	// registered with epoll until the close queue drains.
	if _, err := pw.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	closed := false
	poll.Close(func() { closed = true })

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !closed {
		t.Fatal("expected onClosed callback to fire")
	}
	if _, ok := r.polls[int(pr.Fd())]; ok {
		t.Fatal("expected poll to be removed from reactor.polls")
	}
}

func TestReactorStopForcesReturn(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	check := NewCheck(r, func() { r.Stop() })
	check.Start()

	if err := r.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
