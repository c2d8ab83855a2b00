package pool

import (
	"testing"

	"github.com/dcrichton/reactorcrawl/internal/rhandle"
)

func TestNewPreallocatesCapacity(t *testing.T) {
	p := New(3, nil)
	if p.Len() != 3 {
		t.Fatalf("expected 3 pre-allocated handles, got %d", p.Len())
	}
	if p.Cap() != 3 {
		t.Fatalf("expected capacity 3, got %d", p.Cap())
	}
}

func TestAcquireDrainsAndErrorsWhenExhausted(t *testing.T) {
	p := New(2, nil)

	h1, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	h2, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected two distinct handles")
	}
	if p.Len() != 0 {
		t.Fatalf("expected pool empty, got len %d", p.Len())
	}

	if _, err := p.Acquire(); err == nil {
		t.Fatal("expected an error acquiring from an exhausted pool")
	}
}

func TestReleaseReturnsHandleWithConfigurationIntact(t *testing.T) {
	p := New(1, nil)
	h, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h.SetURL("https://example.com", 4)
	h.SetUserAgent("custom")

	p.Release(h)

	if p.Len() != 1 {
		t.Fatalf("expected released handle back in pool, len %d", p.Len())
	}
	if h.UserAgent() != "custom" {
		t.Error("expected Release to preserve the handle's configured user agent across the idle round trip")
	}
}

func TestReleaseBeyondCapacityIsDroppedNotGrown(t *testing.T) {
	p := New(1, nil)
	h, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(h)
	if p.Len() != 1 {
		t.Fatalf("expected len 1 after release, got %d", p.Len())
	}

	extra, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(extra)
	p.Release(extra) // double-release past capacity

	if p.Len() != 1 {
		t.Fatalf("expected pool to stay at capacity 1, got %d", p.Len())
	}
}

func TestReleaseNilIsNoOp(t *testing.T) {
	p := New(1, nil)
	p.Release(nil)
	if p.Len() != 1 {
		t.Fatalf("expected nil release to be a no-op, len %d", p.Len())
	}
}

func TestPropagateAppliesToIdleHandlesOnly(t *testing.T) {
	p := New(2, nil)
	onLoan, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	p.Propagate(func(h *rhandle.Handle) { h.SetUserAgent("fleet-agent") })

	idle, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire remaining idle handle: %v", err)
	}
	if idle.UserAgent() != "fleet-agent" {
		t.Errorf("expected Propagate to reach the idle handle, got %q", idle.UserAgent())
	}
	if onLoan.UserAgent() == "fleet-agent" {
		t.Error("expected Propagate not to reach a handle currently on loan")
	}
}
