package ppp

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a virtual hal.Clock: Now advances only via After, so a test
// can drive many long timeouts without waiting in real time.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// fakeResetPin records every SetLow/SetHigh call in order.
type fakeResetPin struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakeResetPin) SetLow() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "low")
	return nil
}

func (p *fakeResetPin) SetHigh() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "high")
	return nil
}

func TestHardResetTogglesPinLowThenHigh(t *testing.T) {
	reset := &fakeResetPin{}
	b := &Bridge{reset: reset, clock: &fakeClock{}}

	if err := b.hardReset(context.Background()); err != nil {
		t.Fatalf("hardReset() error = %v", err)
	}
	if len(reset.calls) != 2 || reset.calls[0] != "low" || reset.calls[1] != "high" {
		t.Errorf("calls = %v, want [low high]", reset.calls)
	}
}

func TestHardResetWithoutPinIsNoOp(t *testing.T) {
	b := &Bridge{reset: nil, clock: &fakeClock{}}
	if err := b.hardReset(context.Background()); err != nil {
		t.Fatalf("hardReset() error = %v", err)
	}
}

func TestAccumulateFailureResetsAfterStableSession(t *testing.T) {
	fails, unstable := accumulateFailure(stableUpDuration+time.Second, 9)
	if fails != 0 || unstable {
		t.Errorf("accumulateFailure() = (%d, %v), want (0, false)", fails, unstable)
	}
}

func TestAccumulateFailureIncrementsOnQuickFailure(t *testing.T) {
	fails, unstable := accumulateFailure(time.Second, 3)
	if fails != 4 || unstable {
		t.Errorf("accumulateFailure() = (%d, %v), want (4, false)", fails, unstable)
	}
}

func TestAccumulateFailureReportsUnstableAtThreshold(t *testing.T) {
	fails := 0
	var unstable bool
	for i := 0; i < maxFailsBeforeReboot; i++ {
		fails, unstable = accumulateFailure(time.Second, fails)
	}
	if fails != maxFailsBeforeReboot || !unstable {
		t.Errorf("after %d quick failures: (%d, %v), want (%d, true)", maxFailsBeforeReboot, fails, unstable, maxFailsBeforeReboot)
	}
}

func TestAccumulateFailureExactlyAtStableBoundaryStillCounts(t *testing.T) {
	// elapsed == stableUpDuration (not strictly greater) does not count as
	// a stable session — only a session that outlasted the window does.
	fails, unstable := accumulateFailure(stableUpDuration, 0)
	if fails != 1 || unstable {
		t.Errorf("accumulateFailure() = (%d, %v), want (1, false)", fails, unstable)
	}
}
