package sched

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a minimal test-only implementation of SimClock for scheduler tests.
type fakeClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *fakeClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func TestEventScheduler_SingleEvent(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	var counter int
	t1 := start.Add(10 * time.Second)

	id := sched.Schedule(t1, func() {
		counter++
	})
	if id == "" {
		t.Fatalf("Schedule returned empty ID")
	}

	sched.RunDue()
	if counter != 0 {
		t.Fatalf("expected counter=0 before time advance, got %d", counter)
	}

	clock.AdvanceTo(t1)
	sched.RunDue()
	if counter != 1 {
		t.Fatalf("expected counter=1 after time advance, got %d", counter)
	}

	sched.RunDue()
	if counter != 1 {
		t.Fatalf("expected counter=1 after second RunDue, got %d", counter)
	}
}

func TestEventScheduler_MultipleEventsInOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	var executionOrder []string
	sched.Schedule(start.Add(30*time.Second), func() { executionOrder = append(executionOrder, "e3") })
	sched.Schedule(start.Add(10*time.Second), func() { executionOrder = append(executionOrder, "e1") })
	sched.Schedule(start.Add(20*time.Second), func() { executionOrder = append(executionOrder, "e2") })

	clock.AdvanceTo(start.Add(20 * time.Second))
	sched.RunDue()
	if len(executionOrder) != 2 || executionOrder[0] != "e1" || executionOrder[1] != "e2" {
		t.Fatalf("expected execution order [e1 e2], got %v", executionOrder)
	}

	clock.AdvanceTo(start.Add(30 * time.Second))
	sched.RunDue()
	if len(executionOrder) != 3 || executionOrder[2] != "e3" {
		t.Fatalf("expected execution order [e1 e2 e3], got %v", executionOrder)
	}
}

func TestEventScheduler_SameInstantKeepsSchedulingOrder(t *testing.T) {
	start := time.Unix(0, 0)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	var order []int
	for i := range 4 {
		sched.After(time.Second, func() { order = append(order, i) })
	}

	clock.AdvanceTo(start.Add(time.Second))
	sched.RunDue()

	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want [0 1 2 3]", order)
		}
	}
}

func TestEventScheduler_AfterIsRelativeToNow(t *testing.T) {
	start := time.Unix(100, 0)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	fired := false
	sched.After(2*time.Second, func() { fired = true })

	clock.AdvanceTo(start.Add(1999 * time.Millisecond))
	sched.RunDue()
	if fired {
		t.Fatalf("event fired before its delay elapsed")
	}

	clock.AdvanceTo(start.Add(2 * time.Second))
	sched.RunDue()
	if !fired {
		t.Fatalf("event did not fire once its delay elapsed")
	}
}

func TestEventScheduler_Cancellation(t *testing.T) {
	start := time.Unix(0, 0)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	var counter int
	id := sched.Schedule(start.Add(10*time.Second), func() { counter++ })
	if got := sched.Pending(); got != 1 {
		t.Fatalf("Pending() = %d, want 1", got)
	}

	sched.Cancel(id)
	sched.Cancel("unknown-id")
	if got := sched.Pending(); got != 0 {
		t.Fatalf("Pending() after cancel = %d, want 0", got)
	}

	clock.AdvanceTo(start.Add(10 * time.Second))
	sched.RunDue()
	if counter != 0 {
		t.Fatalf("expected cancelled event to not run, counter=%d", counter)
	}
}

func TestEventScheduler_Reentrancy(t *testing.T) {
	start := time.Unix(0, 0)
	clock := newFakeClock(start)
	sched := NewEventScheduler(clock)

	var counter int
	sched.Schedule(start.Add(10*time.Second), func() {
		counter++
		// Already due: must run within the same RunDue pass.
		sched.Schedule(start, func() { counter++ })
		sched.Schedule(start.Add(20*time.Second), func() { counter++ })
	})

	clock.AdvanceTo(start.Add(10 * time.Second))
	sched.RunDue()
	if counter != 2 {
		t.Fatalf("expected counter=2 after first pass, got %d", counter)
	}

	clock.AdvanceTo(start.Add(20 * time.Second))
	sched.RunDue()
	if counter != 3 {
		t.Fatalf("expected counter=3 after nested event, got %d", counter)
	}
}
