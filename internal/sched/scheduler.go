package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/target-compass/timectrl"
)

// EventScheduler runs one-shot continuations once loop time reaches their due
// time. The host loop calls RunDue on every tick, so continuations execute on
// the tick goroutine and never block it while they wait.
type EventScheduler interface {
	// Schedule registers a callback f to run at loop time 'at'.
	// It returns an opaque event ID that can be used to cancel the event.
	Schedule(at time.Time, f func()) (id string)

	// After schedules f to run once d has elapsed from Now().
	After(d time.Duration, f func()) (id string)

	// Cancel attempts to cancel a previously scheduled event.
	// It is a no-op if the ID is unknown or the event already ran.
	Cancel(id string)

	// Now returns the current loop time, delegated to the underlying SimClock.
	Now() time.Time

	// Pending reports how many events are waiting to run.
	Pending() int

	// RunDue executes all events whose scheduled time is <= Now().
	// Already-run events never run again.
	RunDue()
}

type scheduledEvent struct {
	id        string
	when      time.Time
	seq       uint64
	f         func()
	cancelled bool
}

type eventScheduler struct {
	clock timectrl.SimClock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when', then by insertion
	index   map[string]*scheduledEvent
}

// NewEventScheduler creates a new event scheduler backed by the given SimClock.
func NewEventScheduler(clock timectrl.SimClock) EventScheduler {
	return &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
}

// Schedule registers a callback to run at the specified loop time.
func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		seq:  s.counter,
		f:    f,
	}
	s.addEventLocked(ev)
	s.index[id] = ev

	return id
}

// After schedules f relative to the current loop time.
func (s *eventScheduler) After(d time.Duration, f func()) (id string) {
	return s.Schedule(s.clock.Now().Add(d), f)
}

// addEventLocked inserts an event keeping time order; events due at the same
// instant keep their scheduling order. Caller must hold s.mu.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})

	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

// Cancel attempts to cancel a previously scheduled event.
func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}

	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

// Now returns the current loop time from the underlying clock.
func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

// Pending reports how many non-cancelled events are waiting to run.
func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// popNextLocked removes and returns the earliest due, non-cancelled event.
// Caller must hold s.mu.
func (s *eventScheduler) popNextLocked() *scheduledEvent {
	now := s.clock.Now()
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		delete(s.index, ev.id)
		return ev
	}
	return nil
}

// RunDue executes all events whose scheduled time is <= Now().
func (s *eventScheduler) RunDue() {
	for {
		s.mu.Lock()
		ev := s.popNextLocked()
		s.mu.Unlock()

		if ev == nil {
			return
		}

		// Callbacks run outside the lock so they can schedule follow-ups.
		if ev.f != nil {
			ev.f()
		}
	}
}
