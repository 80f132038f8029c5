package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for accessing host loop time. Components that defer
// work (the one-shot scheduler, the acquisition lifecycle) depend on this
// abstraction rather than on a concrete controller, so tests can drive time.
type SimClock interface {
	// Now returns the current loop time.
	Now() time.Time
}

// Mode describes how the TimeController advances loop time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by the tick interval.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Tick describes one iteration of the host loop.
type Tick struct {
	// Frame is the 1-based count of ticks since the controller was created.
	Frame uint64
	// Now is the loop time after this tick advanced it.
	Now time.Time
	// Delta is the loop time elapsed since the previous tick.
	Delta time.Duration
}

// TimeController drives the cooperative host loop. Every tick advances loop
// time by Interval, increments the frame counter and invokes the registered
// listeners one after another on the same goroutine.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Interval  time.Duration
	Mode      Mode

	currentTime time.Time
	frame       uint64

	listeners []func(Tick)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, interval time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Interval:    interval,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current loop time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Frame returns the number of ticks executed so far.
func (tc *TimeController) Frame() uint64 {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.frame
}

// AddListener registers a callback invoked on every tick, in registration order.
func (tc *TimeController) AddListener(fn func(Tick)) {
	tc.mu.Lock()
	tc.listeners = append(tc.listeners, fn)
	tc.mu.Unlock()
}

// Step executes exactly one tick and returns it.
func (tc *TimeController) Step() Tick {
	tc.mu.Lock()
	tc.frame++
	tc.currentTime = tc.currentTime.Add(tc.Interval)
	tick := Tick{Frame: tc.frame, Now: tc.currentTime, Delta: tc.Interval}
	listeners := append([]func(Tick){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(tick)
	}
	return tick
}

// Run drives the loop on the calling goroutine until duration of loop time
// has elapsed (duration <= 0 means forever) or ctx is cancelled.
func (tc *TimeController) Run(ctx context.Context, duration time.Duration) error {
	if tc.Interval <= 0 {
		return nil
	}

	var ticker *time.Ticker
	if tc.Mode == RealTime {
		ticker = time.NewTicker(tc.Interval)
		defer ticker.Stop()
	}

	elapsed := time.Duration(0)
	for {
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		tc.Step()
		elapsed += tc.Interval
	}
}
