// Package simbridge provides simulated location, sensor and permission
// providers that satisfy the bridge contracts. They drive the compass when no
// native plugin is present and back the package tests.
package simbridge

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/golang/geo/s2"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/model"
)

// LocationConfig describes the simulated walk.
type LocationConfig struct {
	Start       s2.LatLng
	Altitude    float64
	Course      float64       // degrees, direction of travel
	Speed       float64       // metres per second
	Accuracy    float64       // metres
	Jitter      float64       // max random accuracy deviation, metres
	FixInterval time.Duration // simulated time between fixes
	Provider    string
	Seed        int64
}

// DefaultLocationConfig walks north-east at walking pace from a point a few
// hundred metres south-west of the default target.
func DefaultLocationConfig() LocationConfig {
	return LocationConfig{
		Start:       s2.LatLngFromDegrees(53.950, 27.672),
		Altitude:    220,
		Course:      45,
		Speed:       1.4,
		Accuracy:    6,
		Jitter:      4,
		FixInterval: time.Second,
		Provider:    "gps",
		Seed:        1,
	}
}

// LocationProvider is a simulated location plugin. It pushes fixes and
// status payloads to its sink while started.
type LocationProvider struct {
	mu          sync.Mutex
	cfg         LocationConfig
	sink        bridge.LocationSink
	pos         s2.LatLng
	rng         *rand.Rand
	elapsed     time.Duration
	initialized bool
	started     bool
	initErr     error
	startErr    error
	panicOnStop bool
	emitted     uint64
}

// NewLocationProvider builds a provider that reports to sink.
func NewLocationProvider(cfg LocationConfig, sink bridge.LocationSink) *LocationProvider {
	if cfg.FixInterval <= 0 {
		cfg.FixInterval = time.Second
	}
	if cfg.Provider == "" {
		cfg.Provider = "gps"
	}
	return &LocationProvider{
		cfg:  cfg,
		sink: sink,
		pos:  cfg.Start,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
	}
}

// FailInitialize makes the next Initialize calls return err.
func (p *LocationProvider) FailInitialize(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initErr = err
}

// FailStart makes StartUpdates return err until cleared with nil.
func (p *LocationProvider) FailStart(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
}

// PanicOnStop makes StopUpdates panic, mimicking a native crash.
func (p *LocationProvider) PanicOnStop(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.panicOnStop = v
}

func (p *LocationProvider) Initialize() error {
	p.mu.Lock()
	if p.initErr != nil {
		err := p.initErr
		p.mu.Unlock()
		return err
	}
	p.initialized = true
	p.mu.Unlock()

	p.sink.OnProviderEnabled(p.cfg.Provider)
	return nil
}

func (p *LocationProvider) StartUpdates() error {
	p.mu.Lock()
	switch {
	case !p.initialized:
		p.mu.Unlock()
		return bridge.ErrNotBound
	case p.startErr != nil:
		err := p.startErr
		p.mu.Unlock()
		return err
	}
	p.started = true
	p.elapsed = 0
	p.mu.Unlock()

	p.sink.OnStatus(bridge.FormatStatus(bridge.StatusStarted, 0))
	return nil
}

func (p *LocationProvider) StopUpdates() error {
	p.mu.Lock()
	if p.panicOnStop {
		p.mu.Unlock()
		panic("simulated native failure in stopLocationUpdates")
	}
	if !p.initialized {
		p.mu.Unlock()
		return bridge.ErrNotBound
	}
	p.started = false
	p.mu.Unlock()

	p.sink.OnStatus(bridge.FormatStatus(bridge.StatusStopped, 0))
	return nil
}

// Started reports whether updates are currently flowing.
func (p *LocationProvider) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Position returns the current simulated position.
func (p *LocationProvider) Position() s2.LatLng {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Emitted returns how many fixes have been pushed.
func (p *LocationProvider) Emitted() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.emitted
}

// SetProviderEnabled pushes a provider enable or disable notice.
func (p *LocationProvider) SetProviderEnabled(enabled bool) {
	if enabled {
		p.sink.OnProviderEnabled(p.cfg.Provider)
		return
	}
	p.sink.OnProviderDisabled(p.cfg.Provider)
}

// Advance moves simulated time forward by d and emits one fix per elapsed
// FixInterval while started.
func (p *LocationProvider) Advance(d time.Duration) {
	var out []string

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.elapsed += d
	for p.elapsed >= p.cfg.FixInterval {
		p.elapsed -= p.cfg.FixInterval
		step := p.cfg.Speed * p.cfg.FixInterval.Seconds()
		p.pos = core.Destination(p.pos, p.cfg.Course, step)
		out = append(out, bridge.FormatFix(p.fixLocked()))
		p.emitted++
	}
	p.mu.Unlock()

	for _, payload := range out {
		p.sink.OnFix(payload)
	}
}

func (p *LocationProvider) fixLocked() model.Fix {
	acc := p.cfg.Accuracy
	if p.cfg.Jitter > 0 {
		acc += (p.rng.Float64()*2 - 1) * p.cfg.Jitter
		if acc < 1 {
			acc = 1
		}
	}
	return model.Fix{
		Latitude:  p.pos.Lat.Degrees(),
		Longitude: p.pos.Lng.Degrees(),
		Altitude:  p.cfg.Altitude,
		Accuracy:  acc,
		Speed:     p.cfg.Speed,
		Bearing:   p.cfg.Course,
	}
}

// Run drives Advance from a wall-clock ticker on its own goroutine until ctx
// is cancelled, the way a native provider pushes asynchronously.
func (p *LocationProvider) Run(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = p.cfg.FixInterval
	}
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Advance(interval)
			}
		}
	}()
	return done
}

// errUnavailable is returned by the plugin-missing helper.
var errUnavailable = errors.New("location plugin class not found")

// MissingPlugin returns a provider whose Initialize always fails, as when the
// native plugin is absent from the host.
func MissingPlugin(sink bridge.LocationSink) *LocationProvider {
	p := NewLocationProvider(DefaultLocationConfig(), sink)
	p.FailInitialize(errUnavailable)
	return p
}
