// Package navigation derives distance and device-relative bearing to the
// configured target from the location and sensor models.
package navigation

import (
	"context"
	"sync"

	"github.com/golang/geo/s2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/event"
	"github.com/signalsfoundry/target-compass/internal/logging"
	"github.com/signalsfoundry/target-compass/model"
)

const tracerName = "github.com/signalsfoundry/target-compass/internal/navigation"

// Output is one derived navigation result.
type Output struct {
	Position        s2.LatLng
	Distance        float64 // metres
	TargetBearing   float64 // degrees from north
	DeviceHeading   float64 // degrees from north
	RelativeBearing float64 // degrees clockwise from device heading
	Accuracy        float64 // metres
	AccuracyClass   core.AccuracyClass
}

// MetricsRecorder receives every computed output.
type MetricsRecorder interface {
	NavigationUpdated(distance, relativeBearing float64, class string)
}

// Option customises an Engine.
type Option func(*Engine)

// WithThresholds overrides the accuracy classification thresholds.
func WithThresholds(t core.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNoop(l) }
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine recomputes navigation output whenever either model publishes. It
// holds nothing but the last output and the target.
type Engine struct {
	location   *model.LocationModel
	sensors    *model.SensorModel
	thresholds core.Thresholds
	log        logging.Logger
	metrics    MetricsRecorder
	tracer     trace.Tracer

	mu           sync.RWMutex
	target       model.Target
	out          Output
	computed     bool
	computations uint64

	updated event.Bus[Output]
	unsubs  []func()
}

// NewEngine subscribes a new engine to both models.
func NewEngine(location *model.LocationModel, sensors *model.SensorModel, target model.Target, opts ...Option) *Engine {
	e := &Engine{
		location:   location,
		sensors:    sensors,
		target:     target,
		thresholds: core.IndicatorThresholds,
		log:        logging.Noop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logging.Component("navigation"))

	e.unsubs = append(e.unsubs,
		location.OnDataUpdated(func() { e.Recompute() }),
		sensors.OnUpdated(func(model.SensorSnapshot) { e.Recompute() }),
	)
	return e
}

// Recompute derives a fresh output when the location is valid and a
// committed snapshot carries an orientation reading. Otherwise the previous
// output is kept and false is returned.
func (e *Engine) Recompute() bool {
	if !e.location.HasValidData() {
		return false
	}
	orient := e.sensors.Snapshot().Orientation
	if !orient.Valid {
		return false
	}

	_, span := e.tracer.Start(context.Background(), "navigation.recompute")
	defer span.End()

	fix := e.location.Fix()
	heading := orient.Heading

	e.mu.Lock()
	target := e.target.LatLng
	pos := fix.LatLng()
	bearing := core.Bearing(pos, target)
	out := Output{
		Position:        pos,
		Distance:        core.Distance(pos, target),
		TargetBearing:   bearing,
		DeviceHeading:   heading,
		RelativeBearing: core.RelativeBearing(bearing, heading),
		Accuracy:        fix.Accuracy,
		AccuracyClass:   e.thresholds.Classify(fix.Accuracy),
	}
	e.out = out
	e.computed = true
	e.computations++
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Float64("distance_m", out.Distance),
		attribute.Float64("relative_bearing", out.RelativeBearing),
		attribute.String("accuracy", out.AccuracyClass.String()),
	)
	if e.metrics != nil {
		e.metrics.NavigationUpdated(out.Distance, out.RelativeBearing, out.AccuracyClass.String())
	}
	e.updated.Publish(out)
	return true
}

// SetTarget replaces the target and recomputes immediately.
func (e *Engine) SetTarget(t model.Target) {
	e.mu.Lock()
	e.target = t
	e.mu.Unlock()

	e.log.Info(context.Background(), "target changed",
		logging.String("name", t.Name),
		logging.Float64("lat", t.Latitude()),
		logging.Float64("lon", t.Longitude()),
	)
	e.Recompute()
}

// Target returns the current target.
func (e *Engine) Target() model.Target {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.target
}

// Output returns the last computed output and whether one exists.
func (e *Engine) Output() (Output, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.out, e.computed
}

// DistanceToTarget returns the great-circle distance from the current fix to
// the target, or 0 while the location model holds no valid fix. It does not
// need a heading.
func (e *Engine) DistanceToTarget() float64 {
	if !e.location.HasValidData() {
		return 0
	}
	pos := e.location.Fix().LatLng()

	e.mu.RLock()
	target := e.target.LatLng
	e.mu.RUnlock()
	return core.Distance(pos, target)
}

// CurrentAccuracy returns the location model's accuracy radius, which is
// model.UnknownAccuracy before the first fix.
func (e *Engine) CurrentAccuracy() float64 {
	return e.location.Accuracy()
}

// Computations returns how many outputs have been derived.
func (e *Engine) Computations() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.computations
}

// OnUpdated subscribes to computed outputs.
func (e *Engine) OnUpdated(fn func(Output)) (unsubscribe func()) {
	return e.updated.Subscribe(fn)
}

// Close detaches the engine from both models.
func (e *Engine) Close() {
	for _, u := range e.unsubs {
		u()
	}
	e.unsubs = nil
}
