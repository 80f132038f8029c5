// Package runtime constructs and owns every compass component and binds
// them to one cooperative tick loop.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/internal/config"
	"github.com/signalsfoundry/target-compass/internal/console"
	"github.com/signalsfoundry/target-compass/internal/lifecycle"
	"github.com/signalsfoundry/target-compass/internal/logging"
	"github.com/signalsfoundry/target-compass/internal/navigation"
	"github.com/signalsfoundry/target-compass/internal/observability"
	"github.com/signalsfoundry/target-compass/internal/sched"
	"github.com/signalsfoundry/target-compass/internal/sensors"
	"github.com/signalsfoundry/target-compass/model"
	"github.com/signalsfoundry/target-compass/timectrl"
)

// Bridges are the external collaborators the runtime drives. Mailbox must be
// the sink the location bridge reports to.
type Bridges struct {
	Location    bridge.LocationBridge
	Mailbox     *bridge.Mailbox
	SensorBind  bridge.SensorBinder
	Host        bridge.HostHandle
	Permissions bridge.PermissionService
}

// Option customises a NavRuntime.
type Option func(*options)

type options struct {
	log     logging.Logger
	metrics *observability.NavCollector
	loop    *observability.LoopCollector
	mode    timectrl.Mode
	start   time.Time
	before  []func(timectrl.Tick)
}

// WithLogger sets the base logger; a session id is attached to it.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCollector attaches the Prometheus collector to every component.
func WithCollector(c *observability.NavCollector) Option {
	return func(o *options) { o.metrics = c }
}

// WithLoopCollector attaches tick loop metrics.
func WithLoopCollector(c *observability.LoopCollector) Option {
	return func(o *options) { o.loop = c }
}

// WithMode selects real-time or accelerated ticking.
func WithMode(m timectrl.Mode) Option {
	return func(o *options) { o.mode = m }
}

// WithStartTime sets the clock origin.
func WithStartTime(t time.Time) Option {
	return func(o *options) { o.start = t }
}

// WithBeforeTick registers fn to run at the start of every tick, ahead of
// deferrals and mailbox delivery.
func WithBeforeTick(fn func(timectrl.Tick)) Option {
	return func(o *options) { o.before = append(o.before, fn) }
}

// NavRuntime owns the clock, scheduler, models, lifecycle, sensor loop and
// bearing engine. Every mutation happens on the tick goroutine; work from
// other goroutines goes through Post.
type NavRuntime struct {
	Clock      *timectrl.TimeController
	Scheduler  sched.EventScheduler
	Location   *model.LocationModel
	Sensors    *model.SensorModel
	Lifecycle  *lifecycle.Lifecycle
	SensorLoop *sensors.Loop
	Engine     *navigation.Engine

	bridges   Bridges
	sink      bridge.LocationSink
	log       logging.Logger
	loop      *observability.LoopCollector
	before    []func(timectrl.Tick)
	ctx       context.Context
	sessionID string

	mu         sync.Mutex
	posted     []func()
	foreground bool
	shutdown   bool
}

// New wires a runtime from cfg and the given bridges.
func New(cfg config.Config, b Bridges, opts ...Option) (*NavRuntime, error) {
	if b.Location == nil {
		return nil, fmt.Errorf("location bridge is nil")
	}
	if b.Mailbox == nil {
		return nil, fmt.Errorf("mailbox is nil")
	}
	if b.Permissions == nil {
		return nil, fmt.Errorf("permission service is nil")
	}

	o := options{mode: timectrl.RealTime, start: time.Now()}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, log := logging.WithSessionLogger(context.Background(), logging.OrNoop(o.log))

	target, err := cfg.TargetPoint()
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	sensorCfg, err := cfg.SensorConfig()
	if err != nil {
		return nil, err
	}

	r := &NavRuntime{
		Clock:      timectrl.NewTimeController(o.start, cfg.Loop.Tick, o.mode),
		Location:   model.NewLocationModel(),
		Sensors:    model.NewSensorModel(),
		bridges:    b,
		log:        log.With(logging.Component("runtime")),
		loop:       o.loop,
		before:     o.before,
		ctx:        ctx,
		sessionID:  logging.SessionIDFromContext(ctx),
		foreground: true,
	}
	r.Scheduler = sched.NewEventScheduler(r.Clock)

	lcOpts := []lifecycle.Option{lifecycle.WithLogger(log)}
	slOpts := []sensors.Option{sensors.WithLogger(log)}
	navOpts := []navigation.Option{
		navigation.WithLogger(log),
		navigation.WithThresholds(cfg.Accuracy.Indicator),
	}
	if o.metrics != nil {
		lcOpts = append(lcOpts, lifecycle.WithMetricsRecorder(o.metrics))
		slOpts = append(slOpts, sensors.WithMetricsRecorder(o.metrics))
		navOpts = append(navOpts, navigation.WithMetricsRecorder(o.metrics))
	}

	r.Lifecycle = lifecycle.New(cfg.LifecycleConfig(), b.Location, b.Permissions, r.Scheduler, r.Location, lcOpts...)
	r.SensorLoop = sensors.New(sensorCfg, b.SensorBind, b.Host, b.Permissions, r.Scheduler, r.Sensors, slOpts...)
	r.Engine = navigation.NewEngine(r.Location, r.Sensors, target, navOpts...)
	r.sink = r.Lifecycle.Sink(ctx)

	r.Clock.AddListener(r.onTick)
	return r, nil
}

// Context returns the session context carrying the runtime logger.
func (r *NavRuntime) Context() context.Context { return r.ctx }

// SessionID returns the id attached to every log line of this runtime.
func (r *NavRuntime) SessionID() string { return r.sessionID }

// Initialize binds both plugins and schedules their deferred starts. A sensor
// bind failure leaves the sensor loop inert and is only logged.
func (r *NavRuntime) Initialize() {
	r.log.Info(r.ctx, "initializing compass runtime",
		logging.String("target", r.Engine.Target().String()),
		logging.Duration("tick", r.Clock.Interval),
	)
	r.Lifecycle.Initialize(r.ctx)
	if err := r.SensorLoop.Initialize(r.ctx); err != nil {
		r.log.Warn(r.ctx, "sensors unavailable for this session", logging.Err(err))
	}
}

// Run drives the tick loop for duration (forever when zero) or until ctx is
// cancelled.
func (r *NavRuntime) Run(ctx context.Context, duration time.Duration) error {
	return r.Clock.Run(ctx, duration)
}

// Step advances exactly one tick.
func (r *NavRuntime) Step() timectrl.Tick {
	return r.Clock.Step()
}

// Post queues fn to run at the start of the next tick.
func (r *NavRuntime) Post(fn func()) {
	r.mu.Lock()
	r.posted = append(r.posted, fn)
	r.mu.Unlock()
}

func (r *NavRuntime) onTick(t timectrl.Tick) {
	began := time.Now()

	r.mu.Lock()
	posted := r.posted
	r.posted = nil
	done := r.shutdown
	r.mu.Unlock()
	if done {
		return
	}

	for _, fn := range r.before {
		fn(t)
	}
	for _, fn := range posted {
		fn()
	}
	r.Scheduler.RunDue()
	r.bridges.Mailbox.Drain(r.sink)
	r.Lifecycle.Tick(r.ctx, t.Frame)
	r.SensorLoop.Tick(r.ctx, t.Delta)

	r.loop.ObserveTick(time.Since(began), r.Scheduler.Pending(), r.bridges.Mailbox.Dropped())
}

// SetForeground forwards a host focus change to the lifecycle and the sensor
// loop. Call it on the tick goroutine or through Post.
func (r *NavRuntime) SetForeground(foreground bool) {
	r.mu.Lock()
	changed := r.foreground != foreground
	r.foreground = foreground
	r.mu.Unlock()
	if !changed {
		return
	}

	r.log.Info(r.ctx, "host focus changed", logging.Bool("foreground", foreground))
	r.Lifecycle.SetForeground(r.ctx, foreground)
	r.SensorLoop.SetForeground(r.ctx, foreground)
}

// Foreground reports the last forwarded focus state.
func (r *NavRuntime) Foreground() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.foreground
}

// SetTarget replaces the navigation target.
func (r *NavRuntime) SetTarget(t model.Target) {
	r.Engine.SetTarget(t)
}

// DebugStatus logs and returns a diagnostic dump of the location state.
func (r *NavRuntime) DebugStatus() []string {
	lines := console.DebugLines(r.Location, r.Lifecycle.IsTracking(), r.Lifecycle.HasLocationPermissions())
	lines = append(lines,
		fmt.Sprintf("Lifecycle: %s", r.Lifecycle.State()),
		fmt.Sprintf("Sensors: available=%v active=%v", r.SensorLoop.Available(), r.SensorLoop.Active()),
		fmt.Sprintf("Frame: %d", r.Clock.Frame()),
	)
	for _, l := range lines {
		r.log.Info(r.ctx, l)
	}
	return lines
}

// Shutdown stops tracking and sensors and detaches every internal
// subscription. Later ticks are ignored.
func (r *NavRuntime) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true
	r.mu.Unlock()

	ctx = logging.ContextWithSessionID(ctx, r.sessionID)
	r.Lifecycle.Shutdown(ctx)
	r.SensorLoop.Shutdown(ctx)
	r.Engine.Close()
	r.log.Info(ctx, "compass runtime stopped",
		logging.Int64("frames", int64(r.Clock.Frame())),
		logging.Int64("fixes", int64(r.Location.UpdateCount())),
	)
}
