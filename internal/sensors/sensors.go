// Package sensors polls the native sensor plugin at a fixed cadence and
// commits whole snapshots to the sensor model.
package sensors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/internal/event"
	"github.com/signalsfoundry/target-compass/internal/logging"
	"github.com/signalsfoundry/target-compass/internal/sched"
	"github.com/signalsfoundry/target-compass/model"
)

const tracerName = "github.com/signalsfoundry/target-compass/internal/sensors"

var (
	// ErrUnavailable reports that the sensor plugin could not be bound.
	ErrUnavailable = errors.New("sensor plugin unavailable")
	// ErrShortRead reports a channel read that returned fewer values than
	// the channel carries.
	ErrShortRead = errors.New("short sensor read")
)

// Config controls the polling loop.
type Config struct {
	PollInterval   time.Duration
	StartDelay     time.Duration
	PermissionWait time.Duration
	Channels       []bridge.Channel
}

// DefaultConfig polls every channel ten times a second.
func DefaultConfig() Config {
	return Config{
		PollInterval:   100 * time.Millisecond,
		StartDelay:     500 * time.Millisecond,
		PermissionWait: time.Second,
		Channels:       bridge.AllChannels(),
	}
}

// MetricsRecorder receives polling counters.
type MetricsRecorder interface {
	SensorPoll(ok bool)
	SensorReadError(channel string)
}

// Option customises a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(lp *Loop) { lp.log = logging.OrNoop(l) }
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(lp *Loop) { lp.metrics = m }
}

// Loop is the sensor acquisition loop. Tick, Initialize and SetForeground
// run on the tick goroutine.
type Loop struct {
	cfg       Config
	binder    bridge.SensorBinder
	host      bridge.HostHandle
	perms     bridge.PermissionService
	scheduler sched.EventScheduler
	model     *model.SensorModel
	log       logging.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer

	mu        sync.RWMutex
	sensors   bridge.SensorBridge
	available bool
	active    bool
	timer     time.Duration
	polls     uint64
	failures  uint64
	lastErr   error

	initialized event.Signal
}

// New creates a loop that binds through binder with the given host handle.
func New(cfg Config, binder bridge.SensorBinder, host bridge.HostHandle, perms bridge.PermissionService, scheduler sched.EventScheduler, m *model.SensorModel, opts ...Option) *Loop {
	if len(cfg.Channels) == 0 {
		cfg.Channels = bridge.AllChannels()
	}
	lp := &Loop{
		cfg:       cfg,
		binder:    binder,
		host:      host,
		perms:     perms,
		scheduler: scheduler,
		model:     m,
		log:       logging.Noop(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(lp)
	}
	lp.log = lp.log.With(logging.Component("sensors"))
	return lp
}

// Initialize binds the plugin and schedules sensor start after StartDelay.
// Without fine location permission a request is raised and the start waits
// a further PermissionWait. A bind failure marks the loop unavailable; the
// returned error wraps ErrUnavailable.
func (lp *Loop) Initialize(ctx context.Context) error {
	if lp.binder == nil {
		lp.fail(ErrUnavailable)
		lp.log.Error(ctx, "no sensor binder configured")
		return ErrUnavailable
	}

	var sb bridge.SensorBridge
	err := bridge.Call("bind", func() (err error) {
		sb, err = lp.binder.Bind(lp.host)
		return err
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		lp.fail(err)
		lp.log.Error(ctx, "sensor plugin bind failed", logging.Err(err))
		return err
	}

	lp.mu.Lock()
	lp.sensors = sb
	lp.available = true
	lp.mu.Unlock()
	lp.log.Info(ctx, "sensor plugin bound", logging.Int("channels", len(lp.cfg.Channels)))

	lp.scheduler.After(lp.cfg.StartDelay, func() {
		if lp.perms != nil && !lp.perms.Granted(bridge.FineLocation) {
			lp.log.Warn(ctx, "fine location permission missing, requesting before sensor start")
			lp.perms.Request(bridge.FineLocation)
			lp.scheduler.After(lp.cfg.PermissionWait, func() { lp.startAndSignal(ctx) })
			return
		}
		lp.startAndSignal(ctx)
	})
	return nil
}

func (lp *Loop) startAndSignal(ctx context.Context) {
	lp.StartSensors(ctx)
	lp.initialized.Fire()
}

// StartSensors starts the plugin's sensors. Active reflects whether the
// plugin reports them started afterwards.
func (lp *Loop) StartSensors(ctx context.Context) {
	sb := lp.bound()
	if sb == nil {
		return
	}
	if err := bridge.Call("start_sensors", sb.StartSensors); err != nil {
		lp.setErr(err)
		lp.log.Error(ctx, "failed to start sensors", logging.Err(err))
	}
	active := false
	_ = bridge.Call("are_sensors_started", func() error {
		active = sb.AreSensorsStarted()
		return nil
	})

	lp.mu.Lock()
	lp.active = active
	lp.timer = 0
	lp.mu.Unlock()
	lp.log.Info(ctx, "sensors started", logging.Bool("active", active))
}

// StopSensors stops the plugin's sensors and halts polling.
func (lp *Loop) StopSensors(ctx context.Context) {
	sb := lp.bound()
	if sb == nil {
		return
	}
	if err := bridge.Call("stop_sensors", sb.StopSensors); err != nil {
		lp.setErr(err)
		lp.log.Error(ctx, "failed to stop sensors", logging.Err(err))
	}
	lp.mu.Lock()
	lp.active = false
	lp.mu.Unlock()
	lp.log.Info(ctx, "sensors stopped")
}

// Tick accumulates delta and polls once the accumulated time reaches
// PollInterval, after which the accumulator resets to zero. At most one poll
// happens per tick.
func (lp *Loop) Tick(ctx context.Context, delta time.Duration) {
	lp.mu.Lock()
	if !lp.available || !lp.active {
		lp.mu.Unlock()
		return
	}
	lp.timer += delta
	due := lp.timer >= lp.cfg.PollInterval
	if due {
		lp.timer = 0
	}
	lp.mu.Unlock()

	if due {
		_ = lp.Poll(ctx)
	}
}

// Poll reads every configured channel and commits the result as one
// snapshot. Any failed or short read abandons the poll and leaves the model
// unchanged.
func (lp *Loop) Poll(ctx context.Context) error {
	sb := lp.bound()
	if sb == nil {
		return ErrUnavailable
	}
	ctx, span := lp.tracer.Start(ctx, "sensors.poll", trace.WithAttributes(
		attribute.Int("channels", len(lp.cfg.Channels)),
	))
	defer span.End()

	snap := lp.model.Snapshot()
	for _, ch := range lp.cfg.Channels {
		var values []float64
		err := bridge.Call("read "+ch.String(), func() (err error) {
			values, err = sb.Read(ch)
			return err
		})
		if err == nil && len(values) < ch.Width() {
			err = fmt.Errorf("%w: %s returned %d of %d values", ErrShortRead, ch, len(values), ch.Width())
		}
		if err != nil {
			lp.recordPoll(false)
			if lp.metrics != nil {
				lp.metrics.SensorReadError(ch.String())
			}
			lp.setErr(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			lp.log.Warn(ctx, "sensor poll abandoned", logging.String("channel", ch.String()), logging.Err(err))
			return err
		}
		apply(&snap, ch, values)
	}

	lp.model.Commit(snap)
	lp.recordPoll(true)
	return nil
}

func apply(s *model.SensorSnapshot, ch bridge.Channel, v []float64) {
	vec := func() model.Vec3 { return model.Vec3{X: v[0], Y: v[1], Z: v[2]} }
	switch ch {
	case bridge.Accelerometer:
		s.Accelerometer = vec()
	case bridge.Gyroscope:
		s.Gyroscope = vec()
	case bridge.Magnetometer:
		s.Magnetometer = vec()
	case bridge.Gravity:
		s.Gravity = vec()
	case bridge.LinearAcceleration:
		s.LinearAcceleration = vec()
	case bridge.RotationVector:
		s.RotationVector = vec()
	case bridge.GameRotationVector:
		s.GameRotationVector = vec()
	case bridge.GeomagneticRotationVector:
		s.GeomagneticRotationVector = vec()
	case bridge.Orientation:
		// The plugin reports heading in the second slot.
		s.Orientation = model.Orientation{Pitch: v[0], Heading: v[1], Roll: v[2], Valid: true}
	case bridge.Light:
		s.Light = v[0]
	case bridge.Proximity:
		s.Proximity = v[0]
	case bridge.Pressure:
		s.Pressure = v[0]
	case bridge.Humidity:
		s.Humidity = v[0]
	case bridge.AmbientTemperature:
		s.AmbientTemperature = v[0]
	}
}

// SetForeground stops sensors when the host goes to the background and
// restarts them when it returns.
func (lp *Loop) SetForeground(ctx context.Context, foreground bool) {
	if !lp.Available() {
		return
	}
	if foreground {
		lp.StartSensors(ctx)
		return
	}
	lp.StopSensors(ctx)
}

// Shutdown stops the sensors.
func (lp *Loop) Shutdown(ctx context.Context) {
	if lp.Active() {
		lp.StopSensors(ctx)
	}
}

func (lp *Loop) bound() bridge.SensorBridge {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.sensors
}

func (lp *Loop) fail(err error) {
	lp.mu.Lock()
	lp.available = false
	lp.active = false
	lp.lastErr = err
	lp.mu.Unlock()
}

func (lp *Loop) setErr(err error) {
	lp.mu.Lock()
	lp.lastErr = err
	lp.mu.Unlock()
}

func (lp *Loop) recordPoll(ok bool) {
	lp.mu.Lock()
	if ok {
		lp.polls++
	} else {
		lp.failures++
	}
	lp.mu.Unlock()
	if lp.metrics != nil {
		lp.metrics.SensorPoll(ok)
	}
}

// Available reports whether the plugin was bound.
func (lp *Loop) Available() bool {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.available
}

// Active reports whether the sensors are running and polled.
func (lp *Loop) Active() bool {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.active
}

// Polls returns the number of successful and abandoned polls.
func (lp *Loop) Polls() (ok, failed uint64) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.polls, lp.failures
}

// LastError returns the most recent bind, start or read error.
func (lp *Loop) LastError() error {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.lastErr
}

func (lp *Loop) Model() *model.SensorModel { return lp.model }

// OnInitialized subscribes to the event fired once sensors were started
// after initialisation.
func (lp *Loop) OnInitialized(fn func()) (unsubscribe func()) {
	return lp.initialized.Subscribe(fn)
}

// OnDataUpdated subscribes to committed snapshots.
func (lp *Loop) OnDataUpdated(fn func(model.SensorSnapshot)) (unsubscribe func()) {
	return lp.model.OnUpdated(fn)
}
