// Package lifecycle owns acquisition of location fixes from the native
// provider: binding, permissions, start/stop, payload parsing, the periodic
// auto-restart and foreground/background transitions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
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

const tracerName = "github.com/signalsfoundry/target-compass/internal/lifecycle"

var (
	// ErrPluginUnavailable reports that the native location plugin could
	// not be bound.
	ErrPluginUnavailable = errors.New("location plugin unavailable")
	// ErrMalformedFix reports a fix payload that could not be parsed.
	ErrMalformedFix = errors.New("malformed fix payload")
)

// Status strings written to the location model.
const (
	StatusNeedPermission = "Need location permissions"
	StatusStarting       = "Starting GPS..."
	StatusStopped        = "GPS Stopped"
	StatusNotInitialized = "Plugin not initialized"
)

// Config controls lifecycle timing.
type Config struct {
	// AutoRestartTicks is the frame period of the auto-restart check. Zero
	// disables it.
	AutoRestartTicks uint64
	PostInitDelay    time.Duration
	ResumeDelay      time.Duration
	// RebindOnStart retries plugin binding when Start is called while the
	// plugin is unavailable.
	RebindOnStart bool
}

// DefaultConfig returns the stock timing: restart check every 600 frames,
// 1s post-initialisation delay and 2s resume delay.
func DefaultConfig() Config {
	return Config{
		AutoRestartTicks: 600,
		PostInitDelay:    time.Second,
		ResumeDelay:      2 * time.Second,
	}
}

// MetricsRecorder receives lifecycle counters.
type MetricsRecorder interface {
	FixAccepted(accuracy float64)
	FixRejected(reason string)
	LifecycleState(state string)
	TrackingChanged(tracking bool)
	BridgeError(op string)
	AutoRestart()
}

// Option customises a Lifecycle.
type Option func(*Lifecycle)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(lc *Lifecycle) { lc.log = logging.OrNoop(l) }
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(lc *Lifecycle) { lc.metrics = m }
}

// Lifecycle is the acquisition state machine. All methods are expected to be
// called from the tick goroutine; the mutex only guards state reads from
// other goroutines such as the metrics endpoint.
type Lifecycle struct {
	cfg       Config
	plugin    bridge.LocationBridge
	perms     bridge.PermissionService
	scheduler sched.EventScheduler
	model     *model.LocationModel
	log       logging.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer

	mu           sync.RWMutex
	state        State
	lastAccuracy float64
	lastErr      error

	initialized     event.Signal
	statusMessage   event.Bus[string]
	trackingStarted event.Signal
	trackingStopped event.Signal
	dataUpdated     event.Signal

	unsubs []func()
}

// New builds a lifecycle over the given plugin, permission service,
// scheduler and model.
func New(cfg Config, plugin bridge.LocationBridge, perms bridge.PermissionService, scheduler sched.EventScheduler, m *model.LocationModel, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		cfg:          cfg,
		plugin:       plugin,
		perms:        perms,
		scheduler:    scheduler,
		model:        m,
		log:          logging.Noop(),
		tracer:       otel.Tracer(tracerName),
		lastAccuracy: model.UnknownAccuracy,
	}
	for _, opt := range opts {
		opt(lc)
	}
	lc.log = lc.log.With(logging.Component("lifecycle"))

	lc.unsubs = append(lc.unsubs,
		m.OnDataUpdated(lc.dataUpdated.Fire),
		m.OnTrackingStateChanged(func(tracking bool) {
			if lc.metrics != nil {
				lc.metrics.TrackingChanged(tracking)
			}
			if tracking {
				lc.trackingStarted.Fire()
				return
			}
			lc.trackingStopped.Fire()
		}),
	)
	return lc
}

// Initialize binds the native plugin and schedules the post-initialisation
// step. The Initialized event fires after PostInitDelay whatever the outcome
// of binding or starting.
func (lc *Lifecycle) Initialize(ctx context.Context) {
	ctx, span := lc.tracer.Start(ctx, "lifecycle.Initialize")
	defer span.End()

	lc.setState(ctx, Initializing)
	if err := lc.bind(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lc.log.Error(ctx, "location plugin bind failed", logging.Err(err))
		lc.model.SetStatus("Init error: " + err.Error())
		lc.setState(ctx, PluginUnavailable)
	} else {
		lc.log.Info(ctx, "location plugin bound")
	}

	lc.scheduler.After(lc.cfg.PostInitDelay, func() {
		if lc.HasLocationPermissions() {
			lc.Start(ctx)
		} else {
			lc.requestPermissions(ctx)
		}
		lc.initialized.Fire()
	})
}

func (lc *Lifecycle) bind() error {
	if lc.plugin == nil {
		lc.setErr(ErrPluginUnavailable)
		return ErrPluginUnavailable
	}
	if err := bridge.Call("initialize", lc.plugin.Initialize); err != nil {
		lc.countBridgeError("initialize")
		err = fmt.Errorf("%w: %w", ErrPluginUnavailable, err)
		lc.setErr(err)
		return err
	}
	return nil
}

// Start begins location updates. It is a no-op while tracking. Missing
// permissions trigger a request and leave the lifecycle in
// WaitingPermission; a bridge failure is reported through the status and the
// log.
func (lc *Lifecycle) Start(ctx context.Context) {
	ctx, span := lc.tracer.Start(ctx, "lifecycle.Start")
	defer span.End()

	if lc.State() == PluginUnavailable {
		if !lc.cfg.RebindOnStart {
			lc.log.Error(ctx, "start requested but location plugin is unavailable")
			lc.model.SetStatus(StatusNotInitialized)
			span.SetStatus(codes.Error, StatusNotInitialized)
			return
		}
		if err := lc.bind(); err != nil {
			lc.log.Error(ctx, "location plugin rebind failed", logging.Err(err))
			lc.model.SetStatus(StatusNotInitialized)
			span.RecordError(err)
			return
		}
		lc.log.Info(ctx, "location plugin rebound")
		lc.setState(ctx, Stopped)
	}

	if !lc.HasLocationPermissions() {
		lc.log.Warn(ctx, "location permissions missing, requesting")
		lc.requestPermissions(ctx)
		return
	}
	if lc.model.IsTracking() {
		lc.log.Debug(ctx, "already tracking")
		return
	}

	if err := bridge.Call("start_updates", lc.plugin.StartUpdates); err != nil {
		lc.countBridgeError("start_updates")
		lc.setErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lc.log.Error(ctx, "failed to start location updates", logging.Err(err))
		lc.model.SetStatus("Start error: " + err.Error())
		return
	}

	lc.model.SetTrackingState(true)
	lc.model.SetStatus(StatusStarting)
	lc.setState(ctx, Starting)
	lc.log.Info(ctx, "location updates started")
}

// Stop ends location updates. It is a no-op unless tracking. A bridge
// failure leaves the tracking flag untouched.
func (lc *Lifecycle) Stop(ctx context.Context) {
	ctx, span := lc.tracer.Start(ctx, "lifecycle.Stop")
	defer span.End()

	if !lc.model.IsTracking() {
		return
	}
	if err := bridge.Call("stop_updates", lc.plugin.StopUpdates); err != nil {
		lc.countBridgeError("stop_updates")
		lc.setErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		lc.log.Error(ctx, "failed to stop location updates", logging.Err(err))
		lc.model.SetStatus("Stop error: " + err.Error())
		return
	}

	lc.model.SetTrackingState(false)
	lc.model.SetStatus(StatusStopped)
	lc.setState(ctx, Stopped)
	lc.log.Info(ctx, "location updates stopped")
}

// HandleFix parses a "lat|lon|accuracy|altitude|speed|bearing" payload and commits it
// to the model. Malformed payloads are logged and dropped.
func (lc *Lifecycle) HandleFix(ctx context.Context, payload string) error {
	fix, reason, err := ParseFix(payload)
	if err != nil {
		if lc.metrics != nil {
			lc.metrics.FixRejected(reason)
		}
		lc.log.Error(ctx, "dropping location payload",
			logging.String("payload", payload),
			logging.String("reason", reason),
			logging.Err(err),
		)
		return err
	}

	lc.mu.Lock()
	lc.lastAccuracy = fix.Accuracy
	lc.mu.Unlock()

	lc.model.UpdateLocation(fix)
	if lc.metrics != nil {
		lc.metrics.FixAccepted(fix.Accuracy)
	}
	if lc.State() == Starting {
		lc.setState(ctx, Tracking)
	}
	lc.log.Debug(ctx, "location fix accepted",
		logging.Float64("lat", fix.Latitude),
		logging.Float64("lon", fix.Longitude),
		logging.Float64("accuracy", fix.Accuracy),
	)
	return nil
}

// HandleStatus stores the first '|' segment of payload as the model status
// and publishes it as a status message.
func (lc *Lifecycle) HandleStatus(ctx context.Context, payload string) {
	msg := bridge.StatusMessage(payload)
	lc.log.Info(ctx, "location status", logging.String("status", msg))
	lc.setStatusMessage(msg)
	if msg == bridge.StatusStarted && lc.State() == Starting {
		lc.setState(ctx, Tracking)
	}
}

// HandleProviderEnabled records that a location provider was switched on.
func (lc *Lifecycle) HandleProviderEnabled(ctx context.Context, provider string) {
	lc.log.Info(ctx, "location provider enabled", logging.String("provider", provider))
	lc.setStatusMessage(provider + " enabled")
}

// HandleProviderDisabled records that a location provider was switched off.
func (lc *Lifecycle) HandleProviderDisabled(ctx context.Context, provider string) {
	lc.log.Warn(ctx, "location provider disabled", logging.String("provider", provider))
	lc.setStatusMessage(provider + " disabled")
}

func (lc *Lifecycle) setStatusMessage(msg string) {
	lc.model.SetStatus(msg)
	lc.statusMessage.Publish(msg)
}

// Tick runs the periodic auto-restart check for the given 1-based frame
// number: on every AutoRestartTicks-th frame, if not tracking and both
// permissions are held, Start is called.
func (lc *Lifecycle) Tick(ctx context.Context, frame uint64) {
	n := lc.cfg.AutoRestartTicks
	if n == 0 || frame == 0 || frame%n != 0 {
		return
	}
	if lc.model.IsTracking() || !lc.HasLocationPermissions() {
		return
	}
	lc.log.Info(ctx, "auto-restarting location updates", logging.Int64("frame", int64(frame)))
	if lc.metrics != nil {
		lc.metrics.AutoRestart()
	}
	lc.Start(ctx)
}

// SetForeground handles host focus changes. Going to the background stops
// tracking; returning schedules a restart after ResumeDelay when permissions
// are held. The restart is not cancelled by a later pause.
func (lc *Lifecycle) SetForeground(ctx context.Context, foreground bool) {
	if !foreground {
		if lc.model.IsTracking() {
			lc.log.Info(ctx, "host paused, stopping location updates")
			lc.Stop(ctx)
		}
		return
	}
	if lc.HasLocationPermissions() {
		lc.log.Info(ctx, "host resumed, restart scheduled", logging.Duration("delay", lc.cfg.ResumeDelay))
		lc.scheduler.After(lc.cfg.ResumeDelay, func() { lc.Start(ctx) })
	}
}

// HasLocationPermissions reports whether both fine and coarse location are
// granted.
func (lc *Lifecycle) HasLocationPermissions() bool {
	if lc.perms == nil {
		return false
	}
	return lc.perms.Granted(bridge.FineLocation) && lc.perms.Granted(bridge.CoarseLocation)
}

// RequestPermissions asks the host for whichever location permissions are
// missing.
func (lc *Lifecycle) RequestPermissions(ctx context.Context) {
	lc.requestPermissions(ctx)
}

func (lc *Lifecycle) requestPermissions(ctx context.Context) {
	if lc.perms != nil {
		var missing []bridge.Permission
		for _, p := range []bridge.Permission{bridge.FineLocation, bridge.CoarseLocation} {
			if !lc.perms.Granted(p) {
				missing = append(missing, p)
			}
		}
		if len(missing) > 0 {
			lc.perms.Request(missing...)
		}
	}
	lc.model.SetStatus(StatusNeedPermission)
	if s := lc.State(); s != PluginUnavailable && !lc.model.IsTracking() {
		lc.setState(ctx, WaitingPermission)
	}
}

// Shutdown stops tracking and detaches from the model.
func (lc *Lifecycle) Shutdown(ctx context.Context) {
	lc.Stop(ctx)
	for _, u := range lc.unsubs {
		u()
	}
	lc.unsubs = nil
}

func (lc *Lifecycle) setState(ctx context.Context, s State) {
	lc.mu.Lock()
	prev := lc.state
	lc.state = s
	lc.mu.Unlock()

	if prev == s {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(
		attribute.String("from", prev.String()),
		attribute.String("to", s.String()),
	))
	lc.log.Debug(ctx, "lifecycle state changed",
		logging.String("from", prev.String()),
		logging.String("to", s.String()),
	)
	if lc.metrics != nil {
		lc.metrics.LifecycleState(s.String())
	}
}

func (lc *Lifecycle) setErr(err error) {
	lc.mu.Lock()
	lc.lastErr = err
	lc.mu.Unlock()
}

func (lc *Lifecycle) countBridgeError(op string) {
	if lc.metrics != nil {
		lc.metrics.BridgeError(op)
	}
}

// State returns the current lifecycle state.
func (lc *Lifecycle) State() State {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.state
}

// LastError returns the most recent bridge error, if any.
func (lc *Lifecycle) LastError() error {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.lastErr
}

// Accuracy returns the accuracy of the last accepted fix, or
// model.UnknownAccuracy before the first one.
func (lc *Lifecycle) Accuracy() float64 {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.lastAccuracy
}

func (lc *Lifecycle) IsTracking() bool       { return lc.model.IsTracking() }
func (lc *Lifecycle) HasValidData() bool     { return lc.model.HasValidData() }
func (lc *Lifecycle) UpdateCount() uint64    { return lc.model.UpdateCount() }
func (lc *Lifecycle) Coordinates() model.Fix { return lc.model.Fix() }
func (lc *Lifecycle) Model() *model.LocationModel {
	return lc.model
}

// OnInitialized subscribes to the post-initialisation event.
func (lc *Lifecycle) OnInitialized(fn func()) (unsubscribe func()) {
	return lc.initialized.Subscribe(fn)
}

// OnStatusMessage subscribes to status messages from the plugin.
func (lc *Lifecycle) OnStatusMessage(fn func(string)) (unsubscribe func()) {
	return lc.statusMessage.Subscribe(fn)
}

// OnTrackingStarted subscribes to false→true transitions of the tracking flag.
func (lc *Lifecycle) OnTrackingStarted(fn func()) (unsubscribe func()) {
	return lc.trackingStarted.Subscribe(fn)
}

// OnTrackingStopped subscribes to true→false transitions of the tracking flag.
func (lc *Lifecycle) OnTrackingStopped(fn func()) (unsubscribe func()) {
	return lc.trackingStopped.Subscribe(fn)
}

// OnDataUpdated subscribes to every location model change.
func (lc *Lifecycle) OnDataUpdated(fn func()) (unsubscribe func()) {
	return lc.dataUpdated.Subscribe(fn)
}

// ParseFix decodes a fix payload. On failure it returns a short reason label
// alongside an error wrapping ErrMalformedFix.
func ParseFix(payload string) (model.Fix, string, error) {
	parts := strings.Split(payload, "|")
	if len(parts) != bridge.FixFieldCount {
		return model.Fix{}, "field_count", fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedFix, bridge.FixFieldCount, len(parts))
	}

	var v [bridge.FixFieldCount]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Fix{}, "parse", fmt.Errorf("%w: field %d: %w", ErrMalformedFix, i, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return model.Fix{}, "non_finite", fmt.Errorf("%w: field %d is not finite", ErrMalformedFix, i)
		}
		v[i] = f
	}

	fix := model.Fix{
		Latitude:  v[0],
		Longitude: v[1],
		Accuracy:  v[2],
		Altitude:  v[3],
		Speed:     v[4],
		Bearing:   v[5],
	}
	if err := model.ValidateCoordinates(fix.Latitude, fix.Longitude); err != nil {
		return model.Fix{}, "range", fmt.Errorf("%w: %w", ErrMalformedFix, err)
	}
	if fix.Accuracy < 0 {
		return model.Fix{}, "range", fmt.Errorf("%w: negative accuracy %v", ErrMalformedFix, fix.Accuracy)
	}
	return fix, "", nil
}
