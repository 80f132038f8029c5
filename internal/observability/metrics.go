package observability

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NavCollector bundles Prometheus metrics for location acquisition, sensor
// polling and navigation output. It satisfies the metrics recorder
// interfaces of the lifecycle, sensors and navigation packages; every method
// is safe on a nil collector.
type NavCollector struct {
	gatherer prometheus.Gatherer

	Fixes           *prometheus.CounterVec
	FixAccuracy     prometheus.Histogram
	LifecycleStates *prometheus.GaugeVec
	Tracking        prometheus.Gauge
	BridgeErrors    *prometheus.CounterVec
	AutoRestarts    prometheus.Counter

	SensorPolls      *prometheus.CounterVec
	SensorReadErrors *prometheus.CounterVec

	TargetDistance  prometheus.Gauge
	RelativeBearing prometheus.Gauge
	NavUpdates      *prometheus.CounterVec

	mu        sync.Mutex
	lastState string
}

// NewNavCollector registers compass metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewNavCollector(reg prometheus.Registerer) (*NavCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &NavCollector{gatherer: gatherer}
	var err error

	if c.Fixes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_location_fixes_total",
		Help: "Location payloads received, labeled by outcome (accepted or the rejection reason).",
	}, []string{"outcome"}), "compass_location_fixes_total"); err != nil {
		return nil, err
	}
	if c.FixAccuracy, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compass_fix_accuracy_meters",
		Help:    "Reported accuracy radius of accepted fixes.",
		Buckets: []float64{1, 2, 3, 5, 10, 15, 25, 50, 100, 500},
	}), "compass_fix_accuracy_meters"); err != nil {
		return nil, err
	}
	if c.LifecycleStates, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "compass_lifecycle_state",
		Help: "Current acquisition lifecycle state (1 for the active state).",
	}, []string{"state"}), "compass_lifecycle_state"); err != nil {
		return nil, err
	}
	if c.Tracking, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_tracking",
		Help: "1 while location updates are commanded on.",
	}), "compass_tracking"); err != nil {
		return nil, err
	}
	if c.BridgeErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_bridge_errors_total",
		Help: "Failed native bridge calls, labeled by operation.",
	}, []string{"op"}), "compass_bridge_errors_total"); err != nil {
		return nil, err
	}
	if c.AutoRestarts, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compass_auto_restarts_total",
		Help: "Automatic restarts of location updates.",
	}), "compass_auto_restarts_total"); err != nil {
		return nil, err
	}
	if c.SensorPolls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_sensor_polls_total",
		Help: "Sensor polls, labeled by result (ok or failed).",
	}, []string{"result"}), "compass_sensor_polls_total"); err != nil {
		return nil, err
	}
	if c.SensorReadErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_sensor_read_errors_total",
		Help: "Sensor channel reads that abandoned a poll, labeled by channel.",
	}, []string{"channel"}), "compass_sensor_read_errors_total"); err != nil {
		return nil, err
	}
	if c.TargetDistance, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_target_distance_meters",
		Help: "Last computed distance to the target.",
	}), "compass_target_distance_meters"); err != nil {
		return nil, err
	}
	if c.RelativeBearing, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_relative_bearing_degrees",
		Help: "Last computed target bearing relative to the device heading.",
	}), "compass_relative_bearing_degrees"); err != nil {
		return nil, err
	}
	if c.NavUpdates, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compass_navigation_updates_total",
		Help: "Navigation recomputations, labeled by accuracy class.",
	}, []string{"accuracy"}), "compass_navigation_updates_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *NavCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *NavCollector) FixAccepted(accuracy float64) {
	if c == nil {
		return
	}
	c.Fixes.WithLabelValues("accepted").Inc()
	c.FixAccuracy.Observe(accuracy)
}

func (c *NavCollector) FixRejected(reason string) {
	if c == nil {
		return
	}
	c.Fixes.WithLabelValues(reason).Inc()
}

// LifecycleState moves the one-hot state gauge to state.
func (c *NavCollector) LifecycleState(state string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastState != "" {
		c.LifecycleStates.WithLabelValues(c.lastState).Set(0)
	}
	c.LifecycleStates.WithLabelValues(state).Set(1)
	c.lastState = state
}

func (c *NavCollector) TrackingChanged(tracking bool) {
	if c == nil {
		return
	}
	if tracking {
		c.Tracking.Set(1)
		return
	}
	c.Tracking.Set(0)
}

func (c *NavCollector) BridgeError(op string) {
	if c == nil {
		return
	}
	c.BridgeErrors.WithLabelValues(op).Inc()
}

func (c *NavCollector) AutoRestart() {
	if c == nil {
		return
	}
	c.AutoRestarts.Inc()
}

func (c *NavCollector) SensorPoll(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.SensorPolls.WithLabelValues(result).Inc()
}

func (c *NavCollector) SensorReadError(channel string) {
	if c == nil {
		return
	}
	c.SensorReadErrors.WithLabelValues(channel).Inc()
}

func (c *NavCollector) NavigationUpdated(distance, relativeBearing float64, class string) {
	if c == nil {
		return
	}
	c.TargetDistance.Set(distance)
	c.RelativeBearing.Set(relativeBearing)
	c.NavUpdates.WithLabelValues(class).Inc()
}

// LoopCollector exposes tick loop metrics.
type LoopCollector struct {
	TickDuration     prometheus.Histogram
	Frames           prometheus.Counter
	PendingDeferrals prometheus.Gauge
	MailboxDropped   prometheus.Gauge
}

// NewLoopCollector registers tick loop metrics against the provided registerer.
func NewLoopCollector(reg prometheus.Registerer) (*LoopCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &LoopCollector{}
	var err error

	if c.TickDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compass_tick_duration_seconds",
		Help:    "Wall time spent processing one tick.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.1},
	}), "compass_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Frames, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compass_frames_total",
		Help: "Ticks processed by the runtime.",
	}), "compass_frames_total"); err != nil {
		return nil, err
	}
	if c.PendingDeferrals, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_pending_deferrals",
		Help: "Scheduled one-shot continuations waiting to run.",
	}), "compass_pending_deferrals"); err != nil {
		return nil, err
	}
	if c.MailboxDropped, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "compass_mailbox_dropped",
		Help: "Inbound location messages dropped because the mailbox was full.",
	}), "compass_mailbox_dropped"); err != nil {
		return nil, err
	}
	return c, nil
}

// ObserveTick records one processed tick.
func (c *LoopCollector) ObserveTick(d time.Duration, pending int, dropped uint64) {
	if c == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
	c.Frames.Inc()
	c.PendingDeferrals.Set(float64(pending))
	c.MailboxDropped.Set(float64(dropped))
}

// register adds col to reg, returning the already registered collector of the
// same type when one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
