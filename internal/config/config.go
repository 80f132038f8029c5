// Package config loads compass settings from an optional YAML file and
// COMPASS_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/internal/bridge/simbridge"
	"github.com/signalsfoundry/target-compass/internal/lifecycle"
	"github.com/signalsfoundry/target-compass/internal/logging"
	"github.com/signalsfoundry/target-compass/internal/observability"
	"github.com/signalsfoundry/target-compass/internal/sensors"
	"github.com/signalsfoundry/target-compass/model"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type TargetConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type LoopConfig struct {
	Tick time.Duration `yaml:"tick"`
}

type LocationConfig struct {
	AutoRestartTicks uint64        `yaml:"auto_restart_ticks"`
	PostInitDelay    time.Duration `yaml:"post_init_delay"`
	ResumeDelay      time.Duration `yaml:"resume_delay"`
	RebindOnStart    bool          `yaml:"rebind_on_start"`
	MailboxSize      int           `yaml:"mailbox_size"`
}

type SensorsConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	StartDelay     time.Duration `yaml:"start_delay"`
	PermissionWait time.Duration `yaml:"permission_wait"`
	Channels       []string      `yaml:"channels"`
}

type AccuracyConfig struct {
	Indicator core.Thresholds `yaml:"indicator"`
	Panel     core.Thresholds `yaml:"panel"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type ObservabilityConfig struct {
	MetricsAddr string        `yaml:"metrics_addr"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// SimulationConfig drives the simulated bridges used when no native plugin
// is present.
type SimulationConfig struct {
	StartLatitude    float64       `yaml:"start_latitude"`
	StartLongitude   float64       `yaml:"start_longitude"`
	Course           float64       `yaml:"course"`
	Speed            float64       `yaml:"speed"`
	Accuracy         float64       `yaml:"accuracy"`
	Jitter           float64       `yaml:"jitter"`
	FixInterval      time.Duration `yaml:"fix_interval"`
	Heading          float64       `yaml:"heading"`
	TurnRate         float64       `yaml:"turn_rate"`
	GrantPermissions bool          `yaml:"grant_permissions"`
	LocationMissing  bool          `yaml:"location_plugin_missing"`
	SensorsMissing   bool          `yaml:"sensor_plugin_missing"`
}

// Config is the full compass configuration.
type Config struct {
	Target        TargetConfig        `yaml:"target"`
	Loop          LoopConfig          `yaml:"loop"`
	Location      LocationConfig      `yaml:"location"`
	Sensors       SensorsConfig       `yaml:"sensors"`
	Accuracy      AccuracyConfig      `yaml:"accuracy"`
	Observability ObservabilityConfig `yaml:"observability"`
	Simulation    SimulationConfig    `yaml:"simulation"`
}

// Default returns the stock configuration.
func Default() Config {
	lc := lifecycle.DefaultConfig()
	sc := sensors.DefaultConfig()
	sim := simbridge.DefaultLocationConfig()

	channels := make([]string, 0, len(sc.Channels))
	for _, ch := range sc.Channels {
		channels = append(channels, ch.String())
	}

	return Config{
		Target: TargetConfig{Name: "target", Latitude: 53.953168, Longitude: 27.677397},
		Loop:   LoopConfig{Tick: 16 * time.Millisecond},
		Location: LocationConfig{
			AutoRestartTicks: lc.AutoRestartTicks,
			PostInitDelay:    lc.PostInitDelay,
			ResumeDelay:      lc.ResumeDelay,
			RebindOnStart:    lc.RebindOnStart,
			MailboxSize:      bridge.DefaultMailboxSize,
		},
		Sensors: SensorsConfig{
			PollInterval:   sc.PollInterval,
			StartDelay:     sc.StartDelay,
			PermissionWait: sc.PermissionWait,
			Channels:       channels,
		},
		Accuracy: AccuracyConfig{
			Indicator: core.IndicatorThresholds,
			Panel:     core.PanelThresholds,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
			Tracing: TracingConfig{
				Exporter:    "stdout",
				ServiceName: observability.DefaultServiceName,
				SampleRatio: 1,
			},
		},
		Simulation: SimulationConfig{
			StartLatitude:    sim.Start.Lat.Degrees(),
			StartLongitude:   sim.Start.Lng.Degrees(),
			Course:           sim.Course,
			Speed:            sim.Speed,
			Accuracy:         sim.Accuracy,
			Jitter:           sim.Jitter,
			FixInterval:      sim.FixInterval,
			Heading:          0,
			TurnRate:         6,
			GrantPermissions: true,
		},
	}
}

// Load reads path (when non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from COMPASS_* variables resolved through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	float("COMPASS_TARGET_LAT", &c.Target.Latitude)
	float("COMPASS_TARGET_LON", &c.Target.Longitude)
	str("COMPASS_TARGET_NAME", &c.Target.Name)
	dur("COMPASS_TICK", &c.Loop.Tick)
	if v, ok := lookup("COMPASS_AUTO_RESTART_TICKS"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("COMPASS_AUTO_RESTART_TICKS: %w", err))
		} else {
			c.Location.AutoRestartTicks = n
		}
	}
	dur("COMPASS_POST_INIT_DELAY", &c.Location.PostInitDelay)
	dur("COMPASS_RESUME_DELAY", &c.Location.ResumeDelay)
	boolean("COMPASS_REBIND_ON_START", &c.Location.RebindOnStart)
	dur("COMPASS_SENSOR_POLL_INTERVAL", &c.Sensors.PollInterval)
	dur("COMPASS_SENSOR_START_DELAY", &c.Sensors.StartDelay)
	dur("COMPASS_SENSOR_PERMISSION_WAIT", &c.Sensors.PermissionWait)
	str("COMPASS_METRICS_ADDR", &c.Observability.MetricsAddr)
	str("LOG_LEVEL", &c.Observability.LogLevel)
	str("LOG_FORMAT", &c.Observability.LogFormat)
	boolean("COMPASS_TRACING_ENABLED", &c.Observability.Tracing.Enabled)
	str("COMPASS_TRACING_EXPORTER", &c.Observability.Tracing.Exporter)
	str("COMPASS_TRACING_SERVICE_NAME", &c.Observability.Tracing.ServiceName)
	str("COMPASS_OTLP_ENDPOINT", &c.Observability.Tracing.Endpoint)
	float("COMPASS_TRACING_SAMPLE_RATIO", &c.Observability.Tracing.SampleRatio)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := model.ValidateCoordinates(c.Target.Latitude, c.Target.Longitude); err != nil {
		errs = append(errs, fmt.Errorf("target: %w", err))
	}
	if err := model.ValidateCoordinates(c.Simulation.StartLatitude, c.Simulation.StartLongitude); err != nil {
		errs = append(errs, fmt.Errorf("simulation start: %w", err))
	}

	positive := map[string]time.Duration{
		"loop.tick":                c.Loop.Tick,
		"location.post_init_delay": c.Location.PostInitDelay,
		"location.resume_delay":    c.Location.ResumeDelay,
		"sensors.poll_interval":    c.Sensors.PollInterval,
		"sensors.start_delay":      c.Sensors.StartDelay,
		"sensors.permission_wait":  c.Sensors.PermissionWait,
		"simulation.fix_interval":  c.Simulation.FixInterval,
	}
	for _, name := range slices.Sorted(maps.Keys(positive)) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, positive[name]))
		}
	}
	if c.Location.AutoRestartTicks < 1 {
		errs = append(errs, fmt.Errorf("location.auto_restart_ticks must be at least 1"))
	}
	if _, err := c.ChannelList(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Accuracy.Indicator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("accuracy.indicator: %w", err))
	}
	if err := c.Accuracy.Panel.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("accuracy.panel: %w", err))
	}
	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_ratio must be within [0, 1], got %v", r))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ChannelList resolves the configured sensor channel names.
func (c Config) ChannelList() ([]bridge.Channel, error) {
	out := make([]bridge.Channel, 0, len(c.Sensors.Channels))
	for _, name := range c.Sensors.Channels {
		ch, err := bridge.ParseChannel(name)
		if err != nil {
			return nil, fmt.Errorf("sensors.channels: %w", err)
		}
		out = append(out, ch)
	}
	return out, nil
}

// TargetPoint builds the configured target.
func (c Config) TargetPoint() (model.Target, error) {
	return model.NewTarget(c.Target.Name, c.Target.Latitude, c.Target.Longitude)
}

// LifecycleConfig returns the acquisition lifecycle settings.
func (c Config) LifecycleConfig() lifecycle.Config {
	return lifecycle.Config{
		AutoRestartTicks: c.Location.AutoRestartTicks,
		PostInitDelay:    c.Location.PostInitDelay,
		ResumeDelay:      c.Location.ResumeDelay,
		RebindOnStart:    c.Location.RebindOnStart,
	}
}

// SensorConfig returns the sensor loop settings.
func (c Config) SensorConfig() (sensors.Config, error) {
	channels, err := c.ChannelList()
	if err != nil {
		return sensors.Config{}, err
	}
	return sensors.Config{
		PollInterval:   c.Sensors.PollInterval,
		StartDelay:     c.Sensors.StartDelay,
		PermissionWait: c.Sensors.PermissionWait,
		Channels:       channels,
	}, nil
}

// TracingConfig returns the tracing settings.
func (c Config) TracingConfig() observability.TracingConfig {
	t := c.Observability.Tracing
	return observability.TracingConfig{
		Enabled:     t.Enabled,
		ServiceName: t.ServiceName,
		Exporter:    strings.ToLower(t.Exporter),
		Endpoint:    t.Endpoint,
		SampleRatio: t.SampleRatio,
	}
}

// LoggingConfig returns the logger settings.
func (c Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  c.Observability.LogLevel,
		Format: c.Observability.LogFormat,
	}
}
