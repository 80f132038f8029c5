package simbridge

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/target-compass/internal/bridge"
)

// errNotStarted is returned by reads made while the sensors are stopped.
var errNotStarted = errors.New("sensors not started")

// SensorConfig describes the simulated device attitude.
type SensorConfig struct {
	Heading  float64 // degrees
	TurnRate float64 // degrees per second
	Noise    float64 // amplitude of random noise added to motion channels
	Seed     int64
}

// SensorBridge is a simulated sensor plugin. Faults can be injected per
// channel to exercise partial-read handling.
type SensorBridge struct {
	mu       sync.Mutex
	cfg      SensorConfig
	heading  float64
	step     float64
	rng      *rand.Rand
	started  bool
	startErr error
	readErr  map[bridge.Channel]error
	short    map[bridge.Channel]bool
	reads    uint64
}

// NewSensorBridge creates a stopped simulated sensor bridge.
func NewSensorBridge(cfg SensorConfig) *SensorBridge {
	return &SensorBridge{
		cfg:     cfg,
		heading: normalize(cfg.Heading),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		readErr: make(map[bridge.Channel]error),
		short:   make(map[bridge.Channel]bool),
	}
}

// SetHeading points the simulated device at h degrees.
func (s *SensorBridge) SetHeading(h float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = normalize(h)
}

// Heading returns the current simulated heading.
func (s *SensorBridge) Heading() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heading
}

// FailRead makes reads of ch return err. A nil err clears the fault.
func (s *SensorBridge) FailRead(ch bridge.Channel, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErr, ch)
		return
	}
	s.readErr[ch] = err
}

// ShortRead makes reads of ch return fewer values than the channel width.
func (s *SensorBridge) ShortRead(ch bridge.Channel, short bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if short {
		s.short[ch] = true
		return
	}
	delete(s.short, ch)
}

// FailStart makes StartSensors return err until cleared with nil.
func (s *SensorBridge) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

// Reads returns the number of channel reads served.
func (s *SensorBridge) Reads() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *SensorBridge) StartSensors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *SensorBridge) StopSensors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *SensorBridge) AreSensorsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Advance rotates the simulated device by TurnRate over d.
func (s *SensorBridge) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = normalize(s.heading + s.cfg.TurnRate*d.Seconds())
	s.step += d.Seconds()
}

func (s *SensorBridge) Read(ch bridge.Channel) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ch.Valid() {
		return nil, fmt.Errorf("read %v: unknown channel", ch)
	}
	if !s.started {
		return nil, errNotStarted
	}
	if err := s.readErr[ch]; err != nil {
		return nil, err
	}
	s.reads++

	v := s.valuesLocked(ch)
	if s.short[ch] {
		return v[:len(v)-1], nil
	}
	return v, nil
}

func (s *SensorBridge) valuesLocked(ch bridge.Channel) []float64 {
	h := s.heading * math.Pi / 180
	n := func() float64 {
		if s.cfg.Noise == 0 {
			return 0
		}
		return (s.rng.Float64()*2 - 1) * s.cfg.Noise
	}

	switch ch {
	case bridge.Accelerometer:
		return []float64{0.02*math.Sin(s.step) + n(), 0.01*math.Cos(s.step) + n(), 9.81 + n()}
	case bridge.Gyroscope:
		return []float64{n(), n(), s.cfg.TurnRate * math.Pi / 180}
	case bridge.Magnetometer:
		return []float64{-22 * math.Sin(h), 22 * math.Cos(h), -40}
	case bridge.Gravity:
		return []float64{0, 0, 9.81}
	case bridge.LinearAcceleration:
		return []float64{0.02 * math.Sin(s.step), 0.01 * math.Cos(s.step), 0}
	case bridge.RotationVector, bridge.GeomagneticRotationVector:
		return []float64{0, 0, -math.Sin(h / 2)}
	case bridge.GameRotationVector:
		return []float64{0, 0, math.Sin(s.step / 20)}
	case bridge.Orientation:
		// pitch, heading, roll
		return []float64{0, s.heading, 0}
	case bridge.Light:
		return []float64{320}
	case bridge.Proximity:
		return []float64{5}
	case bridge.Pressure:
		return []float64{1013.25}
	case bridge.Humidity:
		return []float64{45}
	case bridge.AmbientTemperature:
		return []float64{21.5}
	}
	return nil
}

func normalize(deg float64) float64 {
	return math.Mod(math.Mod(deg, 360)+360, 360)
}

// SensorBinder binds a simulated sensor bridge to a host handle.
type SensorBinder struct {
	mu      sync.Mutex
	sensors *SensorBridge
	bindErr error
	host    bridge.HostHandle
}

// NewSensorBinder returns a binder that hands out sensors.
func NewSensorBinder(sensors *SensorBridge) *SensorBinder {
	return &SensorBinder{sensors: sensors}
}

// FailBind makes Bind return err until cleared with nil.
func (b *SensorBinder) FailBind(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindErr = err
}

// Host returns the last bound host handle.
func (b *SensorBinder) Host() bridge.HostHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.host
}

func (b *SensorBinder) Bind(host bridge.HostHandle) (bridge.SensorBridge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	if host == nil || b.sensors == nil {
		return nil, bridge.ErrNotBound
	}
	b.host = host
	return b.sensors, nil
}
