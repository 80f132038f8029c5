package model

import (
	"fmt"
	"strings"
	"sync"

	"github.com/signalsfoundry/target-compass/internal/event"
)

// Vec3 is a 3-axis sensor reading.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X, v.Y, v.Z)
}

// Orientation is the device attitude estimate in degrees.
type Orientation struct {
	Heading float64 // yaw, 0 = north, clockwise
	Pitch   float64
	Roll    float64
	Valid   bool // set once an orientation reading has been committed
}

// SensorSnapshot is one complete poll of the motion/environment sensors.
type SensorSnapshot struct {
	// Motion
	Accelerometer Vec3
	Gyroscope     Vec3
	Magnetometer  Vec3

	// Position estimates
	Gravity                   Vec3
	LinearAcceleration        Vec3
	RotationVector            Vec3
	GameRotationVector        Vec3
	GeomagneticRotationVector Vec3
	Orientation               Orientation

	// Environment
	Light              float64 // lx
	Proximity          float64 // cm
	Pressure           float64 // hPa
	Humidity           float64 // %
	AmbientTemperature float64 // °C
}

func (s SensorSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== MOTION ===\n")
	fmt.Fprintf(&b, "ACCEL: %s\nGYRO:  %s\nMAG:   %s\n\n", s.Accelerometer, s.Gyroscope, s.Magnetometer)
	fmt.Fprintf(&b, "=== POSITION ===\n")
	fmt.Fprintf(&b, "GRAV:  %s\nLIN ACC: %s\nROT_VEC: %s\nGAME_ROT: %s\nGEO_ROT: %s\n",
		s.Gravity, s.LinearAcceleration, s.RotationVector, s.GameRotationVector, s.GeomagneticRotationVector)
	fmt.Fprintf(&b, "ORIENT: heading=%.1f pitch=%.1f roll=%.1f\n\n",
		s.Orientation.Heading, s.Orientation.Pitch, s.Orientation.Roll)
	fmt.Fprintf(&b, "=== ENVIRONMENT ===\n")
	fmt.Fprintf(&b, "LIGHT: %.1f lx\nPROX:  %.1f cm\nPRESS: %.1f hPa\nHUM:   %.1f %%\nTEMP:  %.1f C\n",
		s.Light, s.Proximity, s.Pressure, s.Humidity, s.AmbientTemperature)
	return b.String()
}

// SensorModel holds the latest committed sensor snapshot. The sensor
// acquisition loop is its only writer.
type SensorModel struct {
	mu      sync.RWMutex
	current SensorSnapshot
	commits uint64

	updated event.Bus[SensorSnapshot]
}

// NewSensorModel returns a model with every reading at zero.
func NewSensorModel() *SensorModel {
	return &SensorModel{}
}

// Commit replaces the whole snapshot and publishes a copy to subscribers.
func (m *SensorModel) Commit(s SensorSnapshot) {
	m.mu.Lock()
	m.current = s
	m.commits++
	m.mu.Unlock()

	m.updated.Publish(s)
}

// Snapshot returns a copy of the latest committed readings.
func (m *SensorModel) Snapshot() SensorSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// HasData reports whether at least one poll has been committed.
func (m *SensorModel) HasData() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits > 0
}

// Commits returns the number of committed polls.
func (m *SensorModel) Commits() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commits
}

// OnUpdated subscribes to committed snapshots.
func (m *SensorModel) OnUpdated(fn func(SensorSnapshot)) (unsubscribe func()) {
	return m.updated.Subscribe(fn)
}
