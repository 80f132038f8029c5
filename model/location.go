package model

import (
	"fmt"
	"sync"

	"github.com/golang/geo/s2"

	"github.com/signalsfoundry/target-compass/internal/event"
)

// UnknownAccuracy is the accuracy radius reported before any fix arrives.
const UnknownAccuracy = 999.0

// Fix is one accepted location sample from the positioning provider.
type Fix struct {
	Latitude  float64 // degrees
	Longitude float64 // degrees
	Altitude  float64 // metres
	Accuracy  float64 // 1-sigma horizontal radius, metres
	Speed     float64 // m/s
	Bearing   float64 // direction of motion, degrees
}

// LatLng returns the fix position as an s2 coordinate.
func (f Fix) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(f.Latitude, f.Longitude)
}

// LocationState is a point-in-time copy of a LocationModel.
type LocationState struct {
	Fix
	UpdateCount  uint64
	HasValidData bool
	IsTracking   bool
	Status       string
}

// LocationModel holds the latest location state. The acquisition lifecycle is
// its only writer; every other component observes it through the accessors
// and the change notifications.
type LocationModel struct {
	mu sync.RWMutex

	fix          Fix
	updateCount  uint64
	hasValidData bool
	isTracking   bool
	status       string

	dataUpdated     event.Signal
	trackingChanged event.Bus[bool]
}

// NewLocationModel returns a model with the startup defaults.
func NewLocationModel() *LocationModel {
	return &LocationModel{
		fix:    Fix{Accuracy: UnknownAccuracy},
		status: "Initializing...",
	}
}

// UpdateLocation stores an accepted fix, bumps the update counter, marks the
// data valid and publishes a data-changed notification.
func (m *LocationModel) UpdateLocation(f Fix) {
	m.mu.Lock()
	m.fix = f
	m.updateCount++
	m.hasValidData = true
	m.mu.Unlock()

	m.dataUpdated.Fire()
}

// SetTrackingState records the commanded tracking state. The tracking-changed
// notification fires only when the value actually changes; the return value
// reports whether it did.
func (m *LocationModel) SetTrackingState(tracking bool) bool {
	m.mu.Lock()
	if m.isTracking == tracking {
		m.mu.Unlock()
		return false
	}
	m.isTracking = tracking
	m.mu.Unlock()

	m.trackingChanged.Publish(tracking)
	return true
}

// SetStatus replaces the status message and publishes a data-changed notification.
func (m *LocationModel) SetStatus(status string) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()

	m.dataUpdated.Fire()
}

// Reset restores the fix-derived fields to their defaults. The tracking flag
// is left alone; it follows the lifecycle, not the data.
func (m *LocationModel) Reset() {
	m.mu.Lock()
	m.hasValidData = false
	m.updateCount = 0
	m.fix.Accuracy = UnknownAccuracy
	m.status = "Reset"
	m.mu.Unlock()

	m.dataUpdated.Fire()
}

// State returns a consistent copy of every attribute.
func (m *LocationModel) State() LocationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return LocationState{
		Fix:          m.fix,
		UpdateCount:  m.updateCount,
		HasValidData: m.hasValidData,
		IsTracking:   m.isTracking,
		Status:       m.status,
	}
}

func (m *LocationModel) Fix() Fix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fix
}

func (m *LocationModel) Accuracy() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fix.Accuracy
}

func (m *LocationModel) UpdateCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updateCount
}

func (m *LocationModel) HasValidData() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasValidData
}

func (m *LocationModel) IsTracking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isTracking
}

func (m *LocationModel) Status() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// OnDataUpdated subscribes to data-changed notifications (fixes, status
// changes, resets).
func (m *LocationModel) OnDataUpdated(fn func()) (unsubscribe func()) {
	return m.dataUpdated.Subscribe(fn)
}

// OnTrackingStateChanged subscribes to tracking flag transitions.
func (m *LocationModel) OnTrackingStateChanged(fn func(tracking bool)) (unsubscribe func()) {
	return m.trackingChanged.Subscribe(fn)
}

func (m *LocationModel) String() string {
	s := m.State()
	return fmt.Sprintf("Lat: %.6f, Lon: %.6f, Acc: %.1fm, HasData: %v",
		s.Latitude, s.Longitude, s.Accuracy, s.HasValidData)
}
