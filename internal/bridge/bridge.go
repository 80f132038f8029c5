// Package bridge defines the contracts between the compass runtime and the
// platform-native location and sensor providers.
//
// Providers push inbound traffic (fixes, status strings, provider
// enable/disable notices) through a LocationSink. The runtime never touches
// models from a provider goroutine: inbound traffic is queued in a Mailbox and
// drained on the tick.
package bridge

import (
	"errors"
	"fmt"
)

// ErrNotBound is returned by binders and bridges that were used before a host
// handle was attached.
var ErrNotBound = errors.New("bridge: not bound")

// LocationBridge is the outbound half of the native location plugin.
type LocationBridge interface {
	// Initialize binds the plugin. A failure leaves the bridge unusable.
	Initialize() error
	StartUpdates() error
	StopUpdates() error
}

// LocationSink receives inbound location traffic. Fix payloads are
// "lat|lon|accuracy|altitude|speed|bearing"; status payloads are "message|code".
type LocationSink interface {
	OnFix(payload string)
	OnStatus(payload string)
	OnProviderEnabled(provider string)
	OnProviderDisabled(provider string)
}

// Permission names a runtime permission the host platform may grant.
type Permission string

const (
	FineLocation   Permission = "android.permission.ACCESS_FINE_LOCATION"
	CoarseLocation Permission = "android.permission.ACCESS_COARSE_LOCATION"
)

// PermissionService queries and requests host permissions. Request is
// asynchronous: a later Granted call observes the user's decision.
type PermissionService interface {
	Granted(p Permission) bool
	Request(perms ...Permission)
}

// HostHandle is the opaque host context handed to the sensor plugin.
type HostHandle any

// SensorBinder attaches the sensor plugin to a host and returns the bound
// bridge.
type SensorBinder interface {
	Bind(host HostHandle) (SensorBridge, error)
}

// SensorBridge is the polling interface of the native sensor plugin.
type SensorBridge interface {
	StartSensors() error
	StopSensors() error
	AreSensorsStarted() bool
	// Read returns the latest raw values for ch. Vector channels return
	// at least three values, scalar channels at least one.
	Read(ch Channel) ([]float64, error)
}

// Call runs a bridge operation and converts both returned errors and panics
// into errors wrapped with op.
func Call(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: bridge panic: %v", op, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
