package runtime

import (
	"errors"
	"time"

	"github.com/golang/geo/s2"

	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/internal/bridge/simbridge"
	"github.com/signalsfoundry/target-compass/internal/config"
	"github.com/signalsfoundry/target-compass/timectrl"
)

var errSensorPluginMissing = errors.New("sensor plugin missing")

// simHost is the host handle handed to the simulated sensor binder.
type simHost struct{ name string }

// Simulation holds the simulated bridges built from the simulation section.
type Simulation struct {
	Mailbox     *bridge.Mailbox
	Location    *simbridge.LocationProvider
	Sensors     *simbridge.SensorBridge
	Binder      *simbridge.SensorBinder
	Permissions *simbridge.Permissions
}

// NewSimulation builds simulated plugins. Missing plugins are modelled the
// way a host without the native library behaves: location init fails and
// the sensor bind is refused.
func NewSimulation(cfg config.Config) *Simulation {
	sc := cfg.Simulation
	s := &Simulation{Mailbox: bridge.NewMailbox(cfg.Location.MailboxSize)}

	if sc.LocationMissing {
		s.Location = simbridge.MissingPlugin(s.Mailbox)
	} else {
		loc := simbridge.DefaultLocationConfig()
		loc.Start = s2.LatLngFromDegrees(sc.StartLatitude, sc.StartLongitude)
		loc.Course = sc.Course
		loc.Speed = sc.Speed
		loc.Accuracy = sc.Accuracy
		loc.Jitter = sc.Jitter
		if sc.FixInterval > 0 {
			loc.FixInterval = sc.FixInterval
		}
		s.Location = simbridge.NewLocationProvider(loc, s.Mailbox)
	}

	s.Sensors = simbridge.NewSensorBridge(simbridge.SensorConfig{
		Heading:  sc.Heading,
		TurnRate: sc.TurnRate,
		Seed:     1,
	})
	s.Binder = simbridge.NewSensorBinder(s.Sensors)
	if sc.SensorsMissing {
		s.Binder.FailBind(errSensorPluginMissing)
	}

	if sc.GrantPermissions {
		s.Permissions = simbridge.AllGranted()
	} else {
		s.Permissions = simbridge.NewPermissions(false)
	}
	return s
}

// Bridges returns the runtime collaborators backed by the simulation.
func (s *Simulation) Bridges() Bridges {
	return Bridges{
		Location:    s.Location,
		Mailbox:     s.Mailbox,
		SensorBind:  s.Binder,
		Host:        simHost{name: "compass"},
		Permissions: s.Permissions,
	}
}

// Advance moves the simulated device forward by d.
func (s *Simulation) Advance(d time.Duration) {
	s.Location.Advance(d)
	s.Sensors.Advance(d)
}

// OnTick adapts Advance to a before-tick hook.
func (s *Simulation) OnTick(t timectrl.Tick) {
	s.Advance(t.Delta)
}
