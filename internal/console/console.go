package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/navigation"
	"github.com/signalsfoundry/target-compass/model"
)

// LifecycleEvents is the consumer surface of the acquisition lifecycle.
type LifecycleEvents interface {
	OnInitialized(fn func()) (unsubscribe func())
	OnStatusMessage(fn func(string)) (unsubscribe func())
	OnTrackingStarted(fn func()) (unsubscribe func())
	OnTrackingStopped(fn func()) (unsubscribe func())
	HasLocationPermissions() bool
}

// NavigationSource yields the last navigation output.
type NavigationSource interface {
	Output() (navigation.Output, bool)
	DistanceToTarget() float64
	Target() model.Target
}

// Option customises a Console.
type Option func(*Console)

// WithIndicatorThresholds sets the thresholds colouring the direction block.
func WithIndicatorThresholds(t core.Thresholds) Option {
	return func(c *Console) { c.indicator = t }
}

// WithPanelThresholds sets the thresholds colouring the location block.
func WithPanelThresholds(t core.Thresholds) Option {
	return func(c *Console) { c.panel = t }
}

// Console holds the text shown to the user. The location block and the
// direction block colour accuracy with independent thresholds.
type Console struct {
	out       io.Writer
	location  *model.LocationModel
	sensors   *model.SensorModel
	nav       NavigationSource
	indicator core.Thresholds
	panel     core.Thresholds

	mu     sync.Mutex
	status string
	events LifecycleEvents
	unsubs []func()
}

// New creates a console writing to out.
func New(out io.Writer, location *model.LocationModel, sensors *model.SensorModel, nav NavigationSource, opts ...Option) *Console {
	c := &Console{
		out:       out,
		location:  location,
		sensors:   sensors,
		nav:       nav,
		indicator: core.IndicatorThresholds,
		panel:     core.PanelThresholds,
		status:    "Initializing GPS...",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach subscribes the status line to lifecycle events.
func (c *Console) Attach(ev LifecycleEvents) {
	c.mu.Lock()
	c.events = ev
	c.mu.Unlock()

	c.unsubs = append(c.unsubs,
		ev.OnInitialized(func() { c.setStatus("GPS Initialized") }),
		ev.OnStatusMessage(c.setStatus),
		ev.OnTrackingStarted(func() { c.setStatus("Tracking started...") }),
		ev.OnTrackingStopped(func() { c.setStatus("Tracking stopped") }),
	)
}

// Detach drops every lifecycle subscription.
func (c *Console) Detach() {
	for _, u := range c.unsubs {
		u()
	}
	c.unsubs = nil
}

func (c *Console) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Status returns the current status line.
func (c *Console) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Render builds the full panel text.
func (c *Console) Render() string {
	var b strings.Builder
	st := c.location.State()

	c.mu.Lock()
	status := c.status
	ev := c.events
	c.mu.Unlock()

	fmt.Fprintf(&b, "%s %s\n", bold.Sprint("Status:"), status)
	if ev != nil && !ev.HasLocationPermissions() {
		fmt.Fprintf(&b, "%s\n", color.RedString("Location permission not granted"))
	}

	coords := color.New(color.FgYellow)
	if st.HasValidData {
		coords = color.New(color.FgGreen)
	}
	fmt.Fprintf(&b, "%s\n", coords.Sprintf("Lat: %.6f  Lon: %.6f", st.Latitude, st.Longitude))
	fmt.Fprintf(&b, "Accuracy: %s\n", FormatAccuracy(st.Accuracy, c.panel))
	fmt.Fprintf(&b, "Altitude: %.1f m  Speed: %.1f m/s\n", st.Altitude, st.Speed)
	fmt.Fprintf(&b, "Updates: %d  Bearing: %.0f°  Tracking: %v\n", st.UpdateCount, st.Bearing, st.IsTracking)

	if c.sensors != nil && c.sensors.HasData() {
		o := c.sensors.Snapshot().Orientation
		fmt.Fprintf(&b, "%s\n", faint.Sprintf("Heading: %.1f°  Pitch: %.1f°  Roll: %.1f°", o.Heading, o.Pitch, o.Roll))
	}

	if c.nav == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "Target: %s\n", c.nav.Target())
	if !st.HasValidData {
		fmt.Fprintf(&b, "%s\n", faint.Sprint("Direction: waiting for location and heading"))
		return b.String()
	}
	fmt.Fprintf(&b, "Distance: %s\n", bold.Sprint(FormatDistance(c.nav.DistanceToTarget())))
	fmt.Fprintf(&b, "Precision: %s\n", FormatAccuracy(st.Accuracy, c.indicator))
	out, ok := c.nav.Output()
	if !ok {
		fmt.Fprintf(&b, "%s\n", faint.Sprint("Direction: waiting for heading"))
		return b.String()
	}
	fmt.Fprintf(&b, "Direction: %s %.0f° (bearing %.0f°)\n", Arrow(out.RelativeBearing), out.RelativeBearing, out.TargetBearing)
	return b.String()
}

// Flush writes the rendered panel to the output.
func (c *Console) Flush() error {
	_, err := io.WriteString(c.out, c.Render())
	return err
}

// DebugLines returns the diagnostic dump of the location state.
func DebugLines(location *model.LocationModel, tracking, permitted bool) []string {
	st := location.State()
	return []string{
		"=== GPS Status ===",
		fmt.Sprintf("Tracking: %v", tracking),
		fmt.Sprintf("Permissions: %v", permitted),
		fmt.Sprintf("Updates: %d", st.UpdateCount),
		fmt.Sprintf("Coords: %.6f, %.6f", st.Latitude, st.Longitude),
		fmt.Sprintf("Accuracy: %.1fm", st.Accuracy),
		fmt.Sprintf("Has Valid Data: %v", st.HasValidData),
	}
}
