package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/signalsfoundry/target-compass/core"
	"github.com/signalsfoundry/target-compass/internal/event"
	"github.com/signalsfoundry/target-compass/internal/navigation"
	"github.com/signalsfoundry/target-compass/model"
)

func init() {
	color.NoColor = true
}

type fakeEvents struct {
	initialized event.Signal
	status      event.Bus[string]
	started     event.Signal
	stopped     event.Signal
	permitted   bool
}

func (f *fakeEvents) OnInitialized(fn func()) func()         { return f.initialized.Subscribe(fn) }
func (f *fakeEvents) OnStatusMessage(fn func(string)) func() { return f.status.Subscribe(fn) }
func (f *fakeEvents) OnTrackingStarted(fn func()) func()     { return f.started.Subscribe(fn) }
func (f *fakeEvents) OnTrackingStopped(fn func()) func()     { return f.stopped.Subscribe(fn) }
func (f *fakeEvents) HasLocationPermissions() bool           { return f.permitted }

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		0:       "0.0 m",
		12.34:   "12.3 m",
		999.94:  "999.9 m",
		1000:    "1.00 km",
		12345.6: "12.35 km",
	}
	for in, want := range cases {
		if got := FormatDistance(in); got != want {
			t.Fatalf("FormatDistance(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestAccuracyColoursUseSeparateThresholds(t *testing.T) {
	if ClassColor(core.IndicatorThresholds.Classify(12)).Equals(ClassColor(core.PanelThresholds.Classify(12))) {
		t.Fatalf("12m must colour differently on the indicator and the panel")
	}
	if !ClassColor(core.AccuracyHigh).Equals(color.New(color.FgGreen)) {
		t.Fatalf("high accuracy must be green")
	}
	if got := FormatAccuracy(4.25, core.PanelThresholds); got != "4.2 m" && got != "4.3 m" {
		t.Fatalf("unexpected accuracy text %q", got)
	}
}

func TestArrow(t *testing.T) {
	cases := map[float64]string{0: "↑", 44: "↗", 90: "→", 180: "↓", 350: "↑", 360: "↑", 400: "↗", -90: "←"}
	for in, want := range cases {
		if got := Arrow(in); got != want {
			t.Fatalf("Arrow(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFollowsLifecycleEvents(t *testing.T) {
	loc := model.NewLocationModel()
	c := New(&bytes.Buffer{}, loc, model.NewSensorModel(), nil)
	ev := &fakeEvents{permitted: true}
	c.Attach(ev)

	steps := []struct {
		fire func()
		want string
	}{
		{ev.initialized.Fire, "GPS Initialized"},
		{func() { ev.status.Publish("gps|2") }, "gps|2"},
		{ev.started.Fire, "Tracking started..."},
		{ev.stopped.Fire, "Tracking stopped"},
	}
	for _, s := range steps {
		s.fire()
		if c.Status() != s.want {
			t.Fatalf("status %q, want %q", c.Status(), s.want)
		}
	}

	c.Detach()
	ev.started.Fire()
	if c.Status() != "Tracking stopped" {
		t.Fatalf("detached console must not change status")
	}
}

func TestRenderShowsNavigation(t *testing.T) {
	loc := model.NewLocationModel()
	sens := model.NewSensorModel()
	target, err := model.NewTarget("shop", 0, 0.01)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	eng := navigation.NewEngine(loc, sens, target)
	var buf bytes.Buffer
	c := New(&buf, loc, sens, eng)
	c.Attach(&fakeEvents{permitted: false})

	out := c.Render()
	if !strings.Contains(out, "waiting for location") {
		t.Fatalf("expected waiting line, got:\n%s", out)
	}
	if !strings.Contains(out, "Location permission not granted") {
		t.Fatalf("expected permission warning, got:\n%s", out)
	}

	sens.Commit(model.SensorSnapshot{Orientation: model.Orientation{Heading: 90, Valid: true}})
	loc.UpdateLocation(model.Fix{Accuracy: 3})
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	out = buf.String()
	for _, want := range []string{"Distance: 1.11 km", "Precision: 3.0 m", "Direction: ↑ 0°", "Heading: 90.0°", "Updates: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderDropsDistanceAfterReset(t *testing.T) {
	loc := model.NewLocationModel()
	sens := model.NewSensorModel()
	target, err := model.NewTarget("shop", 0, 0.01)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	eng := navigation.NewEngine(loc, sens, target)
	c := New(&bytes.Buffer{}, loc, sens, eng)

	loc.UpdateLocation(model.Fix{Accuracy: 3})
	out := c.Render()
	if !strings.Contains(out, "Distance: 1.11 km") || !strings.Contains(out, "waiting for heading") {
		t.Fatalf("expected distance without direction, got:\n%s", out)
	}

	loc.Reset()
	out = c.Render()
	if strings.Contains(out, "Distance:") {
		t.Fatalf("reset model must not show a distance, got:\n%s", out)
	}
	if !strings.Contains(out, "waiting for location") {
		t.Fatalf("expected waiting line, got:\n%s", out)
	}
}

func TestDebugLines(t *testing.T) {
	loc := model.NewLocationModel()
	loc.UpdateLocation(model.Fix{Latitude: 53.953168, Longitude: 27.677397, Accuracy: 4})
	lines := DebugLines(loc, true, true)
	if lines[0] != "=== GPS Status ===" || lines[4] != "Coords: 53.953168, 27.677397" || lines[6] != "Has Valid Data: true" {
		t.Fatalf("unexpected debug lines %v", lines)
	}
}
