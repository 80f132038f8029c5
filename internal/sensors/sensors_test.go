package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/target-compass/internal/bridge"
	"github.com/signalsfoundry/target-compass/internal/bridge/simbridge"
	"github.com/signalsfoundry/target-compass/internal/sched"
	"github.com/signalsfoundry/target-compass/model"
	"github.com/signalsfoundry/target-compass/timectrl"
)

type fixture struct {
	ctx     context.Context
	clock   *timectrl.TimeController
	sched   sched.EventScheduler
	sensors *simbridge.SensorBridge
	binder  *simbridge.SensorBinder
	perms   *simbridge.Permissions
	model   *model.SensorModel
	loop    *Loop
}

func newFixture(t *testing.T, perms *simbridge.Permissions) *fixture {
	t.Helper()
	f := &fixture{
		ctx:     context.Background(),
		clock:   timectrl.NewTimeController(time.Unix(0, 0).UTC(), 50*time.Millisecond, timectrl.Accelerated),
		sensors: simbridge.NewSensorBridge(simbridge.SensorConfig{Heading: 120}),
		perms:   perms,
		model:   model.NewSensorModel(),
	}
	f.sched = sched.NewEventScheduler(f.clock)
	f.binder = simbridge.NewSensorBinder(f.sensors)
	f.loop = New(DefaultConfig(), f.binder, "activity", perms, f.sched, f.model)
	return f
}

func (f *fixture) advance(n int) {
	for i := 0; i < n; i++ {
		tick := f.clock.Step()
		f.sched.RunDue()
		f.loop.Tick(f.ctx, tick.Delta)
	}
}

func TestInitializeStartsAfterDelay(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	initialized := 0
	f.loop.OnInitialized(func() { initialized++ })

	if err := f.loop.Initialize(f.ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !f.loop.Available() || f.loop.Active() {
		t.Fatalf("expected available but not active before the start delay")
	}

	f.advance(9)
	if f.loop.Active() {
		t.Fatalf("sensors must not start before 500ms")
	}
	f.advance(1)
	if !f.loop.Active() || initialized != 1 {
		t.Fatalf("expected sensors active and initialized event, active=%v init=%d", f.loop.Active(), initialized)
	}
	if f.binder.Host() != "activity" {
		t.Fatalf("expected host handle passed to binder")
	}
}

func TestInitializeWaitsForPermission(t *testing.T) {
	perms := simbridge.NewPermissions(true)
	f := newFixture(t, perms)
	if err := f.loop.Initialize(f.ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	f.advance(10)
	if perms.Requests() != 1 || f.loop.Active() {
		t.Fatalf("expected a permission request and no start yet")
	}
	f.advance(19)
	if f.loop.Active() {
		t.Fatalf("start must wait the full permission window")
	}
	f.advance(1)
	if !f.loop.Active() {
		t.Fatalf("expected sensors started after permission wait")
	}
}

func TestBindFailureMarksUnavailable(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	f.binder.FailBind(errors.New("no host activity"))

	err := f.loop.Initialize(f.ctx)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if f.loop.Available() {
		t.Fatalf("expected unavailable")
	}
	f.advance(40)
	if f.model.HasData() || f.sched.Pending() != 0 {
		t.Fatalf("an unavailable loop must never poll or schedule")
	}
	f.loop.SetForeground(f.ctx, true)
	if f.loop.Active() {
		t.Fatalf("resume must not start an unavailable loop")
	}
}

func TestPollCadence(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	_ = f.loop.Initialize(f.ctx)
	f.advance(10)

	// The start tick already accumulated 50ms.
	if f.model.Commits() != 0 {
		t.Fatalf("expected no poll on the start tick")
	}
	f.advance(1)
	if f.model.Commits() != 1 {
		t.Fatalf("expected a poll at 100ms, commits %d", f.model.Commits())
	}
	f.advance(1)
	if f.model.Commits() != 1 {
		t.Fatalf("50ms accumulated must not poll")
	}
	f.advance(20)
	if f.model.Commits() != 11 {
		t.Fatalf("expected 10 more polls over 1s, got %d", f.model.Commits()-1)
	}
}

func TestLongTickPollsOnceAndResets(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	_ = f.loop.Initialize(f.ctx)
	f.advance(10)

	before := f.model.Commits()
	f.loop.Tick(f.ctx, 350*time.Millisecond)
	if f.model.Commits() != before+1 {
		t.Fatalf("a long tick must poll exactly once")
	}
	f.loop.Tick(f.ctx, 60*time.Millisecond)
	if f.model.Commits() != before+1 {
		t.Fatalf("accumulator must reset to zero, not carry the remainder")
	}
}

func TestSnapshotCarriesHeadingFromSecondSlot(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	_ = f.loop.Initialize(f.ctx)
	f.advance(10)

	var got model.SensorSnapshot
	f.loop.OnDataUpdated(func(s model.SensorSnapshot) { got = s })
	if err := f.loop.Poll(f.ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got.Orientation.Heading != 120 || !got.Orientation.Valid {
		t.Fatalf("expected heading 120, got %+v", got.Orientation)
	}
	if got.Pressure != 1013.25 || got.Gravity.Z != 9.81 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestSnapshotWithoutOrientationChannelHasNoHeading(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	cfg := DefaultConfig()
	cfg.Channels = []bridge.Channel{bridge.Accelerometer, bridge.Magnetometer}
	f.loop = New(cfg, f.binder, "activity", f.perms, f.sched, f.model)
	_ = f.loop.Initialize(f.ctx)
	f.advance(12)

	if !f.model.HasData() {
		t.Fatalf("expected committed snapshots")
	}
	if o := f.model.Snapshot().Orientation; o.Valid || o.Heading != 0 {
		t.Fatalf("orientation must stay unset when the channel is not polled, got %+v", o)
	}
}

func TestFailedReadLeavesModelUnchanged(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	_ = f.loop.Initialize(f.ctx)
	f.advance(10)
	if err := f.loop.Poll(f.ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	before := f.model.Snapshot()
	commits := f.model.Commits()

	// Orientation is read after the motion channels, so a fault on Humidity
	// happens mid-poll after the new heading was already read.
	f.sensors.SetHeading(200)
	f.sensors.FailRead(bridge.Humidity, errors.New("i2c timeout"))
	if err := f.loop.Poll(f.ctx); err == nil {
		t.Fatalf("expected poll error")
	}
	if f.model.Commits() != commits || f.model.Snapshot() != before {
		t.Fatalf("a failed poll must not change the model")
	}

	f.sensors.FailRead(bridge.Humidity, nil)
	f.sensors.ShortRead(bridge.Orientation, true)
	err := f.loop.Poll(f.ctx)
	if !errors.Is(err, ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", err)
	}
	if f.model.Snapshot().Orientation.Heading != 120 {
		t.Fatalf("short read must not leak partial values")
	}
	if _, failed := f.loop.Polls(); failed != 2 {
		t.Fatalf("expected 2 failed polls, got %d", failed)
	}
}

func TestForegroundStopsAndRestarts(t *testing.T) {
	f := newFixture(t, simbridge.AllGranted())
	_ = f.loop.Initialize(f.ctx)
	f.advance(10)

	f.loop.SetForeground(f.ctx, false)
	if f.loop.Active() || f.sensors.AreSensorsStarted() {
		t.Fatalf("pause must stop sensors")
	}
	commits := f.model.Commits()
	f.advance(10)
	if f.model.Commits() != commits {
		t.Fatalf("no polling while paused")
	}

	f.loop.SetForeground(f.ctx, true)
	if !f.loop.Active() {
		t.Fatalf("resume must restart sensors")
	}
	f.advance(2)
	if f.model.Commits() != commits+1 {
		t.Fatalf("expected polling to resume")
	}
}
