package model

import "testing"

func TestNewLocationModelDefaults(t *testing.T) {
	m := NewLocationModel()
	s := m.State()

	if s.HasValidData || s.IsTracking || s.UpdateCount != 0 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if s.Accuracy != UnknownAccuracy {
		t.Fatalf("Accuracy = %v, want %v", s.Accuracy, UnknownAccuracy)
	}
}

func TestUpdateLocationIncrementsCounterAndNotifies(t *testing.T) {
	m := NewLocationModel()
	notified := 0
	m.OnDataUpdated(func() { notified++ })

	m.UpdateLocation(Fix{Latitude: 53.9, Longitude: 27.6, Accuracy: 4})
	m.UpdateLocation(Fix{Latitude: 53.91, Longitude: 27.61, Accuracy: 3})

	if got := m.UpdateCount(); got != 2 {
		t.Fatalf("UpdateCount() = %d, want 2", got)
	}
	if !m.HasValidData() {
		t.Fatalf("expected HasValidData after a fix")
	}
	if got := m.Fix().Latitude; got != 53.91 {
		t.Fatalf("Latitude = %v, want 53.91", got)
	}
	if notified != 2 {
		t.Fatalf("data-updated notifications = %d, want 2", notified)
	}
}

func TestSetTrackingStateNotifiesOnlyOnChange(t *testing.T) {
	m := NewLocationModel()
	var transitions []bool
	m.OnTrackingStateChanged(func(tracking bool) { transitions = append(transitions, tracking) })

	if !m.SetTrackingState(true) {
		t.Fatalf("first SetTrackingState(true) should report a change")
	}
	if m.SetTrackingState(true) {
		t.Fatalf("repeated SetTrackingState(true) should not report a change")
	}
	m.SetTrackingState(false)
	m.SetTrackingState(false)

	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("transitions = %v, want [true false]", transitions)
	}
}

func TestSetStatusPublishesDataUpdated(t *testing.T) {
	m := NewLocationModel()
	notified := 0
	m.OnDataUpdated(func() { notified++ })

	m.SetStatus("Starting GPS...")

	if m.Status() != "Starting GPS..." || notified != 1 {
		t.Fatalf("status=%q notified=%d", m.Status(), notified)
	}
}

func TestResetRestoresDefaultsButKeepsTracking(t *testing.T) {
	m := NewLocationModel()
	m.SetTrackingState(true)
	m.UpdateLocation(Fix{Latitude: 1, Longitude: 2, Accuracy: 3})

	m.Reset()

	s := m.State()
	if s.HasValidData || s.UpdateCount != 0 || s.Accuracy != UnknownAccuracy || s.Status != "Reset" {
		t.Fatalf("unexpected state after Reset: %+v", s)
	}
	if !s.IsTracking {
		t.Fatalf("Reset must not clear the tracking flag")
	}
}

func TestLocationModelString(t *testing.T) {
	m := NewLocationModel()
	m.UpdateLocation(Fix{Latitude: 53.953168, Longitude: 27.677397, Accuracy: 4.25})

	want := "Lat: 53.953168, Lon: 27.677397, Acc: 4.2m, HasData: true"
	if got := m.String(); got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
