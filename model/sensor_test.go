package model

import (
	"strings"
	"testing"
)

func TestSensorModelCommitPublishesCopy(t *testing.T) {
	m := NewSensorModel()
	if m.HasData() {
		t.Fatalf("new model should not report data")
	}

	var received SensorSnapshot
	m.OnUpdated(func(s SensorSnapshot) { received = s })

	snap := SensorSnapshot{
		Accelerometer: Vec3{X: 0.1, Y: 0.2, Z: 9.8},
		Orientation:   Orientation{Heading: 45},
		Light:         120,
	}
	m.Commit(snap)

	// Mutating the published copy must not leak into the model.
	received.Orientation.Heading = 999

	got := m.Snapshot()
	if got.Orientation.Heading != 45 || got.Light != 120 {
		t.Fatalf("Snapshot() = %+v", got)
	}
	if !m.HasData() || m.Commits() != 1 {
		t.Fatalf("HasData=%v Commits=%d, want true/1", m.HasData(), m.Commits())
	}
}

func TestSensorSnapshotStringSections(t *testing.T) {
	out := SensorSnapshot{}.String()
	for _, section := range []string{"=== MOTION ===", "=== POSITION ===", "=== ENVIRONMENT ==="} {
		if !strings.Contains(out, section) {
			t.Fatalf("String() missing %q:\n%s", section, out)
		}
	}
}
