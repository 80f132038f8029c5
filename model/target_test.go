package model

import (
	"math"
	"testing"
)

func TestNewTarget(t *testing.T) {
	target, err := NewTarget("shop", 53.953168, 27.677397)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if math.Abs(target.Latitude()-53.953168) > 1e-9 || math.Abs(target.Longitude()-27.677397) > 1e-9 {
		t.Fatalf("target = %v", target)
	}
}

func TestNewTargetRejectsInvalidCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon float64
	}{
		{"lat too high", 90.5, 0},
		{"lon too low", 0, -181},
		{"nan", math.NaN(), 0},
		{"inf", 0, math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTarget("", tc.lat, tc.lon); err == nil {
				t.Fatalf("expected error for (%v, %v)", tc.lat, tc.lon)
			}
		})
	}
}
