package core

import (
	"math"
	"testing"
)

func TestIndicatorThresholdBoundaries(t *testing.T) {
	cases := []struct {
		accuracy float64
		want     AccuracyClass
	}{
		{0, AccuracyHigh},
		{5.0, AccuracyHigh},
		{5.0001, AccuracyMedium},
		{15.0, AccuracyMedium},
		{15.0001, AccuracyLow},
		{999, AccuracyLow},
		{math.NaN(), AccuracyLow},
	}
	for _, tc := range cases {
		if got := IndicatorThresholds.Classify(tc.accuracy); got != tc.want {
			t.Fatalf("Indicator Classify(%v) = %v, want %v", tc.accuracy, got, tc.want)
		}
	}
}

func TestPanelThresholdBoundaries(t *testing.T) {
	cases := []struct {
		accuracy float64
		want     AccuracyClass
	}{
		{5.0, AccuracyHigh},
		{5.0001, AccuracyMedium},
		{10.0, AccuracyMedium},
		{10.0001, AccuracyLow},
		{15.0, AccuracyLow},
	}
	for _, tc := range cases {
		if got := PanelThresholds.Classify(tc.accuracy); got != tc.want {
			t.Fatalf("Panel Classify(%v) = %v, want %v", tc.accuracy, got, tc.want)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := IndicatorThresholds.Validate(); err != nil {
		t.Fatalf("indicator thresholds invalid: %v", err)
	}
	if err := (Thresholds{High: 10, Medium: 5}).Validate(); err == nil {
		t.Fatalf("expected inverted thresholds to fail validation")
	}
	if err := (Thresholds{High: -1, Medium: 5}).Validate(); err == nil {
		t.Fatalf("expected negative threshold to fail validation")
	}
}
