package model

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// Target is the fixed geographic point the user is guided to.
type Target struct {
	Name   string
	LatLng s2.LatLng
}

// ValidateCoordinates checks that latitude and longitude are finite and in range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return fmt.Errorf("coordinates cannot be NaN")
	}
	if math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("coordinates cannot be infinite")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// NewTarget validates the coordinate and builds a Target.
func NewTarget(name string, lat, lon float64) (Target, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Target{}, err
	}
	return Target{Name: name, LatLng: s2.LatLngFromDegrees(lat, lon)}, nil
}

// Latitude returns the target latitude in degrees.
func (t Target) Latitude() float64 { return t.LatLng.Lat.Degrees() }

// Longitude returns the target longitude in degrees.
func (t Target) Longitude() float64 { return t.LatLng.Lng.Degrees() }

func (t Target) String() string {
	if t.Name == "" {
		return fmt.Sprintf("(%.6f, %.6f)", t.Latitude(), t.Longitude())
	}
	return fmt.Sprintf("%s (%.6f, %.6f)", t.Name, t.Latitude(), t.Longitude())
}
