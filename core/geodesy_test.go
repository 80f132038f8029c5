package core

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceToSelfIsZero(t *testing.T) {
	for _, p := range []s2.LatLng{
		s2.LatLngFromDegrees(0, 0),
		s2.LatLngFromDegrees(53.953168, 27.677397),
		s2.LatLngFromDegrees(-33.8688, 151.2093),
		s2.LatLngFromDegrees(89.9, -179.9),
	} {
		assert.Equal(t, 0.0, Distance(p, p), "distance from %v to itself", p)
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := s2.LatLngFromDegrees(53.953168, 27.677397)
	b := s2.LatLngFromDegrees(51.5074, -0.1278)

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-6)
}

func TestQuarterGreatCircle(t *testing.T) {
	from := s2.LatLngFromDegrees(0, 0)
	to := s2.LatLngFromDegrees(0, 90)

	// R·π/2 with R = 6,371,000 m.
	assert.InDelta(t, EarthRadiusMeters*math.Pi/2, Distance(from, to), 1e-6)
	assert.InDelta(t, 10007543.4, Distance(from, to), 1.0)
	assert.InDelta(t, 90.0, Bearing(from, to), 1e-9)
}

func TestDistanceAgreesWithS2(t *testing.T) {
	a := s2.LatLngFromDegrees(53.953168, 27.677397)
	b := s2.LatLngFromDegrees(53.9501, 27.6702)

	want := a.Distance(b).Radians() * EarthRadiusMeters
	got := Distance(a, b)
	require.InDelta(t, want, got, 1e-6*want)
	assert.InDelta(t, got, DistanceDegrees(53.953168, 27.677397, 53.9501, 27.6702), 1e-9)
}

func TestBearingCardinalDirections(t *testing.T) {
	origin := s2.LatLngFromDegrees(10, 10)

	assert.InDelta(t, 0.0, Bearing(origin, s2.LatLngFromDegrees(20, 10)), 1e-9)
	assert.InDelta(t, 180.0, Bearing(origin, s2.LatLngFromDegrees(0, 10)), 1e-9)

	b := Bearing(origin, s2.LatLngFromDegrees(0, 0))
	assert.True(t, b > 180 && b < 270, "bearing %v should point south-west", b)
}

func TestBearingRange(t *testing.T) {
	from := s2.LatLngFromDegrees(0, 0)
	for _, to := range []s2.LatLng{
		s2.LatLngFromDegrees(0, -90),
		s2.LatLngFromDegrees(-10, -10),
		s2.LatLngFromDegrees(10, -1),
	} {
		b := Bearing(from, to)
		assert.True(t, b >= 0 && b < 360, "bearing %v out of [0, 360)", b)
	}
	assert.InDelta(t, 270.0, BearingDegrees(0, 0, 0, -90), 1e-9)
}

func TestRelativeBearingClamp(t *testing.T) {
	cases := []struct {
		name            string
		target, heading float64
		want            float64
	}{
		{"in range", 90, 30, 60},
		{"negative gains 360", 0, 10, 350},
		{"above 360 loses 360", 370, 0, 10},
		{"400 loses 360 once", 400, 0, 40},
		{"760 is only corrected once", 760, 0, 400},
		{"-370 is only corrected once", 0, 370, -10},
		{"exactly 360 is kept", 360, 0, 360},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RelativeBearing(tc.target, tc.heading))
		})
	}
}

func TestRelativeBearingIsNotAFullModulo(t *testing.T) {
	got := RelativeBearing(760, 0)
	assert.NotEqual(t, math.Mod(760, 360), got)
}

func TestDestinationRoundTrip(t *testing.T) {
	start := s2.LatLngFromDegrees(53.95, 27.6)
	for _, bearing := range []float64{10, 45, 135, 270} {
		end := Destination(start, bearing, 1500)
		require.InDelta(t, 1500, Distance(start, end), 0.01, "bearing %v", bearing)
		assert.InDelta(t, bearing, Bearing(start, end), 0.05, "bearing %v", bearing)
	}
}
