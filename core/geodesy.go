package core

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle
// calculations (metres).
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine great-circle distance in metres from one
// coordinate to another on a spherical Earth.
func Distance(from, to s2.LatLng) float64 {
	phi1 := from.Lat.Radians()
	phi2 := to.Lat.Radians()
	dPhi := phi2 - phi1
	dLambda := to.Lng.Radians() - from.Lng.Radians()

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	a := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceDegrees is Distance for coordinates given in degrees.
func DistanceDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	return Distance(s2.LatLngFromDegrees(lat1, lon1), s2.LatLngFromDegrees(lat2, lon2))
}

// Bearing returns the initial bearing (forward azimuth) from one coordinate
// to another, in degrees within [0, 360). 0 is north, 90 is east.
func Bearing(from, to s2.LatLng) float64 {
	phi1 := from.Lat.Radians()
	phi2 := to.Lat.Radians()
	dLambda := to.Lng.Radians() - from.Lng.Radians()

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x) * 180 / math.Pi

	return math.Mod(theta+360, 360)
}

// BearingDegrees is Bearing for coordinates given in degrees.
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	return Bearing(s2.LatLngFromDegrees(lat1, lon1), s2.LatLngFromDegrees(lat2, lon2))
}

// RelativeBearing converts an absolute bearing into one relative to the
// device heading. The result is corrected at most once on each side: a
// negative value gains 360 and a value above 360 loses 360. Inputs further
// out of range are not wrapped any further, and exactly 360 stays 360.
func RelativeBearing(targetBearing, deviceHeading float64) float64 {
	relative := targetBearing - deviceHeading
	if relative < 0 {
		relative += 360
	}
	if relative > 360 {
		relative -= 360
	}
	return relative
}

// Destination returns the point reached by travelling distance metres from
// start along the given initial bearing (degrees).
func Destination(start s2.LatLng, bearing, distance float64) s2.LatLng {
	theta := bearing * math.Pi / 180
	delta := distance / EarthRadiusMeters
	phi1 := start.Lat.Radians()
	lambda1 := start.Lng.Radians()

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return s2.LatLngFromDegrees(phi2*180/math.Pi, math.Remainder(lambda2*180/math.Pi, 360))
}
