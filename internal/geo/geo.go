// Package geo holds the short-range planar geometry shared by the CPA engine
// and the ranking pass. Offsets are local east/north metres around own-ship
// using an equirectangular approximation; there is no geodesic correction, so
// results are only meaningful out to a few tens of nautical miles.
package geo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/aisradar/internal/units"
)

// RelativeOffset returns the position of (lat, lon) relative to the origin
// (lat0, lon0) in metres. X is east, Y is north.
func RelativeOffset(lat0, lon0, lat, lon float64) r2.Vec {
	mPerDegLon := units.MetersPerDegLonEquator * math.Cos(units.Rad(lat0))
	return r2.Vec{
		X: (lon - lon0) * mPerDegLon,
		Y: (lat - lat0) * units.MetersPerDegLat,
	}
}

// Bearing returns the true bearing of an offset in degrees, [0, 360).
func Bearing(offset r2.Vec) float64 {
	return units.NormalizeDeg(units.Deg(math.Atan2(offset.X, offset.Y)))
}

// Velocity decomposes course over ground (degrees true) and speed over
// ground (knots) into an east/north velocity in m/s.
func Velocity(cogDeg, sogKn float64) r2.Vec {
	v := units.KnotsToMPS(sogKn)
	a := units.Rad(cogDeg)
	return r2.Vec{X: v * math.Sin(a), Y: v * math.Cos(a)}
}

// VelocityKnots is Velocity without the m/s conversion. The range-rate
// correction in the scorer works in knots.
func VelocityKnots(cogDeg, sogKn float64) r2.Vec {
	a := units.Rad(cogDeg)
	return r2.Vec{X: sogKn * math.Sin(a), Y: sogKn * math.Cos(a)}
}

// RangeNM is the length of an offset in nautical miles.
func RangeNM(offset r2.Vec) float64 {
	return units.MetersToNM(r2.Norm(offset))
}

// BearingUnit is the unit vector pointing along a true bearing.
func BearingUnit(bearingDeg float64) r2.Vec {
	a := units.Rad(bearingDeg)
	return r2.Vec{X: math.Sin(a), Y: math.Cos(a)}
}
