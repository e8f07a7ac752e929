// Package units provides shared constants and conversions for the marine
// units used across the radar: knots, nautical miles, degrees true.
package units

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Speed units accepted by the contacts endpoint.
const (
	MPS  = "mps"
	KN   = "kn"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, KN, MPH, KMPH, KPH}

const (
	// KnotsPerMPS converts metres per second to knots.
	KnotsPerMPS = 1.943844
	// MetersPerNauticalMile is the international nautical mile.
	MetersPerNauticalMile = 1852.0
	// MetersPerDegLat is the fixed planar scale used for latitude offsets.
	MetersPerDegLat = 110540.0
	// MetersPerDegLonEquator is scaled by cos(latitude) for longitude offsets.
	MetersPerDegLonEquator = 111320.0
)

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString lists ValidUnits for error messages.
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from meters per second to the target units.
// Signal K reports speed over ground in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case KN:
		return speedMPS * KnotsPerMPS
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// KnotsToMPS converts knots to metres per second.
func KnotsToMPS(kn float64) float64 {
	return kn / KnotsPerMPS
}

// MetersToNM converts metres to nautical miles.
func MetersToNM(m float64) float64 {
	return m / MetersPerNauticalMile
}

// Rad converts degrees to radians.
func Rad(deg float64) float64 { return deg * math.Pi / 180 }

// Deg converts radians to degrees.
func Deg(rad float64) float64 { return rad * 180 / math.Pi }

// NormalizeDeg folds an angle into [0, 360).
func NormalizeDeg(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

// NormalizeRelDeg folds an angle into (-180, 180].
func NormalizeRelDeg(deg float64) float64 {
	d := NormalizeDeg(deg)
	if d > 180 {
		d -= 360
	}
	return d
}

// FormatAge renders a contact age the way the target list shows it:
// "42s", "3m 5s", "1h 12m". Negative ages render as "—".
func FormatAge(d time.Duration) string {
	if d < 0 {
		return "—"
	}
	s := int64(d / time.Second)
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	m := s / 60
	if m < 60 {
		return fmt.Sprintf("%dm %ds", m, s%60)
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}
