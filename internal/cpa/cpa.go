// Package cpa computes the closest point of approach between own-ship and a
// target, assuming both hold their current course and speed.
package cpa

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/aisradar/internal/geo"
	"github.com/banshee-data/aisradar/internal/tracks"
	"github.com/banshee-data/aisradar/internal/units"
)

// MinRelSpeedSq is the squared relative speed (m²/s²) below which the two
// vessels are treated as moving together and no CPA time is projected.
const MinRelSpeedSq = 1e-6

// Result is the projected encounter geometry. It is computed fresh on every
// evaluation and never stored on a record.
type Result struct {
	CpaNm   float64 // separation at CPA, nautical miles
	TcpaMin float64 // minutes until CPA; +Inf when relative speed is negligible
	TcpaSec float64

	// Point is the target's offset from own-ship at CPA, metres east/north.
	Point r2.Vec
}

// MarshalJSON encodes an infinite TCPA as null.
func (r Result) MarshalJSON() ([]byte, error) {
	var tcpa *float64
	if r.Converging() {
		tcpa = &r.TcpaMin
	}
	return json.Marshal(struct {
		CpaNm   float64  `json:"cpa_nm"`
		TcpaMin *float64 `json:"tcpa_min"`
		East    float64  `json:"cpa_east_m"`
		North   float64  `json:"cpa_north_m"`
	}{r.CpaNm, tcpa, r.Point.X, r.Point.Y})
}

// Converging reports whether a finite CPA time exists.
func (r Result) Converging() bool {
	return !math.IsInf(r.TcpaSec, 1)
}

// Compute returns the CPA/TCPA of target relative to own. It reports false
// when either record lacks a position fix.
func Compute(own, target tracks.KinematicRecord) (Result, bool) {
	if !own.HasFix || !target.HasFix {
		return Result{}, false
	}

	r := geo.RelativeOffset(own.Lat, own.Lon, target.Lat, target.Lon)
	v := r2.Sub(geo.Velocity(target.CogDeg, target.SogKn), geo.Velocity(own.CogDeg, own.SogKn))

	v2 := r2.Norm2(v)
	if v2 < MinRelSpeedSq {
		return Result{
			CpaNm:   units.MetersToNM(r2.Norm(r)),
			TcpaMin: math.Inf(1),
			TcpaSec: math.Inf(1),
			Point:   r,
		}, true
	}

	// A CPA in the past is not actionable; clamp to now.
	t := math.Max(0, -r2.Dot(r, v)/v2)
	p := r2.Add(r, r2.Scale(t, v))
	return Result{
		CpaNm:   units.MetersToNM(r2.Norm(p)),
		TcpaMin: t / 60,
		TcpaSec: t,
		Point:   p,
	}, true
}
