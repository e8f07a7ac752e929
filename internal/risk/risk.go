// Package risk turns CPA/TCPA geometry into a bounded criticality score and a
// discrete danger flag.
//
// The score decays exponentially in both CPA and TCPA, each with its half
// value at the operator's safety threshold, and combines them as a weighted
// root-sum-square (60% spatial, 40% temporal). The result is then corrected
// by the range rate: separating targets are suppressed, closing targets are
// boosted unless they are overtaking from astern.
package risk

import (
	"math"
	"time"

	"github.com/banshee-data/aisradar/internal/cpa"
	"github.com/banshee-data/aisradar/internal/geo"
	"github.com/banshee-data/aisradar/internal/units"
)

const (
	weightCPA  = 0.6
	weightTCPA = 0.4

	// RangeRateDeadbandKn separates "closing" and "separating" from
	// "roughly constant range".
	RangeRateDeadbandKn = 0.5

	factorSeparating = 0.1
	factorOvertaking = 0.8
	factorAhead      = 1.2
	factorConstant   = 0.5

	minThreshold = 1e-9
)

// Geometry is the encounter geometry for one target. Valid is false when no
// CPA could be computed.
type Geometry struct {
	BearingDeg float64
	CpaNm      float64
	TcpaMin    float64
	Valid      bool
}

// FromCPA builds Geometry from a bearing and a CPA result.
func FromCPA(bearingDeg float64, res cpa.Result, ok bool) Geometry {
	if !ok {
		return Geometry{BearingDeg: bearingDeg}
	}
	return Geometry{
		BearingDeg: bearingDeg,
		CpaNm:      res.CpaNm,
		TcpaMin:    res.TcpaMin,
		Valid:      true,
	}
}

// Kinematics is the course and speed of a vessel.
type Kinematics struct {
	CogDeg float64
	SogKn  float64
}

// Approach classifies the range rate of a target.
type Approach int

const (
	Constant Approach = iota
	Separating
	Overtaking // closing from abaft the beam
	Closing    // closing from ahead or abeam
)

func (a Approach) String() string {
	switch a {
	case Separating:
		return "separating"
	case Overtaking:
		return "overtaking"
	case Closing:
		return "closing"
	default:
		return "constant"
	}
}

func (a Approach) factor() float64 {
	switch a {
	case Separating:
		return factorSeparating
	case Overtaking:
		return factorOvertaking
	case Closing:
		return factorAhead
	default:
		return factorConstant
	}
}

// RangeRateKn is the rate of change of range along the bearing line in
// knots. Negative means closing.
func RangeRateKn(bearingDeg float64, target, own Kinematics) float64 {
	rel := geo.VelocityKnots(target.CogDeg, target.SogKn)
	o := geo.VelocityKnots(own.CogDeg, own.SogKn)
	u := geo.BearingUnit(bearingDeg)
	return (rel.X-o.X)*u.X + (rel.Y-o.Y)*u.Y
}

// Classify returns the approach class of a target at bearingDeg.
func Classify(bearingDeg float64, target, own Kinematics) Approach {
	rr := RangeRateKn(bearingDeg, target, own)
	switch {
	case rr > RangeRateDeadbandKn:
		return Separating
	case rr < -RangeRateDeadbandKn:
		rel := units.NormalizeRelDeg(bearingDeg - own.CogDeg)
		if math.Abs(rel) > 90 {
			return Overtaking
		}
		return Closing
	default:
		return Constant
	}
}

// decay is exp(-ln2 * (x/threshold)^2); 1 at zero, 0.5 at the threshold.
func decay(x, threshold float64) float64 {
	if math.IsInf(x, 1) {
		return 0
	}
	q := x / math.Max(threshold, minThreshold)
	return math.Exp(-math.Ln2 * q * q)
}

// Score returns the criticality of a target in [0, 1]. Missing geometry
// scores 0.
func Score(g Geometry, target, own Kinematics, cpaThreshNm, tcpaThreshMin float64) float64 {
	if !g.Valid {
		return 0
	}
	rc := decay(g.CpaNm, cpaThreshNm)
	rt := decay(g.TcpaMin, tcpaThreshMin)
	k := math.Sqrt(weightCPA*rc*rc + weightTCPA*rt*rt)
	k *= Classify(g.BearingDeg, target, own).factor()
	return clamp01(k)
}

// Danger is the discrete alert gate: both CPA and TCPA inside their
// thresholds, with alerting enabled.
func Danger(g Geometry, cpaThreshNm, tcpaThreshMin float64, enabled bool) bool {
	if !enabled || !g.Valid {
		return false
	}
	return g.CpaNm <= cpaThreshNm && g.TcpaMin <= tcpaThreshMin
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Band is a coarse colour class for a score.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandFor maps a score to its display band.
func BandFor(score float64) Band {
	switch {
	case score > 0.66:
		return BandHigh
	case score > 0.33:
		return BandMedium
	default:
		return BandLow
	}
}

// MinStaleAlpha is the opacity of a contact at the end of its fade.
const MinStaleAlpha = 0.25

// StaleAlpha fades a contact linearly from 1 to MinStaleAlpha as its age
// goes from fadeStart to fadeFull.
func StaleAlpha(age, fadeStart, fadeFull time.Duration) float64 {
	if age <= fadeStart {
		return 1
	}
	if age >= fadeFull || fadeFull <= fadeStart {
		return MinStaleAlpha
	}
	f := float64(age-fadeStart) / float64(fadeFull-fadeStart)
	return 1 - f*(1-MinStaleAlpha)
}
