// Package ranking turns a track store snapshot into the ordered contact list
// shown to the operator.
package ranking

import (
	"cmp"
	"slices"
	"time"

	"github.com/banshee-data/aisradar/internal/cpa"
	"github.com/banshee-data/aisradar/internal/geo"
	"github.com/banshee-data/aisradar/internal/risk"
	"github.com/banshee-data/aisradar/internal/tracks"
	"github.com/banshee-data/aisradar/internal/units"
)

// Params are the operator settings a ranking pass depends on.
type Params struct {
	RangeNm       float64
	CpaThreshNm   float64
	TcpaThreshMin float64
	DangerEnabled bool

	// Liveness hides targets not heard from within this window.
	Liveness time.Duration

	FadeStart time.Duration
	FadeFull  time.Duration
}

// Contact is one ranked target. It is valid for a single evaluation.
type Contact struct {
	tracks.KinematicRecord

	Label      string      `json:"label"`
	RangeNm    float64     `json:"range_nm"`
	BearingDeg float64     `json:"bearing_deg"`
	CPA        *cpa.Result `json:"cpa"`
	Score      float64     `json:"score"`
	Danger     bool        `json:"danger"`
	Band       risk.Band   `json:"band"`

	Elapsed    time.Duration `json:"-"`
	AgeText    string        `json:"age"`
	StaleAlpha float64       `json:"stale_alpha"`
}

// Evaluate ranks every live, in-range target with a fix against the
// snapshot's own-ship. The result is empty when own-ship has no fix.
func Evaluate(snap tracks.Snapshot, now time.Time, p Params) []Contact {
	out := []Contact{}
	own := snap.Own
	if !own.HasFix {
		return out
	}
	ownKin := risk.Kinematics{CogDeg: own.CogDeg, SogKn: own.SogKn}

	for _, t := range snap.Targets {
		if !t.HasFix {
			continue
		}
		age := t.Age(now)
		if age > p.Liveness {
			continue
		}

		off := geo.RelativeOffset(own.Lat, own.Lon, t.Lat, t.Lon)
		rng := geo.RangeNM(off)
		if rng > p.RangeNm {
			continue
		}
		brg := geo.Bearing(off)

		res, ok := cpa.Compute(own, t)
		g := risk.FromCPA(brg, res, ok)
		score := risk.Score(g, risk.Kinematics{CogDeg: t.CogDeg, SogKn: t.SogKn}, ownKin, p.CpaThreshNm, p.TcpaThreshMin)

		c := Contact{
			KinematicRecord: t,
			Label:           Label(t),
			RangeNm:         rng,
			BearingDeg:      brg,
			Score:           score,
			Danger:          risk.Danger(g, p.CpaThreshNm, p.TcpaThreshMin, p.DangerEnabled),
			Band:            risk.BandFor(score),
			Elapsed:         age,
			AgeText:         units.FormatAge(age),
			StaleAlpha:      risk.StaleAlpha(age, p.FadeStart, p.FadeFull),
		}
		if ok {
			r := res
			c.CPA = &r
		}
		out = append(out, c)
	}

	slices.SortFunc(out, compare)
	return out
}

// compare orders by score descending, then CPA ascending with missing CPA
// last, then id.
func compare(a, b Contact) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	switch {
	case a.CPA != nil && b.CPA == nil:
		return -1
	case a.CPA == nil && b.CPA != nil:
		return 1
	case a.CPA != nil && b.CPA != nil:
		if c := cmp.Compare(a.CPA.CpaNm, b.CPA.CpaNm); c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID, b.ID)
}

// Find returns the contact with the given id.
func Find(list []Contact, id string) (Contact, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}
