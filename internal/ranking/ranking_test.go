package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aisradar/internal/cpa"
	"github.com/banshee-data/aisradar/internal/risk"
	"github.com/banshee-data/aisradar/internal/timeutil"
	"github.com/banshee-data/aisradar/internal/tracks"
)

var epoch = time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)

var defaultParams = Params{
	RangeNm:       2,
	CpaThreshNm:   0.5,
	TcpaThreshMin: 15,
	DangerEnabled: true,
	Liveness:      6 * time.Minute,
	FadeStart:     2 * time.Minute,
	FadeFull:      6 * time.Minute,
}

type fixture struct {
	clock *timeutil.MockClock
	store *tracks.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := timeutil.NewMockClock(epoch)
	f := &fixture{clock: clock, store: tracks.NewStore(clock)}
	f.own(0, 0, 0, 10)
	return f
}

func (f *fixture) own(lat, lon, cog, sog float64) {
	f.store.Update("", true, func(r *tracks.KinematicRecord) {
		r.SetPosition(lat, lon)
		r.CogDeg, r.SogKn = cog, sog
	})
}

func (f *fixture) target(id string, lat, lon, cog, sog float64) {
	f.store.Update(id, false, func(r *tracks.KinematicRecord) {
		r.SetPosition(lat, lon)
		r.CogDeg, r.SogKn = cog, sog
	})
}

func (f *fixture) evaluate(p Params) []Contact {
	return Evaluate(f.store.View(), f.clock.Now(), p)
}

func ids(list []Contact) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}

func TestEvaluate_HeadOn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("urn:mrn:imo:mmsi:244123456", 0.02, 0, 180, 10)

	list := f.evaluate(defaultParams)
	require.Len(t, list, 1)
	c := list[0]

	assert.Equal(t, "MMSI 244123456", c.Label)
	assert.InDelta(t, 2210.8/1852, c.RangeNm, 1e-9)
	assert.InDelta(t, 0, c.BearingDeg, 1e-9)
	require.NotNil(t, c.CPA)
	assert.InDelta(t, 0, c.CPA.CpaNm, 1e-9)
	assert.InDelta(t, 3.58, c.CPA.TcpaMin, 0.01)
	assert.True(t, c.Danger)
	assert.Equal(t, 1.0, c.Score)
	assert.Equal(t, risk.BandHigh, c.Band)
	assert.Equal(t, 1.0, c.StaleAlpha)
	assert.Equal(t, "0s", c.AgeText)
}

func TestEvaluate_HeadOnConverging(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	prev := math.Inf(1)
	for _, lat := range []float64{0.02, 0.015, 0.01, 0.005} {
		f.target("a", lat, 0, 180, 10)
		list := f.evaluate(defaultParams)
		require.Len(t, list, 1)
		require.NotNil(t, list[0].CPA)
		assert.Less(t, list[0].CPA.TcpaMin, prev)
		assert.True(t, list[0].Danger)
		prev = list[0].CPA.TcpaMin
	}
}

func TestEvaluate_SameCourseAstern(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("astern", -0.01, 0, 0, 10)

	list := f.evaluate(defaultParams)
	require.Len(t, list, 1)
	c := list[0]
	require.NotNil(t, c.CPA)
	assert.True(t, math.IsInf(c.CPA.TcpaMin, 1))
	assert.InDelta(t, c.RangeNm, c.CPA.CpaNm, 1e-9)
	assert.InDelta(t, 180, c.BearingDeg, 1e-9)
	assert.False(t, c.Danger)
	assert.Less(t, c.Score, 0.2)
	assert.Equal(t, risk.BandLow, c.Band)
}

func TestEvaluate_LivenessExpiry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("old", 0.01, 0, 0, 0)
	f.clock.Advance(5 * time.Minute)
	f.target("fresh", 0.01, 0.01, 0, 0)

	list := f.evaluate(defaultParams)
	assert.Equal(t, []string{"fresh", "old"}, sortedIDs(list))

	f.clock.Advance(90 * time.Second)
	list = f.evaluate(defaultParams)
	assert.Equal(t, []string{"fresh"}, ids(list))

	_, ok := f.store.Target("old")
	assert.True(t, ok, "expired target stays addressable in the store")
}

func TestEvaluate_StaleFade(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("a", 0.01, 0, 0, 0)
	f.clock.Advance(4 * time.Minute)

	list := f.evaluate(defaultParams)
	require.Len(t, list, 1)
	assert.InDelta(t, 0.625, list[0].StaleAlpha, 1e-12)
	assert.Equal(t, 4*time.Minute, list[0].Elapsed)
	assert.Equal(t, "4m 0s", list[0].AgeText)
}

func TestEvaluate_RangeFilter(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("near", 0.01, 0, 0, 0)
	f.target("far", 0.1, 0, 0, 0) // ~6 nm

	assert.Equal(t, []string{"near"}, ids(f.evaluate(defaultParams)))

	p := defaultParams
	p.RangeNm = 12
	assert.Len(t, f.evaluate(p), 2)
}

func TestEvaluate_NoFixes(t *testing.T) {
	t.Parallel()

	t.Run("own-ship without fix", func(t *testing.T) {
		t.Parallel()
		clock := timeutil.NewMockClock(epoch)
		store := tracks.NewStore(clock)
		store.Update("a", false, func(r *tracks.KinematicRecord) { r.SetPosition(0, 0) })

		list := Evaluate(store.View(), clock.Now(), defaultParams)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("target without fix", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.store.Update("nofix", false, func(r *tracks.KinematicRecord) { r.Name = "GHOST" })
		assert.Empty(t, f.evaluate(defaultParams))
	})
}

func TestEvaluate_DangerDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("a", 0.02, 0, 180, 10)

	p := defaultParams
	p.DangerEnabled = false
	list := f.evaluate(p)
	require.Len(t, list, 1)
	assert.False(t, list[0].Danger)
	assert.Equal(t, 1.0, list[0].Score, "score does not depend on the alert gate")
}

func TestEvaluate_Ordering(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.target("headon", 0.02, 0, 180, 10)     // closing, score 1
	f.target("astern", -0.01, 0, 0, 10)      // constant range, low
	f.target("receding", 0.01, 0.005, 0, 20) // separating
	f.target("drifting", 0, 0.015, 0, 0)     // stopped abeam

	list := f.evaluate(defaultParams)
	require.Len(t, list, 4)
	assert.Equal(t, "headon", list[0].ID)
	for i := 1; i < len(list); i++ {
		assert.GreaterOrEqual(t, list[i-1].Score, list[i].Score, "%s before %s", list[i-1].ID, list[i].ID)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	near := &cpa.Result{CpaNm: 0.1}
	far := &cpa.Result{CpaNm: 0.9}
	mk := func(id string, score float64, r *cpa.Result) Contact {
		return Contact{KinematicRecord: tracks.KinematicRecord{ID: id}, Score: score, CPA: r}
	}

	list := []Contact{
		mk("e", 0.5, nil),
		mk("d", 0.5, far),
		mk("c", 0.5, near),
		mk("b", 0.5, near),
		mk("a", 0.9, nil),
	}
	sortContacts(list)

	want := []string{"a", "b", "c", "d", "e"}
	if diff := cmp.Diff(want, ids(list)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()
	list := []Contact{{KinematicRecord: tracks.KinematicRecord{ID: "a"}}, {KinematicRecord: tracks.KinematicRecord{ID: "b"}}}
	c, ok := Find(list, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", c.ID)
	_, ok = Find(list, "z")
	assert.False(t, ok)
}
