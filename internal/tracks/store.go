// Package tracks owns the vessel registry: one own-ship record plus every
// target heard on the stream, keyed by Signal K vessel id.
//
// The Store is the single mutual-exclusion boundary between ingestion and
// evaluation. Records are merged field by field and never replaced
// wholesale; stale records stay addressable until Prune removes them.
package tracks

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/aisradar/internal/timeutil"
)

// OwnID is the fixed identity of the own-ship record.
const OwnID = "own"

// DefaultOwnName is shown until the stream or the seed provides a name.
const DefaultOwnName = "Own"

// KinematicRecord is the last known state of a vessel.
type KinematicRecord struct {
	ID string `json:"id"`

	// Position, decimal degrees. Both coordinates are set together; HasFix
	// gates all downstream geometry.
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	HasFix bool    `json:"has_fix"`

	SogKn  float64 `json:"sog_kn"`  // Speed over ground, knots
	CogDeg float64 `json:"cog_deg"` // Course over ground, degrees true [0, 360)

	Name string `json:"name,omitempty"`
	MMSI uint32 `json:"mmsi,omitempty"` // 0 when unknown

	LastUpdate time.Time `json:"last_update"`
}

// SetPosition sets both coordinates at once.
func (r *KinematicRecord) SetPosition(lat, lon float64) {
	r.Lat = lat
	r.Lon = lon
	r.HasFix = true
}

// Age returns how long ago the record was last updated.
func (r KinematicRecord) Age(now time.Time) time.Duration {
	if r.LastUpdate.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(r.LastUpdate)
}

// Snapshot is a point-in-time copy of the store. Own and every target were
// read under the same lock, so a ranking pass never sees a torn state.
type Snapshot struct {
	Own     KinematicRecord
	Targets []KinematicRecord
	Taken   time.Time
}

// Store holds own-ship and all targets.
type Store struct {
	mu      sync.RWMutex
	clock   timeutil.Clock
	own     KinematicRecord
	targets map[string]*KinematicRecord
}

// NewStore creates an empty store. A nil clock means the real clock.
func NewStore(clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Store{
		clock:   clock,
		own:     newOwn(),
		targets: make(map[string]*KinematicRecord),
	}
}

func newOwn() KinematicRecord {
	return KinematicRecord{ID: OwnID, Name: DefaultOwnName}
}

// Update applies fn to the own-ship record (self) or to the target keyed by
// id, creating the target on first sight. The record's LastUpdate is
// stamped after fn returns.
func (s *Store) Update(id string, self bool, fn func(*KinematicRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if self {
		fn(&s.own)
		s.own.ID = OwnID
		s.own.LastUpdate = now
		return
	}

	rec, ok := s.targets[id]
	if !ok {
		rec = &KinematicRecord{ID: id}
	}
	fn(rec)
	rec.ID = id
	rec.LastUpdate = now
	s.targets[id] = rec
}

// Own returns a copy of the own-ship record.
func (s *Store) Own() KinematicRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.own
}

// Target returns a copy of a target record, stale or not.
func (s *Store) Target(id string) (KinematicRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.targets[id]
	if !ok {
		return KinematicRecord{}, false
	}
	return *rec, true
}

// Len returns the number of target records, including stale ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.targets)
}

// View copies own-ship and all targets under one read lock.
func (s *Store) View() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Own:     s.own,
		Targets: make([]KinematicRecord, 0, len(s.targets)),
		Taken:   s.clock.Now(),
	}
	for _, rec := range s.targets {
		snap.Targets = append(snap.Targets, *rec)
	}
	return snap
}

// Prune removes targets not updated within maxAge and returns how many
// were removed. Own-ship is never pruned.
func (s *Store) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for id, rec := range s.targets {
		if rec.Age(now) > maxAge {
			delete(s.targets, id)
			removed++
		}
	}
	return removed
}

// Reset clears all targets and restores the default own-ship record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.own = newOwn()
	s.targets = make(map[string]*KinematicRecord)
}
