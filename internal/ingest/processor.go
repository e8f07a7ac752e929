package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/aisradar/internal/monitoring"
	"github.com/banshee-data/aisradar/internal/tracks"
)

// Rejections. The delta is dropped without touching the store.
var (
	ErrNoUpdates = errors.New("delta has no updates")
	ErrNoContext = errors.New("delta has no context")
	ErrNotVessel = errors.New("delta context is not a vessel")
)

// Stats counts ingestion outcomes since the processor was created.
type Stats struct {
	Deltas   uint64 `json:"deltas"`
	Rejected uint64 `json:"rejected"`
	Applied  uint64 `json:"values_applied"`
	Skipped  uint64 `json:"values_skipped"`
}

// Processor routes deltas to own-ship or to a target and applies their
// values field by field.
type Processor struct {
	store *tracks.Store

	deltas   atomic.Uint64
	rejected atomic.Uint64
	applied  atomic.Uint64
	skipped  atomic.Uint64
}

// NewProcessor creates a processor writing into store.
func NewProcessor(store *tracks.Store) *Processor {
	return &Processor{store: store}
}

// ApplyJSON decodes payload as a delta and applies it. Decode failures and
// rejections are returned for logging; the store is untouched in both cases.
func (p *Processor) ApplyJSON(payload []byte) error {
	var d Delta
	if err := json.Unmarshal(payload, &d); err != nil {
		p.deltas.Add(1)
		p.rejected.Add(1)
		return fmt.Errorf("decode delta: %w", err)
	}
	return p.Apply(d)
}

// Apply merges d into the store. Values are applied in message order under
// one store lock; entries that no matcher claims are skipped individually.
// The record's LastUpdate is stamped once the batch is done.
func (p *Processor) Apply(d Delta) error {
	p.deltas.Add(1)
	if d.Updates == nil {
		p.rejected.Add(1)
		return ErrNoUpdates
	}
	if d.Context == "" {
		p.rejected.Add(1)
		return ErrNoContext
	}
	id, ok := vesselID(d.Context)
	if !ok {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %q", ErrNotVessel, d.Context)
	}

	self := id == SelfID || d.manualOwnship()
	if !self && id == "" {
		p.rejected.Add(1)
		return fmt.Errorf("%w: %q", ErrNoContext, d.Context)
	}

	var applied, skipped uint64
	p.store.Update(id, self, func(rec *tracks.KinematicRecord) {
		for _, u := range d.Updates {
			if u.malformed {
				skipped++
				monitoring.Debugf("ingest: skipped malformed update in %s", d.Context)
				continue
			}
			for _, v := range u.Values {
				if !v.malformed && match(rec, v) != nil {
					applied++
					continue
				}
				skipped++
				monitoring.Debugf("ingest: skipped %s path %q", d.Context, v.Path)
			}
		}
	})
	p.applied.Add(applied)
	p.skipped.Add(skipped)
	return nil
}

// Stats returns the current counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Deltas:   p.deltas.Load(),
		Rejected: p.rejected.Load(),
		Applied:  p.applied.Load(),
		Skipped:  p.skipped.Load(),
	}
}
