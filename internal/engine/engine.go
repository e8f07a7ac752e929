// Package engine wires the track store, delta ingestion, the stream
// supervisor and the ranking pass into one explicitly constructed instance.
//
// An Engine is built once per process by New, started with Start, driven by
// Run and torn down with Stop. Everything a renderer needs (ranked
// contacts, own-ship, selection, connection status, runtime settings) is
// read through its methods; nothing is package-level.
package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/banshee-data/aisradar/internal/config"
	"github.com/banshee-data/aisradar/internal/httputil"
	"github.com/banshee-data/aisradar/internal/ingest"
	"github.com/banshee-data/aisradar/internal/monitoring"
	"github.com/banshee-data/aisradar/internal/ranking"
	"github.com/banshee-data/aisradar/internal/stream"
	"github.com/banshee-data/aisradar/internal/timeutil"
	"github.com/banshee-data/aisradar/internal/tracks"
	"github.com/banshee-data/aisradar/internal/version"
)

// pruneInterval is how often Run drops records older than prune_after.
const pruneInterval = time.Minute

// Settings are the operator controls that can change at runtime.
type Settings struct {
	RangeNm       float64 `json:"range_nm"`
	CpaThreshNm   float64 `json:"cpa_threshold_nm"`
	TcpaThreshMin float64 `json:"tcpa_threshold_min"`
	DangerEnabled bool    `json:"danger_enabled"`
	ShowVectors   bool    `json:"show_vectors"`
	ShowLabels    bool    `json:"show_labels"`
}

func (s Settings) clamped() Settings {
	s.RangeNm = config.ClampRangeNm(s.RangeNm)
	s.CpaThreshNm = config.ClampCpaThreshNm(s.CpaThreshNm)
	s.TcpaThreshMin = config.ClampTcpaThreshMin(s.TcpaThreshMin)
	return s
}

// SettingsFromConfig returns the startup settings.
func SettingsFromConfig(cfg *config.RadarConfig) Settings {
	return Settings{
		RangeNm:       cfg.GetDefaultRangeNm(),
		CpaThreshNm:   cfg.GetCpaThresholdNm(),
		TcpaThreshMin: cfg.GetTcpaThresholdMin(),
		DangerEnabled: cfg.GetDangerEnabled(),
		ShowVectors:   cfg.GetShowVectorsDefault(),
		ShowLabels:    cfg.GetShowLabelsDefault(),
	}.clamped()
}

// Selection is the selected track. Contact is nil when the selected track
// is not in the last ranked list.
type Selection struct {
	ID      string           `json:"id,omitempty"`
	Contact *ranking.Contact `json:"contact,omitempty"`
}

// Status summarises the engine for the status endpoint and the periodic log.
type Status struct {
	Stream      stream.Status `json:"stream"`
	Ingest      ingest.Stats  `json:"ingest"`
	Tracks      int           `json:"tracks"`
	Contacts    int           `json:"contacts"`
	Dangers     int           `json:"dangers"`
	OwnFix      bool          `json:"own_fix"`
	EvaluatedAt time.Time     `json:"evaluated_at,omitzero"`
	Build       version.Info  `json:"build"`
}

// Engine is the collision-risk tracking engine.
type Engine struct {
	cfg   *config.RadarConfig
	clock timeutil.Clock

	store  *tracks.Store
	proc   *ingest.Processor
	sup    *stream.Supervisor
	seeder *ingest.Seeder

	seedClient httputil.HTTPClient

	// evalMu serialises Evaluate so a slower pass cannot overwrite the
	// result of a newer one.
	evalMu sync.Mutex

	mu          sync.Mutex
	settings    Settings
	contacts    []ranking.Contact
	evaluatedAt time.Time
	cursor      ranking.Cursor
	lastPrune   time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock in the store, the supervisor and the
// evaluation loop.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSeedClient enables the one-shot own-ship seed from the Signal K REST
// API at the configured server URL.
func WithSeedClient(c httputil.HTTPClient) Option {
	return func(e *Engine) { e.seedClient = c }
}

// New builds an idle engine reading deltas through dialer.
func New(cfg *config.RadarConfig, dialer stream.Dialer, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		clock:    timeutil.RealClock{},
		settings: SettingsFromConfig(cfg),
	}
	for _, o := range opts {
		o(e)
	}

	e.store = tracks.NewStore(e.clock)
	e.proc = ingest.NewProcessor(e.store)
	e.sup = stream.NewSupervisor(dialer, e.proc.ApplyJSON,
		stream.WithClock(e.clock),
		stream.WithBackoff(stream.Backoff{
			Floor:      cfg.GetBackoffFloor(),
			Ceiling:    cfg.GetBackoffCeiling(),
			Multiplier: cfg.GetBackoffMultiplier(),
		}),
	)
	e.sup.OnState(func(s stream.State) {
		monitoring.Logf("stream: %s", s)
	})
	if e.seedClient != nil {
		e.seeder = ingest.NewSeeder(e.proc, e.seedClient, cfg.GetServerURL(), cfg.GetSeedTimeout())
	}
	e.lastPrune = e.clock.Now()
	return e
}

// Config returns the startup configuration.
func (e *Engine) Config() *config.RadarConfig { return e.cfg }

// Store returns the track store.
func (e *Engine) Store() *tracks.Store { return e.store }

// Processor returns the delta processor fed by the stream.
func (e *Engine) Processor() *ingest.Processor { return e.proc }

// Stream returns the connection supervisor.
func (e *Engine) Stream() *stream.Supervisor { return e.sup }

// Start seeds own-ship, if a seed client was given, and starts the stream.
func (e *Engine) Start(ctx context.Context) error {
	if e.seeder != nil {
		e.seeder.Seed(ctx)
	}
	return e.sup.Start(ctx)
}

// Run evaluates on every evaluate_interval tick and prunes old records
// until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.Evaluate()

	ticker := e.clock.NewTicker(e.cfg.GetEvaluateInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	now := e.clock.Now()
	e.mu.Lock()
	due := now.Sub(e.lastPrune) >= pruneInterval
	if due {
		e.lastPrune = now
	}
	e.mu.Unlock()

	if due {
		if n := e.store.Prune(e.cfg.GetPruneAfter()); n > 0 {
			monitoring.Debugf("pruned %d tracks older than %v", n, e.cfg.GetPruneAfter())
		}
	}
	e.Evaluate()
}

// Stop closes the stream. The store keeps its records.
func (e *Engine) Stop() error {
	return e.sup.Stop()
}

func (e *Engine) params(s Settings) ranking.Params {
	return ranking.Params{
		RangeNm:       s.RangeNm,
		CpaThreshNm:   s.CpaThreshNm,
		TcpaThreshMin: s.TcpaThreshMin,
		DangerEnabled: s.DangerEnabled,
		Liveness:      e.cfg.GetLivenessHorizon(),
		FadeStart:     e.cfg.GetStaleFadeStart(),
		FadeFull:      e.cfg.GetStaleFadeFull(),
	}
}

// Evaluate ranks the current store contents, keeps the result as the last
// snapshot and returns a copy of it.
func (e *Engine) Evaluate() []ranking.Contact {
	e.evalMu.Lock()
	defer e.evalMu.Unlock()

	snap := e.store.View()

	e.mu.Lock()
	p := e.params(e.settings)
	e.mu.Unlock()

	list := ranking.Evaluate(snap, snap.Taken, p)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.contacts = list
	e.evaluatedAt = snap.Taken
	return slices.Clone(list)
}

// Contacts returns a copy of the last ranked list.
func (e *Engine) Contacts() []ranking.Contact {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.contacts == nil {
		return []ranking.Contact{}
	}
	return slices.Clone(e.contacts)
}

// Own returns the current own-ship record.
func (e *Engine) Own() tracks.KinematicRecord {
	return e.store.Own()
}

// Status returns counters from every stage.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{
		Contacts:    len(e.contacts),
		EvaluatedAt: e.evaluatedAt,
	}
	for _, c := range e.contacts {
		if c.Danger {
			st.Dangers++
		}
	}
	e.mu.Unlock()

	st.Stream = e.sup.Status()
	st.Ingest = e.proc.Stats()
	st.Tracks = e.store.Len()
	st.OwnFix = e.store.Own().HasFix
	st.Build = version.Get()
	return st
}

func (e *Engine) selectionLocked() Selection {
	id, ok := e.cursor.Selected()
	if !ok {
		return Selection{}
	}
	sel := Selection{ID: id}
	if c, found := ranking.Find(e.contacts, id); found {
		sel.Contact = &c
	}
	return sel
}

// Selected returns the current selection.
func (e *Engine) Selected() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectionLocked()
}

// Select selects id if it is in the last ranked list and reports whether
// it was.
func (e *Engine) Select(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := ranking.Find(e.contacts, id); !ok {
		return false
	}
	e.cursor.Select(id)
	return true
}

// Toggle selects id, or clears the selection if id was already selected.
func (e *Engine) Toggle(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := ranking.Find(e.contacts, id); !ok {
		return false
	}
	e.cursor.Toggle(id)
	return true
}

// Next moves the selection down the last ranked list.
func (e *Engine) Next() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor.Next(e.contacts)
	return e.selectionLocked()
}

// Previous moves the selection up the last ranked list.
func (e *Engine) Previous() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor.Previous(e.contacts)
	return e.selectionLocked()
}

// ClearSelection drops the selection.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cursor.Clear()
}

// Reset forgets every target and own-ship, drops the selection and
// re-evaluates. The stream connection is left alone.
func (e *Engine) Reset() {
	e.store.Reset()
	e.mu.Lock()
	e.cursor.Clear()
	e.mu.Unlock()
	monitoring.Logf("track store reset")
	e.Evaluate()
}

// SetPaused freezes or resumes ingestion.
func (e *Engine) SetPaused(p bool) {
	e.sup.SetPaused(p)
	monitoring.Logf("ingestion paused=%t", p)
}

// Paused reports whether ingestion is frozen.
func (e *Engine) Paused() bool {
	return e.sup.Paused()
}

// Settings returns the current runtime settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// UpdateSettings applies fn to a copy of the settings, clamps the result to
// the operator bounds, stores it and re-evaluates.
func (e *Engine) UpdateSettings(fn func(*Settings)) Settings {
	e.mu.Lock()
	s := e.settings
	fn(&s)
	s = s.clamped()
	e.settings = s
	e.mu.Unlock()

	monitoring.Debugf("settings: %+v", s)
	e.Evaluate()
	return s
}
