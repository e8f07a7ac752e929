// Package stream keeps a Signal K delta stream connected. A Supervisor owns
// the reconnect state machine and hands every inbound payload to a handler;
// the transport itself sits behind the Dialer interface.
package stream

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/aisradar/internal/monitoring"
	"github.com/banshee-data/aisradar/internal/timeutil"
)

var (
	// ErrRunning is returned by Start on a supervisor that is not idle.
	ErrRunning = errors.New("stream supervisor already running")
	// ErrStopped is the cancellation cause seen by a transport when the
	// supervisor is stopped.
	ErrStopped = errors.New("stream supervisor stopped")
)

// Dialer opens a transport.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is an open transport delivering one payload per Read.
type Conn interface {
	// Read blocks until the next payload arrives, the transport fails or
	// ctx is done.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Handler consumes one inbound payload. Returned errors are logged and
// otherwise ignored.
type Handler func(payload []byte) error

// Backoff is the reconnect delay policy.
type Backoff struct {
	Floor      time.Duration
	Ceiling    time.Duration
	Multiplier float64
}

// DefaultBackoff is 500ms growing by 1.6x up to 8s.
var DefaultBackoff = Backoff{Floor: 500 * time.Millisecond, Ceiling: 8 * time.Second, Multiplier: 1.6}

// Next returns the delay after d, rounded to the millisecond and capped at
// the ceiling.
func (b Backoff) Next(d time.Duration) time.Duration {
	ms := math.Round(float64(d) * b.Multiplier / float64(time.Millisecond))
	next := time.Duration(ms) * time.Millisecond
	if next > b.Ceiling {
		return b.Ceiling
	}
	return next
}

// Status is a point-in-time view of the supervisor for the API.
type Status struct {
	State          State     `json:"state"`
	Session        string    `json:"session,omitempty"`
	Attempts       uint64    `json:"attempts"`
	NextBackoff    string    `json:"next_backoff"`
	LastError      string    `json:"last_error,omitempty"`
	ConnectedSince time.Time `json:"connected_since,omitzero"`
	Paused         bool      `json:"paused"`
	Received       uint64    `json:"received"`
	Dropped        uint64    `json:"dropped"`
	HandlerErrors  uint64    `json:"handler_errors"`
}

// Supervisor runs the Idle → Connecting → Connected → Disconnected cycle
// around a Dialer.
type Supervisor struct {
	dialer  Dialer
	handler Handler
	clock   timeutil.Clock
	policy  Backoff

	mu        sync.Mutex
	state     State
	gen       uint64 // bumped on Stop; fences timers and readers of older runs
	ctx       context.Context
	cancel    context.CancelCauseFunc
	timer     timeutil.Timer
	conn      Conn
	backoff   time.Duration
	session   string
	attempts  uint64
	lastErr   error
	since     time.Time
	observers []func(State)
	pending   []State

	paused        atomic.Bool
	received      atomic.Uint64
	dropped       atomic.Uint64
	handlerErrors atomic.Uint64

	taps tapSet
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithClock replaces the real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(s *Supervisor) { s.policy = b }
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(d Dialer, h Handler, opts ...Option) *Supervisor {
	s := &Supervisor{
		dialer:  d,
		handler: h,
		clock:   timeutil.RealClock{},
		policy:  DefaultBackoff,
		taps:    tapSet{subs: make(map[string]chan []byte)},
	}
	for _, o := range opts {
		o(s)
	}
	s.backoff = s.policy.Floor
	return s
}

// OnState registers f to be called after every state change. Observers run
// on the goroutine that caused the change and must not block.
func (s *Supervisor) OnState(f func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, f)
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetPaused freezes delivery: payloads are still read from the transport but
// dropped before the handler.
func (s *Supervisor) SetPaused(p bool) {
	s.paused.Store(p)
}

// Paused reports the pause flag.
func (s *Supervisor) Paused() bool {
	return s.paused.Load()
}

// Start moves an idle supervisor to Connecting and schedules the first
// attempt immediately. Transports are bound to ctx.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrRunning
	}
	s.ctx, s.cancel = context.WithCancelCause(ctx)
	s.backoff = s.policy.Floor
	s.setStateLocked(Connecting)
	s.scheduleLocked(0)
	s.unlockAndNotify()
	return nil
}

// Stop cancels any pending reconnect, closes the transport and returns the
// supervisor to Idle. It is safe to call more than once.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel(ErrStopped)
		s.cancel = nil
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.session = ""
	s.setStateLocked(Idle)
	s.unlockAndNotify()
	return err
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:         s.state,
		Session:       s.session,
		Attempts:      s.attempts,
		NextBackoff:   s.backoff.String(),
		Paused:        s.paused.Load(),
		Received:      s.received.Load(),
		Dropped:       s.dropped.Load(),
		HandlerErrors: s.handlerErrors.Load(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.state == Connected {
		st.ConnectedSince = s.since
	}
	return st
}

func (s *Supervisor) scheduleLocked(d time.Duration) {
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.attempt(gen) })
}

// attempt runs when a reconnect timer fires.
func (s *Supervisor) attempt(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.attempts++
	n := s.attempts
	ctx := s.ctx
	s.setStateLocked(Connecting)
	s.unlockAndNotify()

	monitoring.Debugf("stream: connect attempt %d", n)
	conn, err := s.dialer.Dial(ctx)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.lastErr = err
		monitoring.Logf("stream: connect failed: %v (retry in %v)", err, s.backoff)
		s.disconnectLocked()
		s.unlockAndNotify()
		return
	}

	s.conn = conn
	s.backoff = s.policy.Floor
	s.session = uuid.NewString()
	s.since = s.clock.Now()
	s.lastErr = nil
	session := s.session
	s.setStateLocked(Connected)
	s.unlockAndNotify()

	monitoring.Logf("stream: connected (session %s)", session)
	go s.readLoop(ctx, gen, conn)
}

// disconnectLocked moves to Disconnected and schedules the next attempt
// after the current backoff, growing it for the one after.
func (s *Supervisor) disconnectLocked() {
	s.setStateLocked(Disconnected)
	s.scheduleLocked(s.backoff)
	s.backoff = s.policy.Next(s.backoff)
}

func (s *Supervisor) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		payload, err := conn.Read(ctx)
		if err != nil {
			s.connectionLost(gen, conn, err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.deliver(payload)
	}
}

func (s *Supervisor) connectionLost(gen uint64, conn Conn, err error) {
	s.mu.Lock()
	if gen != s.gen || s.conn != conn {
		s.mu.Unlock()
		return
	}
	conn.Close()
	s.conn = nil
	s.session = ""
	s.lastErr = err
	monitoring.Logf("stream: connection lost: %v (retry in %v)", err, s.backoff)
	s.disconnectLocked()
	s.unlockAndNotify()
}

func (s *Supervisor) deliver(payload []byte) {
	s.received.Add(1)
	s.taps.publish(payload)
	if s.paused.Load() {
		s.dropped.Add(1)
		return
	}
	if err := s.handler(payload); err != nil {
		s.handlerErrors.Add(1)
		monitoring.Debugf("stream: payload ignored: %v", err)
	}
}

func (s *Supervisor) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.pending = append(s.pending, st)
}

// unlockAndNotify releases s.mu and then runs observers for every state
// change recorded while it was held.
func (s *Supervisor) unlockAndNotify() {
	pending := s.pending
	s.pending = nil
	observers := s.observers
	s.mu.Unlock()

	for _, st := range pending {
		for _, f := range observers {
			f(st)
		}
	}
}
