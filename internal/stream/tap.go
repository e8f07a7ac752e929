package stream

import (
	"sync"

	"github.com/google/uuid"
)

// tapBuffer is how many payloads a slow tap may fall behind before payloads
// are dropped for it.
const tapBuffer = 64

// tapSet fans raw payloads out to debug subscribers.
type tapSet struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

// Subscribe returns a channel receiving a copy of every raw payload read
// from the transport, paused or not. Slow subscribers miss payloads rather
// than block the stream.
func (s *Supervisor) Subscribe() (string, <-chan []byte) {
	id := uuid.NewString()
	ch := make(chan []byte, tapBuffer)
	s.taps.mu.Lock()
	defer s.taps.mu.Unlock()
	s.taps.subs[id] = ch
	return id, ch
}

// Unsubscribe closes and removes a subscription.
func (s *Supervisor) Unsubscribe(id string) {
	s.taps.mu.Lock()
	defer s.taps.mu.Unlock()
	if ch, ok := s.taps.subs[id]; ok {
		close(ch)
		delete(s.taps.subs, id)
	}
}

func (t *tapSet) publish(payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}
