package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/aisradar/internal/stream"
	"github.com/banshee-data/aisradar/internal/units"
)

// pipeDialer hands out a single pipeConn fed by the test.
type pipeDialer struct {
	mu   sync.Mutex
	conn *pipeConn
}

func (d *pipeDialer) Dial(ctx context.Context) (stream.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = &pipeConn{payloads: make(chan []byte), closed: make(chan struct{})}
	return d.conn, nil
}

func (d *pipeDialer) current() *pipeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

type pipeConn struct {
	payloads chan []byte
	closed   chan struct{}
	once     sync.Once
}

func (c *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case p := <-c.payloads:
		return p, nil
	case <-c.closed:
		return nil, errors.New("closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *pipeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// deadDialer never connects.
type deadDialer struct{}

func (deadDialer) Dial(ctx context.Context) (stream.Conn, error) {
	return nil, errors.New("unreachable")
}

// vesselDelta builds a Signal K delta carrying position, course and speed.
func vesselDelta(vessel string, lat, lon, cogDeg, sogKn float64) []byte {
	return []byte(fmt.Sprintf(`{"context":%q,"updates":[{"values":[
		{"path":"navigation.position","value":{"latitude":%g,"longitude":%g}},
		{"path":"navigation.courseOverGroundTrue","value":%g},
		{"path":"navigation.speedOverGround","value":%g}
	]}]}`, vessel, lat, lon, cogDeg*math.Pi/180, units.KnotsToMPS(sogKn)))
}
