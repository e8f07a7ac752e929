package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/banshee-data/aisradar/internal/httputil"
	"github.com/banshee-data/aisradar/internal/monitoring"
)

// seedEndpoints maps Signal K REST resources under /signalk/v1/api/vessels/self
// to the delta path their value is applied as.
var seedEndpoints = []struct {
	resource string
	path     string
}{
	{"navigation/position", "navigation.position"},
	{"navigation/courseOverGroundTrue", "navigation.courseOverGroundTrue"},
	{"navigation/speedOverGround", "navigation.speedOverGround"},
	{"name", "name"},
}

// Seeder primes own-ship from the Signal K REST API before the stream is
// up, so the first evaluation already has a fix.
type Seeder struct {
	proc    *Processor
	client  httputil.HTTPClient
	baseURL string
	timeout time.Duration
}

// NewSeeder creates a seeder against baseURL (scheme://host[:port]). Each
// request is bounded by timeout.
func NewSeeder(proc *Processor, client httputil.HTTPClient, baseURL string, timeout time.Duration) *Seeder {
	return &Seeder{
		proc:    proc,
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Seed fetches each own-ship resource and applies what it got as one
// synthetic vessels.self delta. Unavailable resources are skipped. It
// returns the number of resources fetched.
func (s *Seeder) Seed(ctx context.Context) int {
	var values []Value
	for _, ep := range seedEndpoints {
		raw, err := s.fetch(ctx, ep.resource)
		if err != nil {
			monitoring.Debugf("seed: %s: %v", ep.resource, err)
			continue
		}
		values = append(values, Value{Path: ep.path, Value: raw})
	}
	if len(values) == 0 {
		monitoring.Logf("seed: no own-ship data from %s", s.baseURL)
		return 0
	}

	d := Delta{
		Context: "vessels." + SelfID,
		Updates: []Update{{Source: &Source{Label: "rest-seed"}, Values: values}},
	}
	if err := s.proc.Apply(d); err != nil {
		monitoring.Logf("seed: apply: %v", err)
		return 0
	}
	monitoring.Logf("seed: primed own-ship with %d of %d values", len(values), len(seedEndpoints))
	return len(values)
}

func (s *Seeder) fetch(ctx context.Context, resource string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw json.RawMessage
	url := s.baseURL + "/signalk/v1/api/vessels/self/" + resource
	if err := httputil.GetJSON(ctx, s.client, url, &raw); err != nil {
		return nil, err
	}
	return unwrapValue(raw), nil
}

// unwrapValue strips the {"value": ..., "timestamp": ...} envelope some
// servers put around leaf resources.
func unwrapValue(raw json.RawMessage) json.RawMessage {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return raw
	}
	var env struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Value == nil {
		return raw
	}
	return env.Value
}
