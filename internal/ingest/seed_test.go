package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aisradar/internal/httputil"
)

const selfAPI = "/signalk/v1/api/vessels/self/"

func TestSeeder_Seed(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc(selfAPI+"navigation/position", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":{"latitude":52.37,"longitude":4.89},"timestamp":"2026-01-04T10:00:00Z"}`))
	})
	mux.HandleFunc(selfAPI+"navigation/courseOverGroundTrue", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`3.141592653589793`))
	})
	mux.HandleFunc(selfAPI+"navigation/speedOverGround", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value":2.572222}`))
	})
	mux.HandleFunc(selfAPI+"name", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"Wind Dancer"`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p, store, _ := newProcessor(t)
	s := NewSeeder(p, server.Client(), server.URL+"/", time.Second)

	n := s.Seed(context.Background())
	assert.Equal(t, 4, n)

	own := store.Own()
	assert.True(t, own.HasFix)
	assert.Equal(t, 52.37, own.Lat)
	assert.Equal(t, 4.89, own.Lon)
	assert.InDelta(t, 180, own.CogDeg, 1e-9)
	assert.InDelta(t, 5, own.SogKn, 1e-5)
	assert.Equal(t, "Wind Dancer", own.Name)
	assert.Equal(t, epoch, own.LastUpdate)
	assert.Equal(t, 0, store.Len())
}

func TestSeeder_PartialData(t *testing.T) {
	t.Parallel()
	mock := httputil.NewMockHTTPClient().
		On(selfAPI+"navigation/position", http.StatusOK, `{"latitude":1,"longitude":2}`).
		OnError(selfAPI+"navigation/courseOverGroundTrue", errors.New("timeout")).
		On(selfAPI+"name", http.StatusOK, `null`)

	p, store, _ := newProcessor(t)
	n := NewSeeder(p, mock, "http://boat.local", time.Second).Seed(context.Background())

	// Position fetched; course errored; speed 404; name fetched but null.
	assert.Equal(t, 2, n)
	own := store.Own()
	assert.True(t, own.HasFix)
	assert.Zero(t, own.CogDeg)
	assert.Equal(t, "Own", own.Name)
	assert.Equal(t, []string{
		selfAPI + "navigation/position",
		selfAPI + "navigation/courseOverGroundTrue",
		selfAPI + "navigation/speedOverGround",
		selfAPI + "name",
	}, mock.Paths())
}

func TestSeeder_NothingAvailable(t *testing.T) {
	t.Parallel()
	mock := httputil.NewMockHTTPClient()
	mock.DefaultError = errors.New("connection refused")

	p, store, _ := newProcessor(t)
	n := NewSeeder(p, mock, "http://boat.local", time.Second).Seed(context.Background())

	assert.Zero(t, n)
	assert.True(t, store.Own().LastUpdate.IsZero(), "own-ship not stamped without data")
	assert.Zero(t, p.Stats().Deltas)
}

func TestUnwrapValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{`{"value":1.5,"timestamp":"x"}`, `1.5`},
		{`{"latitude":1,"longitude":2}`, `{"latitude":1,"longitude":2}`},
		{`"name"`, `"name"`},
		{`2.5`, `2.5`},
	}
	for _, tt := range tests {
		got := unwrapValue([]byte(tt.in))
		require.Equal(t, tt.want, string(got), "unwrap %s", tt.in)
	}
}
