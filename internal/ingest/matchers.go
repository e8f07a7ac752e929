package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/aisradar/internal/tracks"
	"github.com/banshee-data/aisradar/internal/units"
)

// A matcher claims a value when its path test passes and its value decodes
// to the expected type. Matchers are tried in order and the first claim
// wins; a path test that passes with the wrong value type falls through to
// the next matcher.
type matcher struct {
	name  string
	path  func(p string) bool
	apply func(rec *tracks.KinematicRecord, raw json.RawMessage) bool
}

func exact(want string) func(string) bool {
	return func(p string) bool { return p == want }
}

// matchers is the ordered rule set. The three name rules (exact "name", root
// object with .name, any path ending ".name") are independent; whichever
// value arrives last in a batch wins.
var matchers = []matcher{
	{"position", exact("navigation.position"), applyPosition},
	{"course", exact("navigation.courseOverGroundTrue"), applyCourse},
	{"speed", exact("navigation.speedOverGround"), applySpeed},
	{"name", exact("name"), applyName},
	{"mmsi", exact("mmsi"), applyMMSI},
	{"root", exact(""), applyRoot},
	{"suffix-name", func(p string) bool { return strings.HasSuffix(p, ".name") }, applyName},
}

// match returns the matcher that claims the value, or nil.
func match(rec *tracks.KinematicRecord, v Value) *matcher {
	for i := range matchers {
		m := &matchers[i]
		if m.path(v.Path) && m.apply(rec, v.Value) {
			return m
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

type position struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func applyPosition(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var p position
	if err := json.Unmarshal(raw, &p); err != nil {
		return false
	}
	if p.Latitude == nil || p.Longitude == nil {
		return false
	}
	rec.SetPosition(*p.Latitude, *p.Longitude)
	return true
}

// applyCourse takes radians.
func applyCourse(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	rad, ok := decodeNumber(raw)
	if !ok {
		return false
	}
	rec.CogDeg = units.NormalizeDeg(units.Deg(rad))
	return true
}

// applySpeed takes m/s.
func applySpeed(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	mps, ok := decodeNumber(raw)
	if !ok {
		return false
	}
	rec.SogKn = units.ConvertSpeed(mps, units.KN)
	return true
}

func applyName(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	s, ok := decodeString(raw)
	if !ok {
		return false
	}
	rec.Name = s
	return true
}

// parseMMSI accepts a JSON string of digits or a JSON number.
func parseMMSI(raw json.RawMessage) (uint32, bool) {
	if s, ok := decodeString(raw); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(n), true
	}
	f, ok := decodeNumber(raw)
	if !ok || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint32(f), true
}

func applyMMSI(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	n, ok := parseMMSI(raw)
	if !ok {
		return false
	}
	rec.MMSI = n
	return true
}

type rootObject struct {
	Name *string         `json:"name"`
	MMSI json.RawMessage `json:"mmsi"`
}

// applyRoot handles the empty path, where Signal K sends vessel-level
// identity as one object.
func applyRoot(rec *tracks.KinematicRecord, raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var obj rootObject
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Name == nil {
		return false
	}
	rec.Name = *obj.Name
	if n, ok := parseMMSI(obj.MMSI); ok {
		rec.MMSI = n
	}
	return true
}
