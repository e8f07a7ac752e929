// Package ingest decodes Signal K delta messages and merges their values into
// the track store.
package ingest

import (
	"encoding/json"
	"strings"
)

// SelfID is the vessel id Signal K uses for own-ship.
const SelfID = "self"

// ManualOwnshipLabel marks an update whose values belong to own-ship no
// matter which context it arrived on.
const ManualOwnshipLabel = "manual-ownship"

// Delta is one Signal K delta message. Values stay raw until a matcher
// decides which type it expects.
type Delta struct {
	Context string   `json:"context"`
	Updates []Update `json:"updates"`
}

// Update is a batch of values from one source.
//
// Decoding never fails on a single update: an entry that is not an object,
// or whose values are not an array, is kept as a malformed placeholder so
// the rest of the delta still applies.
type Update struct {
	Source *Source `json:"source,omitempty"`
	Values []Value `json:"values"`

	malformed bool
}

func (u *Update) UnmarshalJSON(b []byte) error {
	var raw struct {
		Source *Source `json:"source"`
		Values []Value `json:"values"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		*u = Update{malformed: true}
		return nil
	}
	*u = Update{Source: raw.Source, Values: raw.Values}
	return nil
}

// Source identifies where an update came from. A source of the wrong shape
// decodes as an empty Source.
type Source struct {
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
}

func (s *Source) UnmarshalJSON(b []byte) error {
	type plain Source
	var raw plain
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = Source{}
		return nil
	}
	*s = Source(raw)
	return nil
}

// Value is one path/value pair. Entries with a non-string path, or that are
// not objects at all, decode as malformed and are skipped on apply.
type Value struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`

	malformed bool
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw struct {
		Path  string          `json:"path"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		*v = Value{malformed: true}
		return nil
	}
	*v = Value{Path: raw.Path, Value: raw.Value}
	return nil
}

// vesselID splits a context into its vessel id. It reports false for
// contexts outside the vessels tree.
func vesselID(context string) (string, bool) {
	root, id, _ := strings.Cut(context, ".")
	if root != "vessels" {
		return "", false
	}
	return id, true
}

// manualOwnship reports whether any update in d carries the manual own-ship
// source label.
func (d Delta) manualOwnship() bool {
	for _, u := range d.Updates {
		if u.Source != nil && u.Source.Label == ManualOwnshipLabel {
			return true
		}
	}
	return false
}
