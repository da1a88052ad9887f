// Package metadata reads and writes the metadata records embedded as marked
// comments in source text. A record binds a syntax block (by visual id) to
// its canvas position and auxiliary data.
package metadata

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// DefaultVersion is the schema version assumed when a record carries none.
const DefaultVersion = 1

// AINote is a free-text note plus ordered hints attached to a record.
type AINote struct {
	Description string   `json:"description,omitempty"`
	Hints       []string `json:"hints,omitempty"`
}

// Record is the payload of one metadata comment.
type Record struct {
	ID           string            `json:"id"`
	Version      int               `json:"version"`
	X            float64           `json:"x"`
	Y            float64           `json:"y"`
	Tags         []string          `json:"tags,omitempty"`
	Links        []string          `json:"links,omitempty"`
	Anchors      []string          `json:"anchors,omitempty"`
	Tests        []string          `json:"tests,omitempty"`
	Extends      string            `json:"extends,omitempty"`
	Origin       string            `json:"origin,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
	AI           *AINote           `json:"ai,omitempty"`
	Extras       map[string]any    `json:"extras,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// recordJSON is the wire shape; UpdatedAt is optional on the wire.
type recordJSON struct {
	ID           string            `json:"id"`
	Version      int               `json:"version,omitempty"`
	X            float64           `json:"x"`
	Y            float64           `json:"y"`
	Tags         []string          `json:"tags,omitempty"`
	Links        []string          `json:"links,omitempty"`
	Anchors      []string          `json:"anchors,omitempty"`
	Tests        []string          `json:"tests,omitempty"`
	Extends      string            `json:"extends,omitempty"`
	Origin       string            `json:"origin,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
	AI           *AINote           `json:"ai,omitempty"`
	Extras       map[string]any    `json:"extras,omitempty"`
	UpdatedAt    *time.Time        `json:"updated_at,omitempty"`
}

var knownKeys = map[string]bool{
	"id": true, "version": true, "x": true, "y": true,
	"tags": true, "links": true, "anchors": true, "tests": true,
	"extends": true, "origin": true, "translations": true,
	"ai": true, "extras": true, "updated_at": true,
}

// MarshalJSON writes the record in its comment wire shape.
func (r Record) MarshalJSON() ([]byte, error) {
	w := recordJSON{
		ID:           r.ID,
		Version:      r.Version,
		X:            r.X,
		Y:            r.Y,
		Tags:         r.Tags,
		Links:        r.Links,
		Anchors:      r.Anchors,
		Tests:        r.Tests,
		Extends:      r.Extends,
		Origin:       r.Origin,
		Translations: r.Translations,
		AI:           r.AI,
		Extras:       r.Extras,
	}
	if !r.UpdatedAt.IsZero() {
		t := r.UpdatedAt.UTC()
		w.UpdatedAt = &t
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads a record. Keys outside the schema are kept in Extras
// rather than rejected.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*r = Record{
		ID:           w.ID,
		Version:      w.Version,
		X:            w.X,
		Y:            w.Y,
		Tags:         w.Tags,
		Links:        w.Links,
		Anchors:      w.Anchors,
		Tests:        w.Tests,
		Extends:      w.Extends,
		Origin:       w.Origin,
		Translations: w.Translations,
		AI:           w.AI,
		Extras:       w.Extras,
	}
	if w.UpdatedAt != nil {
		r.UpdatedAt = *w.UpdatedAt
	}

	for key, raw := range all {
		if knownKeys[key] {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if r.Extras == nil {
			r.Extras = make(map[string]any)
		}
		if _, taken := r.Extras[key]; !taken {
			r.Extras[key] = v
		}
	}
	return nil
}

// Normalized returns a copy with schema defaults applied.
func (r Record) Normalized() Record {
	out := r.Clone()
	if out.Version <= 0 {
		out.Version = DefaultVersion
	}
	return out
}

// Clone returns a deep copy of the record. Extras values are copied one
// level deep.
func (r Record) Clone() Record {
	out := r
	out.Tags = slices.Clone(r.Tags)
	out.Links = slices.Clone(r.Links)
	out.Anchors = slices.Clone(r.Anchors)
	out.Tests = slices.Clone(r.Tests)
	out.Translations = maps.Clone(r.Translations)
	out.Extras = maps.Clone(r.Extras)
	if r.AI != nil {
		ai := *r.AI
		ai.Hints = slices.Clone(r.AI.Hints)
		out.AI = &ai
	}
	return out
}

// Description returns the AI note description, or "".
func (r Record) Description() string {
	if r.AI == nil {
		return ""
	}
	return r.AI.Description
}
