// Package conflict decides how two diverging versions of the same metadata
// record are reconciled: code wins on meaning, the canvas wins on position.
package conflict

import (
	"maps"
	"reflect"
	"slices"

	"codetwin/internal/metadata"
)

// Type classifies a divergence.
type Type string

const (
	Structural  Type = "structural"
	Movement    Type = "movement"
	MetaComment Type = "meta_comment"
)

// Resolution names the side a merged record was taken from.
type Resolution string

const (
	PreferText   Resolution = "text"
	PreferVisual Resolution = "visual"
	Merge        Resolution = "merge"
)

// Conflict describes one resolved divergence. It is reported to the UI and
// never persisted.
type Conflict struct {
	ID         string     `json:"id"`
	Type       Type       `json:"conflict_type"`
	Resolution Resolution `json:"resolution"`
}

// Resolve reconciles the text-derived and visual-derived versions of one
// record. Decision order, first match wins:
//  1. structural fields differ: keep the text side;
//  2. position differs: take the visual position, merging auxiliary fields
//     when they differ too;
//  3. only auxiliary fields differ: merge them.
//
// The merged version is the maximum of both inputs.
func Resolve(text, visual metadata.Record) (metadata.Record, Conflict) {
	c := Conflict{ID: text.ID}
	version := max(text.Version, visual.Version)

	if structuralDiffers(text, visual) {
		merged := text.Clone()
		merged.Version = version
		c.Type, c.Resolution = Structural, PreferText
		return merged, c
	}

	if movementDiffers(text, visual) {
		var merged metadata.Record
		if auxDiffers(text, visual) {
			merged = mergeAux(text, visual)
			c.Resolution = Merge
		} else {
			merged = text.Clone()
			c.Resolution = PreferVisual
		}
		merged.X, merged.Y = visual.X, visual.Y
		merged.Version = version
		c.Type = Movement
		return merged, c
	}

	merged := mergeAux(text, visual)
	merged.Version = version
	c.Type, c.Resolution = MetaComment, Merge
	return merged, c
}

// Diverges reports whether any compared field differs. UpdatedAt and
// Version are not compared.
func Diverges(a, b metadata.Record) bool {
	return structuralDiffers(a, b) || movementDiffers(a, b) || auxDiffers(a, b)
}

func structuralDiffers(a, b metadata.Record) bool {
	return !maps.Equal(a.Translations, b.Translations) ||
		a.Extends != b.Extends ||
		a.Origin != b.Origin
}

func movementDiffers(a, b metadata.Record) bool {
	return a.X != b.X || a.Y != b.Y
}

func auxDiffers(a, b metadata.Record) bool {
	return !sameSet(a.Tags, b.Tags) ||
		!sameSet(a.Links, b.Links) ||
		!sameSet(a.Anchors, b.Anchors) ||
		!sameSet(a.Tests, b.Tests) ||
		!sameAI(a.AI, b.AI) ||
		!sameExtras(a.Extras, b.Extras)
}

// mergeAux starts from text and folds in the visual side's auxiliary data.
func mergeAux(text, visual metadata.Record) metadata.Record {
	out := text.Clone()
	out.Tags = union(text.Tags, visual.Tags)
	out.Links = union(text.Links, visual.Links)
	out.Anchors = union(text.Anchors, visual.Anchors)
	out.Tests = union(text.Tests, visual.Tests)
	out.AI = mergeAI(text.AI, visual.AI)
	if len(text.Extras) > 0 || len(visual.Extras) > 0 {
		extras := make(map[string]any, len(text.Extras)+len(visual.Extras))
		maps.Copy(extras, text.Extras)
		maps.Copy(extras, visual.Extras)
		out.Extras = extras
	}
	return out
}

func mergeAI(text, visual *metadata.AINote) *metadata.AINote {
	if text == nil && visual == nil {
		return nil
	}
	var out metadata.AINote
	if text != nil {
		out.Description = text.Description
		out.Hints = slices.Clone(text.Hints)
	}
	if visual != nil {
		if visual.Description != "" {
			out.Description = visual.Description
		}
		out.Hints = union(out.Hints, visual.Hints)
	}
	return &out
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, v := range a {
		as[v] = true
	}
	bs := make(map[string]bool, len(b))
	for _, v := range b {
		bs[v] = true
	}
	return maps.Equal(as, bs)
}

func sameAI(a, b *metadata.AINote) bool {
	var ad, bd string
	var ah, bh []string
	if a != nil {
		ad, ah = a.Description, a.Hints
	}
	if b != nil {
		bd, bh = b.Description, b.Hints
	}
	return ad == bd && slices.Equal(ah, bh)
}

func sameExtras(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
