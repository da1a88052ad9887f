package conflict

import (
	"testing"

	"codetwin/internal/metadata"

	"github.com/stretchr/testify/assert"
)

func base() metadata.Record {
	return metadata.Record{
		ID:           "blk_1",
		Version:      2,
		X:            10,
		Y:            20,
		Tags:         []string{"a"},
		Translations: map[string]string{"en": "add"},
		AI:           &metadata.AINote{Description: "text note", Hints: []string{"h1"}},
		Extras:       map[string]any{"color": "red", "size": "s"},
	}
}

func TestResolve_StructuralPrefersTextDespiteNewerVisual(t *testing.T) {
	text := base()
	visual := base()
	visual.Version = 9
	visual.Translations = map[string]string{"en": "plus", "fr": "ajouter"}
	visual.X = 99
	visual.Tags = []string{"b"}

	merged, c := Resolve(text, visual)
	assert.Equal(t, Conflict{ID: "blk_1", Type: Structural, Resolution: PreferText}, c)
	assert.Equal(t, text.Translations, merged.Translations)
	assert.Equal(t, 10.0, merged.X)
	assert.Equal(t, []string{"a"}, merged.Tags)
	assert.Equal(t, 9, merged.Version)

	for _, mutate := range []func(*metadata.Record){
		func(r *metadata.Record) { r.Extends = "other" },
		func(r *metadata.Record) { r.Origin = "elsewhere.go" },
	} {
		v := base()
		mutate(&v)
		_, c := Resolve(text, v)
		assert.Equal(t, Structural, c.Type)
		assert.Equal(t, PreferText, c.Resolution)
	}
}

func TestResolve_MovementPrefersVisual(t *testing.T) {
	text := base()
	visual := base()
	visual.X, visual.Y = 1, 2
	visual.Version = 1

	merged, c := Resolve(text, visual)
	assert.Equal(t, Conflict{ID: "blk_1", Type: Movement, Resolution: PreferVisual}, c)
	assert.Equal(t, 1.0, merged.X)
	assert.Equal(t, 2.0, merged.Y)
	assert.Equal(t, 2, merged.Version)
}

func TestResolve_MovementWithAuxMerges(t *testing.T) {
	text := base()
	visual := base()
	visual.Y = 0
	visual.Tags = []string{"b", "a"}

	merged, c := Resolve(text, visual)
	assert.Equal(t, Movement, c.Type)
	assert.Equal(t, Merge, c.Resolution)
	assert.Equal(t, 0.0, merged.Y)
	assert.Equal(t, []string{"a", "b"}, merged.Tags)
}

func TestResolve_MetaCommentMerges(t *testing.T) {
	text := base()
	visual := base()
	visual.Tags = []string{"c"}
	visual.Links = []string{"blk_2"}
	visual.Tests = []string{"TestAdd"}
	visual.AI = &metadata.AINote{Description: "visual note", Hints: []string{"h2", "h1"}}
	visual.Extras = map[string]any{"color": "blue", "pinned": true}

	merged, c := Resolve(text, visual)
	assert.Equal(t, Conflict{ID: "blk_1", Type: MetaComment, Resolution: Merge}, c)
	assert.Equal(t, []string{"a", "c"}, merged.Tags)
	assert.Equal(t, []string{"blk_2"}, merged.Links)
	assert.Equal(t, []string{"TestAdd"}, merged.Tests)
	assert.Equal(t, "visual note", merged.AI.Description)
	assert.Equal(t, []string{"h1", "h2"}, merged.AI.Hints)
	assert.Equal(t, map[string]any{"color": "blue", "size": "s", "pinned": true}, merged.Extras)

	// Text-side inputs are untouched.
	assert.Equal(t, "text note", text.AI.Description)
	assert.Equal(t, "red", text.Extras["color"])
}

func TestResolve_EmptyVisualDescriptionKeepsText(t *testing.T) {
	text := base()
	visual := base()
	visual.AI = &metadata.AINote{Hints: []string{"h3"}}

	merged, c := Resolve(text, visual)
	assert.Equal(t, MetaComment, c.Type)
	assert.Equal(t, "text note", merged.AI.Description)
	assert.Equal(t, []string{"h1", "h3"}, merged.AI.Hints)
}

func TestDiverges(t *testing.T) {
	a := base()
	b := base()
	assert.False(t, Diverges(a, b))

	b.Version = 7
	assert.False(t, Diverges(a, b), "version alone is not a divergence")

	b.Tags = []string{"a", "a"}
	assert.False(t, Diverges(a, b), "sets compare by membership")

	b.Tags = nil
	assert.True(t, Diverges(a, b))

	c := base()
	c.Extras = nil
	d := base()
	d.Extras = map[string]any{}
	c.AI, d.AI = nil, nil
	assert.True(t, Diverges(base(), c))
	c.Extras = map[string]any{}
	assert.False(t, Diverges(c, d))
}
