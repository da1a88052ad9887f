package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_ResolveMergesParentFirst(t *testing.T) {
	parent := Record{
		ID:           "base",
		Version:      5,
		Tags:         []string{"io", "shared"},
		Links:        []string{"l1"},
		Origin:       "lib/base.go",
		Translations: map[string]string{"fr": "base", "de": "Basis"},
		AI:           &AINote{Description: "from parent"},
	}
	child := Record{
		ID:           "leaf",
		Version:      2,
		Extends:      "base",
		Tags:         []string{"shared", "leaf"},
		Anchors:      []string{"op"},
		Translations: map[string]string{"fr": "feuille"},
	}

	got, ok := NewArena([]Record{child, parent}).Resolve("leaf")
	require.True(t, ok)
	assert.Equal(t, []string{"io", "shared", "leaf"}, got.Tags)
	assert.Equal(t, []string{"l1"}, got.Links)
	assert.Equal(t, []string{"op"}, got.Anchors)
	assert.Equal(t, "lib/base.go", got.Origin)
	assert.Equal(t, "from parent", got.Description())
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, map[string]string{"fr": "feuille", "de": "Basis"}, got.Translations)
	assert.Equal(t, "base", got.Extends)

	assert.Nil(t, child.AI, "resolution never mutates the inputs")
	assert.Equal(t, []string{"shared", "leaf"}, child.Tags)
}

func TestArena_ChildScalarsWin(t *testing.T) {
	parent := Record{ID: "p", Origin: "p.go", AI: &AINote{Description: "parent"}}
	child := Record{ID: "c", Extends: "p", Origin: "c.go", AI: &AINote{Description: "child"}}

	got, ok := NewArena([]Record{parent, child}).Resolve("c")
	require.True(t, ok)
	assert.Equal(t, "c.go", got.Origin)
	assert.Equal(t, "child", got.Description())
}

func TestArena_CyclesAndMissingParents(t *testing.T) {
	a := Record{ID: "a", Extends: "b", Tags: []string{"a"}}
	b := Record{ID: "b", Extends: "a", Tags: []string{"b"}}
	orphan := Record{ID: "o", Extends: "gone", Tags: []string{"o"}}
	arena := NewArena([]Record{a, b, orphan})

	assert.Equal(t, []string{"a", "b"}, arena.Chain("a"))
	got, ok := arena.Resolve("a")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, got.Tags)

	got, ok = arena.Resolve("o")
	require.True(t, ok)
	assert.Equal(t, []string{"o"}, got.Tags)

	_, ok = arena.Resolve("missing")
	assert.False(t, ok)
}

func TestArena_DepthCap(t *testing.T) {
	var records []Record
	for i := 0; i < MaxInheritanceDepth+10; i++ {
		records = append(records, Record{ID: fmt.Sprintf("r%d", i), Extends: fmt.Sprintf("r%d", i+1)})
	}
	arena := NewArena(records)
	chain := arena.Chain("r0")
	require.Len(t, chain, MaxInheritanceDepth+1, "the record plus MaxInheritanceDepth ancestors")
	assert.Equal(t, "r0", chain[0])
	assert.Equal(t, fmt.Sprintf("r%d", MaxInheritanceDepth), chain[len(chain)-1])

	short := arena.Chain(fmt.Sprintf("r%d", MaxInheritanceDepth+5))
	assert.Len(t, short, 5, "chains end at the first missing parent")
}

func TestStore_ReadAllResolvesInheritance(t *testing.T) {
	s := newTestStore()
	text := "# @codetwin {\"id\":\"child\",\"extends\":\"parent\",\"tags\":[\"c\"]}\n" +
		"# @codetwin {\"id\":\"parent\",\"version\":7,\"tags\":[\"p\"],\"origin\":\"x.py\"}\n"

	records, dups := s.ReadAllWithDups(text)
	assert.Empty(t, dups)
	require.Len(t, records, 2)
	assert.Equal(t, "child", records[0].ID)
	assert.Equal(t, []string{"p", "c"}, records[0].Tags)
	assert.Equal(t, 7, records[0].Version)
	assert.Equal(t, "x.py", records[0].Origin)
	assert.Equal(t, "parent", records[1].ID)
}

func TestArena_OwnUndoesResolve(t *testing.T) {
	parent := Record{ID: "p", Version: 5, Origin: "lib.rs", Tags: []string{"base"}, AI: &AINote{Description: "shared"}}
	child := Record{ID: "c", Version: 2, Extends: "p", Tags: []string{"own"}, Translations: map[string]string{"go": "x"}}
	arena := NewArena([]Record{parent, child})

	resolved, ok := arena.Resolve("c")
	require.True(t, ok)
	resolved.X = 9

	own := arena.Own(resolved)
	assert.Equal(t, 9.0, own.X)
	assert.Empty(t, own.Origin)
	assert.Nil(t, own.AI)
	assert.Equal(t, []string{"own"}, own.Tags)
	assert.Equal(t, map[string]string{"go": "x"}, own.Translations)
	assert.Equal(t, 2, own.Version)

	t.Run("Values the child sets itself are kept", func(t *testing.T) {
		same := Record{ID: "s", Extends: "p", Origin: "lib.rs", Tags: []string{"base"}}
		a := NewArena([]Record{parent, same})
		r, _ := a.Resolve("s")
		got := a.Own(r)
		assert.Equal(t, "lib.rs", got.Origin)
		assert.Equal(t, []string{"base"}, got.Tags)
	})

	t.Run("Unknown records pass through", func(t *testing.T) {
		rec := Record{ID: "new", Extends: "p", Origin: "lib.rs"}
		assert.Equal(t, rec, arena.Own(rec))
	})
}
