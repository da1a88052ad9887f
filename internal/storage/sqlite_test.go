package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"codetwin/internal/metadata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveSnapshot_ReplacesRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	savedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Initial snapshot: A, B and link A->B
	first := &Snapshot{
		Path: "main.go",
		Lang: "go",
		Code: "v1",
		Records: []metadata.Record{
			{ID: "a", Version: 1, Links: []string{"b"}},
			{ID: "b", Version: 1, X: 4, Y: 2},
		},
		SavedAt: savedAt,
	}
	changed, err := store.SaveSnapshot(ctx, first)
	require.NoError(t, err)
	assert.True(t, changed)

	// New snapshot: remove A, add C extending B.
	second := &Snapshot{
		Path: "main.go",
		Lang: "go",
		Code: "v2",
		Records: []metadata.Record{
			{ID: "c", Version: 2, Extends: "b", Tags: []string{"t"}},
			{ID: "b", Version: 1, X: 4, Y: 2},
		},
		SavedAt: savedAt.Add(time.Minute),
	}
	changed, err = store.SaveSnapshot(ctx, second)
	require.NoError(t, err)
	assert.True(t, changed)

	loaded, err := store.LoadSnapshot(ctx, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Code)
	assert.Equal(t, "go", loaded.Lang)
	assert.NotZero(t, loaded.Hash)
	assert.True(t, second.SavedAt.Equal(loaded.SavedAt))
	require.Len(t, loaded.Records, 2)
	assert.Equal(t, "c", loaded.Records[0].ID)
	assert.Equal(t, []string{"t"}, loaded.Records[0].Tags)
	assert.Equal(t, "b", loaded.Records[1].ID)
	assert.Equal(t, 4.0, loaded.Records[1].X)

	refs, err := store.FindReferrers(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []Reference{{Path: "main.go", From: "c", Kind: "extends"}}, refs)
}

func TestSQLiteStore_SaveSnapshot_SkipsUnchangedHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{Path: "x.py", Lang: "python", Code: "pass\n", Records: []metadata.Record{{ID: "r"}}}
	changed, err := store.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, changed)

	snap.Records = nil
	changed, err = store.SaveSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.False(t, changed)

	loaded, err := store.LoadSnapshot(ctx, "x.py")
	require.NoError(t, err)
	assert.Len(t, loaded.Records, 1, "unchanged content leaves the stored records alone")
}

func TestSQLiteStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"b.rs", "a.js"} {
		_, err := store.SaveSnapshot(ctx, &Snapshot{Path: p, Lang: "x", Code: p, Hash: 1 << 63, Records: []metadata.Record{{ID: p}}})
		require.NoError(t, err)
	}

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a.js", docs[0].Path)
	assert.Equal(t, uint64(1<<63), docs[0].Hash)
	assert.Equal(t, 1, docs[0].Records)

	require.NoError(t, store.DeleteSnapshot(ctx, "a.js"))
	_, err = store.LoadSnapshot(ctx, "a.js")
	assert.True(t, errors.Is(err, ErrNotFound))

	docs, err = store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSQLiteStore_BatchLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, store.RecordBatch(ctx, BatchEntry{
			ID:       id,
			Path:     "main.go",
			Size:     i + 1,
			Started:  base.Add(time.Duration(i) * time.Second),
			Duration: 3 * time.Millisecond,
		}))
	}

	recent, err := store.RecentBatches(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].ID)
	assert.Equal(t, 3, recent[0].Size)
	assert.Equal(t, 3*time.Millisecond, recent[0].Duration)
	assert.Equal(t, "second", recent[1].ID)
}

func TestSQLiteStore_SaveSnapshot_RequiresPath(t *testing.T) {
	store := newTestStore(t)
	_, err := store.SaveSnapshot(context.Background(), &Snapshot{Code: "x"})
	assert.Error(t, err)
}
