package main

import (
	"context"
	"path/filepath"
	"testing"

	"codetwin/internal/dispatch"
	"codetwin/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SeedAndShutdownPersistBatch(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "watch.db"))
	require.NoError(t, err)
	defer store.Close()

	ids := functionIDs(t, rustSource)
	path := writeFile(t, dir, "main.rs", "// @codetwin {\"id\":\""+ids[0]+"\"}\n"+rustSource)

	ctx := context.Background()
	s := newSession(ctx, newTestApp(), store)
	require.NoError(t, s.seed(ctx, path))
	require.NoError(t, s.seed(ctx, dir), "directories are skipped")

	again, err := s.route(path)
	require.NoError(t, err)
	assert.Len(t, s.managers, 1, "one manager per file")
	assert.Same(t, s.managers[path], again)

	s.shutdown()

	snap, err := store.LoadSnapshot(ctx, path)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.Equal(t, ids[0], snap.Records[0].ID)
	assert.Equal(t, "rust", snap.Lang)

	batches, err := store.RecentBatches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, path, batches[0].Path)
	assert.Equal(t, 1, batches[0].Size)

	_, err = s.route(path)
	assert.ErrorIs(t, err, dispatch.ErrClosed)
}

func TestSession_RouteRejectsUnknownLanguage(t *testing.T) {
	s := newSession(context.Background(), newTestApp(), nil)
	defer s.shutdown()

	_, err := s.route("/tmp/readme.md")
	assert.Error(t, err)
	assert.Empty(t, s.managers)
}
