package storage

import (
	"context"
	"errors"
	"time"

	"codetwin/internal/metadata"
)

// ErrNotFound is returned when no snapshot exists for a document.
var ErrNotFound = errors.New("storage: not found")

// Store combines snapshot and batch log storage capabilities.
type Store interface {
	SnapshotStore
	BatchLog
	Close() error
}

// SnapshotStore persists the last synchronized state of each document.
type SnapshotStore interface {
	// SaveSnapshot replaces the stored state of snap.Path. It reports false
	// when the stored content hash already matches and nothing was written.
	SaveSnapshot(ctx context.Context, snap *Snapshot) (bool, error)

	// LoadSnapshot returns the stored state of a document.
	LoadSnapshot(ctx context.Context, path string) (*Snapshot, error)

	// ListDocuments returns every stored document, ordered by path.
	ListDocuments(ctx context.Context) ([]Document, error)

	// FindReferrers returns the records, in any document, that extend or link
	// to id.
	FindReferrers(ctx context.Context, id string) ([]Reference, error)

	// DeleteSnapshot removes a document and its records.
	DeleteSnapshot(ctx context.Context, path string) error
}

// BatchLog records applied batches.
type BatchLog interface {
	RecordBatch(ctx context.Context, b BatchEntry) error
	RecentBatches(ctx context.Context, limit int) ([]BatchEntry, error)
}

// Snapshot is one document's text and records at a point in time.
type Snapshot struct {
	Path    string
	Lang    string
	Code    string
	Hash    uint64
	Records []metadata.Record
	SavedAt time.Time
}

// Document summarizes a stored snapshot.
type Document struct {
	Path    string
	Lang    string
	Hash    uint64
	Records int
	SavedAt time.Time
}

// Reference is a stored edge pointing at a record.
type Reference struct {
	Path string
	From string
	Kind string
}

// BatchEntry is one row of the batch log.
type BatchEntry struct {
	ID       string
	Path     string
	Size     int
	Errors   int
	Started  time.Time
	Duration time.Duration
}
