package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"codetwin/internal/graph"
	"codetwin/internal/metadata"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/xxh3"
)

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var _ Store = (*SQLiteStore)(nil)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}
	// SQLite has a single writer; concurrent batches queue on one connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			lang TEXT,
			code TEXT,
			content_hash TEXT,
			saved_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			path TEXT,
			id TEXT,
			seq INTEGER,
			x REAL,
			y REAL,
			payload JSON,
			PRIMARY KEY (path, id)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			path TEXT,
			from_id TEXT,
			to_id TEXT,
			kind TEXT,
			PRIMARY KEY (path, from_id, to_id, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			path TEXT,
			size INTEGER,
			errors INTEGER,
			started_at TEXT,
			duration_ns INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(to_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- SnapshotStore Implementation ---

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) (bool, error) {
	if snap == nil || snap.Path == "" {
		return false, fmt.Errorf("snapshot path is required")
	}
	hash := snap.Hash
	if hash == 0 {
		hash = xxh3.HashString(snap.Code)
	}
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var stored string
	err = tx.QueryRowContext(ctx, "SELECT content_hash FROM documents WHERE path = ?", snap.Path).Scan(&stored)
	switch {
	case err == nil && stored == formatHash(hash):
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to read document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (path, lang, code, content_hash, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			lang=excluded.lang,
			code=excluded.code,
			content_hash=excluded.content_hash,
			saved_at=excluded.saved_at
	`, snap.Path, snap.Lang, snap.Code, formatHash(hash), savedAt.UTC().Format(timeLayout)); err != nil {
		return false, fmt.Errorf("failed to save document: %w", err)
	}

	// Replace records and edges wholesale so removed ones do not linger.
	for _, q := range []string{"DELETE FROM records WHERE path = ?", "DELETE FROM edges WHERE path = ?"} {
		if _, err := tx.ExecContext(ctx, q, snap.Path); err != nil {
			return false, err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (path, id, seq, x, y, payload) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, id) DO NOTHING
	`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for i, r := range snap.Records {
		payload, err := json.Marshal(r)
		if err != nil {
			return false, fmt.Errorf("failed to encode record %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, snap.Path, r.ID, i, r.X, r.Y, payload); err != nil {
			return false, err
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (path, from_id, to_id, kind) VALUES (?, ?, ?, ?)
		ON CONFLICT(path, from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return false, err
	}
	defer edgeStmt.Close()

	for _, edge := range graph.Build(snap.Records).Edges {
		if _, err := edgeStmt.ExecContext(ctx, snap.Path, edge.From, edge.To, string(edge.Kind)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, path string) (*Snapshot, error) {
	snap := &Snapshot{Path: path}
	var hash, savedAt string
	row := s.db.QueryRowContext(ctx, "SELECT lang, code, content_hash, saved_at FROM documents WHERE path = ?", path)
	if err := row.Scan(&snap.Lang, &snap.Code, &hash, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	var err error
	if snap.Hash, err = parseHash(hash); err != nil {
		return nil, err
	}
	if snap.SavedAt, err = time.Parse(timeLayout, savedAt); err != nil {
		return nil, fmt.Errorf("failed to parse saved_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM records WHERE path = ? ORDER BY seq", path)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var r metadata.Record
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		snap.Records = append(snap.Records, r)
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.path, d.lang, d.content_hash, d.saved_at,
			(SELECT COUNT(*) FROM records r WHERE r.path = d.path)
		FROM documents d ORDER BY d.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var hash, savedAt string
		if err := rows.Scan(&d.Path, &d.Lang, &hash, &savedAt, &d.Records); err != nil {
			return nil, err
		}
		if d.Hash, err = parseHash(hash); err != nil {
			return nil, err
		}
		d.SavedAt, _ = time.Parse(timeLayout, savedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) FindReferrers(ctx context.Context, id string) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, from_id, kind FROM edges WHERE to_id = ? ORDER BY path, from_id, kind", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.Path, &r.From, &r.Kind); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM documents WHERE path = ?",
		"DELETE FROM records WHERE path = ?",
		"DELETE FROM edges WHERE path = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, path); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- BatchLog Implementation ---

func (s *SQLiteStore) RecordBatch(ctx context.Context, b BatchEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, path, size, errors, started_at, duration_ns) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, b.ID, b.Path, b.Size, b.Errors, b.Started.UTC().Format(timeLayout), int64(b.Duration))
	return err
}

func (s *SQLiteStore) RecentBatches(ctx context.Context, limit int) ([]BatchEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, size, errors, started_at, duration_ns FROM batches
		ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BatchEntry
	for rows.Next() {
		var b BatchEntry
		var started string
		var duration int64
		if err := rows.Scan(&b.ID, &b.Path, &b.Size, &b.Errors, &started, &duration); err != nil {
			return nil, err
		}
		b.Started, _ = time.Parse(timeLayout, started)
		b.Duration = time.Duration(duration)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Hashes are stored as hex text; SQLite integers are signed.
func formatHash(h uint64) string {
	return strconv.FormatUint(h, 16)
}

func parseHash(s string) (uint64, error) {
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid content hash %q: %w", s, err)
	}
	return h, nil
}
