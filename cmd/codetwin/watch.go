package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"codetwin/internal/dispatch"
	"codetwin/internal/extractor"
	"codetwin/internal/pipeline"
	"codetwin/internal/storage"
	"codetwin/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var noStorage bool
	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Watch files or directories and keep their sync state current",
		Long: `Every changed source file is fed to its own sync engine. Changes that
arrive within the debounce window are applied as one batch. Unless
--no-storage is set, each batch is recorded and the resulting snapshot is
saved to the storage database.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store *storage.SQLiteStore
			if !noStorage && a.cfg.Storage.Path != "" {
				var err error
				if store, err = a.openStorage(); err != nil {
					return err
				}
				defer store.Close()
			}

			s := newSession(ctx, a, store)
			defer s.shutdown()

			fw, err := watch.NewFileWatcher()
			if err != nil {
				return err
			}
			if err := fw.Start(args...); err != nil {
				return err
			}
			defer fw.Stop()

			// Files named on the command line are loaded right away.
			for _, p := range args {
				if err := s.seed(ctx, p); err != nil {
					a.logger.Warn("watch.seed.failed", "path", p, "error", err)
				}
			}

			go watch.Forward(ctx, fw, s.route, func(err error) {
				a.logger.Warn("watch.error", "error", err)
			})

			for _, p := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", pathStyle.Render(p))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noStorage, "no-storage", false, "Do not record batches or save snapshots")
	return cmd
}

// session owns one dispatch manager per watched file.
type session struct {
	ctx   context.Context
	app   *app
	store storage.Store

	mu       sync.Mutex
	managers map[string]*dispatch.Manager
	closed   bool
}

func newSession(ctx context.Context, a *app, store *storage.SQLiteStore) *session {
	s := &session{
		// Batches still pending at shutdown are applied after ctx is cancelled.
		ctx:      context.WithoutCancel(ctx),
		app:      a,
		managers: make(map[string]*dispatch.Manager),
	}
	if store != nil {
		s.store = store
	}
	return s
}

// route returns the manager for path, starting one on first use.
func (s *session) route(path string) (watch.Submitter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, dispatch.ErrClosed
	}
	if m, ok := s.managers[path]; ok {
		return m, nil
	}

	lang, err := extractor.LanguageForPath(path)
	if err != nil {
		return nil, err
	}
	cfg := s.app.cfg.Sync
	m := dispatch.New(s.ctx, s.app.newEngine(lang), &dispatch.Config{
		Debounce:      cfg.Debounce,
		QueueCapacity: cfg.QueueCapacity,
		Logger:        s.app.logger.With("path", path),
		OnBatch:       func(r dispatch.BatchReport) { s.onBatch(path, r) },
	})
	s.managers[path] = m
	s.app.logger.Debug("watch.document.opened", "path", path, "lang", lang)
	return m, nil
}

func (s *session) seed(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return err
	}
	if path, err = filepath.Abs(path); err != nil {
		return err
	}
	to, err := s.route(path)
	if err != nil {
		return err
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lang, _ := extractor.LanguageForPath(path)
	return to.Apply(ctx, pipeline.TextChanged{Code: string(code), Lang: string(lang)})
}

func (s *session) onBatch(path string, r dispatch.BatchReport) {
	logger := s.app.logger
	logger.Info("watch.batch",
		"path", path,
		"batch", r.ID,
		"size", r.Size,
		"errors", len(r.Errors),
		"duration", r.Duration,
	)
	if res := r.Result; res != nil {
		d := res.Diagnostics
		if len(d.Duplicates)+len(d.Orphaned)+len(d.DanglingLinks) > 0 {
			logger.Warn("watch.diagnostics",
				"path", path,
				"duplicates", d.Duplicates,
				"orphaned", d.Orphaned,
				"dangling", d.DanglingLinks,
			)
		}
	}

	if s.store == nil {
		return
	}
	ctx := s.ctx
	if r.Result != nil {
		if _, err := s.store.SaveSnapshot(ctx, snapshotOf(path, r.Result)); err != nil {
			logger.Error("storage.snapshot.failed", "path", path, "error", err)
		}
	}
	entry := storage.BatchEntry{
		ID:       r.ID,
		Path:     path,
		Size:     r.Size,
		Errors:   len(r.Errors),
		Started:  r.Started,
		Duration: r.Duration,
	}
	if err := s.store.RecordBatch(ctx, entry); err != nil {
		logger.Error("storage.batch.failed", "path", path, "error", err)
	}
}

// shutdown stops every manager, applying their pending batches first.
func (s *session) shutdown() {
	s.mu.Lock()
	s.closed = true
	managers := make([]*dispatch.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	for _, m := range managers {
		m.Shutdown()
	}
}
