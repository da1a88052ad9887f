// Package watch turns file system events on source files into text-change
// messages.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codetwin/internal/extractor"
	"codetwin/internal/pipeline"

	"github.com/fsnotify/fsnotify"
)

// EventOp is what happened to a watched file.
type EventOp string

const (
	OpCreate EventOp = "create"
	OpModify EventOp = "modify"
	// OpDelete covers renames too; the new name arrives as its own create.
	OpDelete EventOp = "delete"
)

// FileEvent is a change to a source file in a supported language.
type FileEvent struct {
	Path string
	Lang extractor.Language
	Op   EventOp
}

// FileWatcher reports changes to source files. It subscribes to the parent
// directories, so editors that save by replacing the file are still seen.
type FileWatcher struct {
	fs     *fsnotify.Watcher
	events chan FileEvent
	errs   chan error
	stop   chan struct{}
	loop   sync.WaitGroup

	mu      sync.Mutex
	running bool

	// only restricts events to these absolute paths when non-empty.
	only map[string]bool
}

// NewFileWatcher returns an idle watcher; call Start to receive events.
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		fs:     w,
		events: make(chan FileEvent, 100),
		errs:   make(chan error, 10),
		stop:   make(chan struct{}),
		only:   make(map[string]bool),
	}, nil
}

// Start watches paths. A file restricts events to the files named; a
// directory admits every supported file directly inside it.
func (fw *FileWatcher) Start(paths ...string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return errors.New("watcher already running")
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			dirs[abs] = true
			continue
		}
		if _, err := extractor.LanguageForPath(abs); err != nil {
			return err
		}
		fw.only[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	fw.running = true
	fw.loop.Add(1)
	go fw.run()
	return nil
}

// Stop closes the watcher and waits for its goroutine. Events and Errors
// are closed afterwards. Stopping twice is a no-op.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()
	if !wasRunning {
		return nil
	}

	close(fw.stop)
	err := fw.fs.Close()
	fw.loop.Wait()
	close(fw.events)
	close(fw.errs)
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (fw *FileWatcher) Events() <-chan FileEvent { return fw.events }

func (fw *FileWatcher) Errors() <-chan error { return fw.errs }

func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) run() {
	defer fw.loop.Done()
	for {
		select {
		case <-fw.stop:
			return
		case ev, ok := <-fw.fs.Events:
			if !ok {
				return
			}
			fe, keep := fw.convertEvent(ev)
			if keep && !emit(fw.events, fe, fw.stop) {
				return
			}
		case err, ok := <-fw.fs.Errors:
			if !ok || !emit(fw.errs, err, fw.stop) {
				return
			}
		}
	}
}

// emit sends v on ch unless stop closes first.
func emit[T any](ch chan<- T, v T, stop <-chan struct{}) bool {
	select {
	case ch <- v:
		return true
	case <-stop:
		return false
	}
}

// convertEvent maps ev to a FileEvent, or reports false for events on
// unwatched or unsupported files and for chmod-only changes.
func (fw *FileWatcher) convertEvent(ev fsnotify.Event) (FileEvent, bool) {
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return FileEvent{}, false
	}
	if len(fw.only) > 0 && !fw.only[abs] {
		return FileEvent{}, false
	}
	lang, err := extractor.LanguageForPath(abs)
	if err != nil {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return FileEvent{}, false
	}
	return FileEvent{Path: abs, Lang: lang, Op: op}, true
}

// Submitter accepts messages for asynchronous application.
// *dispatch.Manager satisfies it.
type Submitter interface {
	Apply(ctx context.Context, msg pipeline.Message) error
}

// Forward reads every created or modified file and submits its content as a
// TextChanged message to the submitter route returns for that path, until
// ctx is done or the watcher stops. Errors are passed to onError and do not
// stop forwarding.
func Forward(ctx context.Context, fw *FileWatcher, route func(path string) (Submitter, error), onError func(error)) {
	if onError == nil {
		onError = func(error) {}
	}
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fw.Events():
			if !ok {
				return
			}
			if ev.Op == OpDelete {
				continue
			}
			to, err := route(ev.Path)
			if err != nil {
				onError(fmt.Errorf("failed to route %s: %w", ev.Path, err))
				continue
			}
			code, err := os.ReadFile(ev.Path)
			if err != nil {
				onError(fmt.Errorf("failed to read %s: %w", ev.Path, err))
				continue
			}
			msg := pipeline.TextChanged{Code: string(code), Lang: string(ev.Lang)}
			if err := to.Apply(ctx, msg); err != nil {
				onError(fmt.Errorf("failed to submit %s: %w", ev.Path, err))
			}

		case err, ok := <-fw.Errors():
			if !ok {
				return
			}
			onError(err)
		}
	}
}
