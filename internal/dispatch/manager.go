// Package dispatch runs a sync engine on a single background worker and
// batches the edit events sent to it.
//
// The worker:
// 1. Opens a debounce window on the first message after an idle period
// 2. Collects every message that arrives before the window closes
// 3. Applies the batch in arrival order and reports it
// 4. Drains queued work and exits on Shutdown
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"codetwin/internal/pipeline"

	"github.com/google/uuid"
)

// ErrClosed is returned for commands sent after Shutdown.
var ErrClosed = errors.New("dispatch: manager closed")

// Applier applies one message. *pipeline.Engine satisfies it.
type Applier interface {
	Apply(ctx context.Context, msg pipeline.Message) (*pipeline.Result, error)
}

// Config holds configuration for the manager.
type Config struct {
	// Debounce is how long the worker waits after the first message of a
	// batch before applying it.
	Debounce time.Duration

	// QueueCapacity bounds the command channel. Senders block when it is full.
	QueueCapacity int

	// OnBatch is called on the worker goroutine after every applied batch.
	OnBatch func(BatchReport)

	// After creates the debounce timer. Defaults to time.After.
	After func(time.Duration) <-chan time.Time

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:      50 * time.Millisecond,
		QueueCapacity: 256,
	}
}

// BatchReport describes one applied batch.
type BatchReport struct {
	ID       string
	Size     int
	Result   *pipeline.Result // result of the last successful message
	Errors   []error
	Started  time.Time
	Duration time.Duration
}

// Stats counts the manager's work since it was created.
type Stats struct {
	Batches   int
	Messages  int
	Failed    int
	Discarded int
}

type commandKind int

const (
	cmdApply commandKind = iota
	cmdPause
	cmdResume
	cmdShutdown
)

type command struct {
	kind commandKind
	msg  pipeline.Message
}

// Manager owns an Applier and feeds it batches from a bounded queue.
type Manager struct {
	ctx     context.Context
	applier Applier
	config  *Config
	logger  *slog.Logger

	cmds chan command
	done chan struct{}

	sendMu   sync.RWMutex
	closed   bool
	shutdown sync.Once

	mu     sync.Mutex
	latest *BatchReport
	stats  Stats
}

// New starts a manager. ctx is passed to every Apply call on the applier;
// the worker itself only stops on Shutdown.
func New(ctx context.Context, applier Applier, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		ctx:     ctx,
		applier: applier,
		config:  &cfg,
		logger:  logger,
		cmds:    make(chan command, cfg.QueueCapacity),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Apply queues a message. It blocks while the queue is full.
func (m *Manager) Apply(ctx context.Context, msg pipeline.Message) error {
	return m.send(ctx, command{kind: cmdApply, msg: msg})
}

// Pause discards the batch being collected. Messages applied while paused
// are kept and form the next batch after Resume.
func (m *Manager) Pause() error {
	return m.send(context.Background(), command{kind: cmdPause})
}

// Resume ends a pause.
func (m *Manager) Resume() error {
	return m.send(context.Background(), command{kind: cmdResume})
}

// Shutdown applies all queued work, stops the worker and waits for it.
// Calling it more than once is safe.
func (m *Manager) Shutdown() {
	m.shutdown.Do(func() {
		m.sendMu.Lock()
		m.closed = true
		m.sendMu.Unlock()
		m.cmds <- command{kind: cmdShutdown}
	})
	<-m.done
}

// Done is closed once the worker has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Latest returns the most recent batch report, or nil.
func (m *Manager) Latest() *BatchReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil
	}
	r := *m.latest
	return &r
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) send(ctx context.Context, cmd command) error {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.cmds <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is the state owned by the run goroutine.
type worker struct {
	m        *Manager
	batch    []pipeline.Message
	retained []pipeline.Message
	window   <-chan time.Time
	paused   bool
}

func (m *Manager) run() {
	defer close(m.done)
	w := &worker{m: m}

	for {
		select {
		case cmd := <-m.cmds:
			if w.handle(cmd) {
				return
			}

		case <-w.window:
			// Take everything that was already queued when the window closed.
			for drained := false; !drained; {
				select {
				case cmd := <-m.cmds:
					if w.handle(cmd) {
						return
					}
				default:
					drained = true
				}
			}
			w.window = nil
			if !w.paused && len(w.batch) > 0 {
				batch := w.batch
				w.batch = nil
				m.applyBatch(batch)
			}
		}
	}
}

// handle processes one command and reports whether the worker must exit.
func (w *worker) handle(cmd command) bool {
	m := w.m
	switch cmd.kind {
	case cmdApply:
		if w.paused {
			w.retained = append(w.retained, cmd.msg)
			return false
		}
		w.batch = append(w.batch, cmd.msg)
		if w.window == nil {
			w.window = m.config.After(m.config.Debounce)
		}

	case cmdPause:
		if w.paused {
			return false
		}
		w.paused = true
		if n := len(w.batch); n > 0 {
			m.mu.Lock()
			m.stats.Discarded += n
			m.mu.Unlock()
			m.logger.Info("dispatch.batch.discarded", "size", n)
		}
		w.batch = nil
		w.window = nil

	case cmdResume:
		if !w.paused {
			return false
		}
		w.paused = false
		if len(w.retained) > 0 {
			w.batch = w.retained
			w.retained = nil
			w.window = m.config.After(m.config.Debounce)
		}

	case cmdShutdown:
		pending := append(w.batch, w.retained...)
		for drained := false; !drained; {
			select {
			case late := <-m.cmds:
				if late.kind == cmdApply {
					pending = append(pending, late.msg)
				}
			default:
				drained = true
			}
		}
		if len(pending) > 0 {
			m.applyBatch(pending)
		}
		m.logger.Debug("dispatch.worker.stopped")
		return true
	}
	return false
}

func (m *Manager) applyBatch(msgs []pipeline.Message) {
	report := BatchReport{
		ID:      uuid.NewString(),
		Size:    len(msgs),
		Started: time.Now(),
	}
	for _, msg := range msgs {
		res, err := m.applier.Apply(m.ctx, msg)
		if err != nil {
			report.Errors = append(report.Errors, err)
			m.logger.Warn("dispatch.apply.failed", "batch", report.ID, "error", err)
			continue
		}
		report.Result = res
	}
	report.Duration = time.Since(report.Started)

	m.mu.Lock()
	m.stats.Batches++
	m.stats.Messages += len(msgs)
	m.stats.Failed += len(report.Errors)
	m.latest = &report
	m.mu.Unlock()

	m.logger.Debug("dispatch.batch.applied",
		"batch", report.ID,
		"size", report.Size,
		"errors", len(report.Errors),
		"duration", report.Duration,
	)
	if m.config.OnBatch != nil {
		m.config.OnBatch(report)
	}
}
