package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codetwin/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Applier that remembers what it was given.
type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (r *recorder) Apply(_ context.Context, msg pipeline.Message) (*pipeline.Result, error) {
	tc := msg.(pipeline.TextChanged)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, tc.Code)
	if r.fail[tc.Code] {
		return nil, errors.New("boom: " + tc.Code)
	}
	return &pipeline.Result{Code: tc.Code}, nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

// harness wires a manager to a manual debounce timer and a report channel.
type harness struct {
	m       *Manager
	app     *recorder
	tick    chan time.Time
	reports chan BatchReport
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		app:     &recorder{fail: map[string]bool{}},
		tick:    make(chan time.Time),
		reports: make(chan BatchReport, 16),
	}
	h.m = New(context.Background(), h.app, &Config{
		Debounce:      time.Hour,
		QueueCapacity: 16,
		After:         func(time.Duration) <-chan time.Time { return h.tick },
		OnBatch:       func(r BatchReport) { h.reports <- r },
	})
	t.Cleanup(h.m.Shutdown)
	return h
}

func (h *harness) apply(t *testing.T, codes ...string) {
	t.Helper()
	for _, c := range codes {
		require.NoError(t, h.m.Apply(context.Background(), pipeline.TextChanged{Code: c, Lang: "go"}))
	}
}

func (h *harness) report(t *testing.T) BatchReport {
	t.Helper()
	select {
	case r := <-h.reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
		return BatchReport{}
	}
}

func TestManager_MessagesInOneWindowFormOneBatch(t *testing.T) {
	h := newHarness(t)
	h.apply(t, "a", "b", "c")
	h.tick <- time.Now()

	r := h.report(t)
	assert.Equal(t, 3, r.Size)
	assert.NotEmpty(t, r.ID)
	assert.Empty(t, r.Errors)
	require.NotNil(t, r.Result)
	assert.Equal(t, "c", r.Result.Code)
	assert.Equal(t, []string{"a", "b", "c"}, h.app.messages())

	assert.Equal(t, Stats{Batches: 1, Messages: 3}, h.m.Stats())
	latest := h.m.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, r.ID, latest.ID)
}

func TestManager_SpacedMessagesFormSeparateBatches(t *testing.T) {
	h := newHarness(t)

	h.apply(t, "a")
	h.tick <- time.Now()
	first := h.report(t)

	h.apply(t, "b")
	h.tick <- time.Now()
	second := h.report(t)

	assert.Equal(t, 1, first.Size)
	assert.Equal(t, 1, second.Size)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, h.m.Stats().Batches)
}

func TestManager_ErrorsAreReportedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.app.fail["bad"] = true

	h.apply(t, "ok", "bad")
	h.tick <- time.Now()
	r := h.report(t)

	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0].Error(), "boom: bad")
	require.NotNil(t, r.Result)
	assert.Equal(t, "ok", r.Result.Code)
	assert.Equal(t, 1, h.m.Stats().Failed)
}

func TestManager_PauseDiscardsAndRetains(t *testing.T) {
	h := newHarness(t)

	h.apply(t, "dropped-1", "dropped-2")
	require.NoError(t, h.m.Pause())
	h.apply(t, "kept-1", "kept-2")
	require.NoError(t, h.m.Resume())
	h.tick <- time.Now()

	r := h.report(t)
	assert.Equal(t, 2, r.Size)
	assert.Equal(t, []string{"kept-1", "kept-2"}, h.app.messages())
	assert.Equal(t, 2, h.m.Stats().Discarded)
}

func TestManager_ShutdownAppliesPendingWork(t *testing.T) {
	h := newHarness(t)
	h.apply(t, "a", "b")

	h.m.Shutdown()
	r := h.report(t)
	assert.Equal(t, 2, r.Size)
	assert.Equal(t, []string{"a", "b"}, h.app.messages())

	// Idempotent, and closed for new work.
	h.m.Shutdown()
	assert.ErrorIs(t, h.m.Apply(context.Background(), pipeline.TextChanged{Code: "late"}), ErrClosed)
	assert.ErrorIs(t, h.m.Pause(), ErrClosed)
	assert.ErrorIs(t, h.m.Resume(), ErrClosed)

	select {
	case <-h.m.Done():
	default:
		t.Fatal("worker still running after Shutdown")
	}
}

func TestManager_ShutdownWhilePausedAppliesRetained(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.Pause())
	h.apply(t, "x")

	h.m.Shutdown()
	r := h.report(t)
	assert.Equal(t, 1, r.Size)
	assert.Equal(t, []string{"x"}, h.app.messages())
}

func TestManager_ShutdownIdleAppliesNothing(t *testing.T) {
	h := newHarness(t)
	h.m.Shutdown()
	assert.Nil(t, h.m.Latest())
	assert.Equal(t, Stats{}, h.m.Stats())
}

func TestManager_RealTimer(t *testing.T) {
	app := &recorder{}
	reports := make(chan BatchReport, 4)
	m := New(context.Background(), app, &Config{
		Debounce: 20 * time.Millisecond,
		OnBatch:  func(r BatchReport) { reports <- r },
	})
	defer m.Shutdown()

	for _, c := range []string{"1", "2", "3"} {
		require.NoError(t, m.Apply(context.Background(), pipeline.TextChanged{Code: c}))
	}

	select {
	case r := <-reports:
		assert.Equal(t, 3, r.Size)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
}

func TestManager_DrivesEngine(t *testing.T) {
	engine := pipeline.NewEngine(pipeline.Options{})
	reports := make(chan BatchReport, 4)
	m := New(context.Background(), engine, &Config{
		Debounce: time.Millisecond,
		OnBatch:  func(r BatchReport) { reports <- r },
	})

	require.NoError(t, m.Apply(context.Background(), pipeline.TextChanged{Code: "package a\n", Lang: "go"}))
	require.NoError(t, m.Apply(context.Background(), pipeline.TextChanged{Code: "package a\n\nfunc F() {}\n", Lang: "go"}))
	m.Shutdown()

	var total int
	for len(reports) > 0 {
		r := <-reports
		assert.Empty(t, r.Errors)
		total += r.Size
	}
	assert.Equal(t, 2, total)
	require.NotNil(t, engine.State())
	assert.Contains(t, engine.State().Code, "func F()")
}
