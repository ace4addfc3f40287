package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/clarionscope/internal/clarion"
	"github.com/zjrosen/clarionscope/internal/outline"
	"github.com/zjrosen/clarionscope/internal/pubsub"
	"github.com/zjrosen/clarionscope/internal/tracing"
)

const mainSource = "Main PROCEDURE\n  CODE\n  IF x\n  END\nInit ROUTINE\n  RETURN"

func newService(t *testing.T) *Service {
	t.Helper()
	s := New(Options{
		Filter:  Filter{Extensions: []string{".clw", ".inc"}, Exclude: []string{"obj", "*.bak"}},
		Workers: 2,
	})
	t.Cleanup(s.Close)
	return s
}

func nextEvent(t *testing.T, ch <-chan pubsub.Event[Event]) pubsub.Event[Event] {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for event")
		return pubsub.Event[Event]{}
	}
}

func TestService_Update(t *testing.T) {
	s := newService(t)

	a, err := s.Update(context.Background(), "main.clw", mainSource)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 6, a.Lines)
	assert.Equal(t, Hash(mainSource), a.Hash)
	assert.Empty(t, a.Result.Diagnostics)
	require.Len(t, a.Symbols, 1)
	assert.Equal(t, "Main", a.Symbols[0].Name)
	require.Len(t, a.Symbols[0].Children, 1)
	assert.Equal(t, outline.CategoryRoutine, a.Symbols[0].Children[0].Category)
	assert.NotEmpty(t, a.Folding)
}

func TestService_CachesIdenticalText(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	first, err := s.Update(ctx, "main.clw", mainSource)
	require.NoError(t, err)
	second, err := s.Update(ctx, "main.clw", mainSource)
	require.NoError(t, err)

	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, first.Version, "cached copy must not be mutated")
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, int64(1), s.CacheStats().Hits)

	_, err = s.Update(ctx, "main.clw", mainSource+"\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.CacheStats().Hits)
}

func TestService_SkipCache(t *testing.T) {
	s := New(Options{SkipCache: true})
	defer s.Close()

	for range 2 {
		_, err := s.Update(context.Background(), "a.clw", mainSource)
		require.NoError(t, err)
	}
	assert.Zero(t, s.CacheStats().Hits)
}

func TestService_SupersededVersionIsSkipped(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "main.clw", "Old PROCEDURE")
	require.NoError(t, err)
	_, err = s.Update(ctx, "main.clw", "New PROCEDURE")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version("main.clw"))

	_, err = s.Analyze(ctx, Document{Path: "main.clw", Version: 1, Text: "Old PROCEDURE"})
	require.ErrorIs(t, err, ErrSuperseded)
}

func TestService_CancelledContext(t *testing.T) {
	s := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Update(ctx, "main.clw", mainSource)
	require.ErrorIs(t, err, context.Canceled)
}

func TestService_Events(t *testing.T) {
	s := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := s.Subscribe(ctx)

	_, err := s.Update(ctx, "main.clw", mainSource)
	require.NoError(t, err)
	e := nextEvent(t, events)
	assert.Equal(t, pubsub.AnalyzedEvent, e.Type)
	assert.Equal(t, "main.clw", e.Payload.Path)
	require.NotNil(t, e.Payload.Analysis)

	s.Remove("main.clw")
	e = nextEvent(t, events)
	assert.Equal(t, pubsub.RemovedEvent, e.Type)
	assert.Zero(t, s.Version("main.clw"))

	missing := filepath.Join(t.TempDir(), "missing.clw")
	_, err = s.AnalyzeFile(ctx, missing)
	require.ErrorIs(t, err, os.ErrNotExist)
	e = nextEvent(t, events)
	assert.Equal(t, pubsub.FailedEvent, e.Type)
	assert.Equal(t, missing, e.Payload.Path)
	require.Error(t, e.Payload.Err)
}

func TestService_Tracing(t *testing.T) {
	rec := tracetest.NewInMemoryExporter()
	tp, err := tracing.NewProvider(tracing.Config{Enabled: true, SpanExporter: rec})
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := New(Options{Tracer: tp})
	defer s.Close()
	_, err = s.Update(context.Background(), "main.clw", mainSource)
	require.NoError(t, err)
	require.NoError(t, tp.ForceFlush(context.Background()))

	var names []string
	for _, span := range rec.GetSpans() {
		names = append(names, span.Name)
	}
	assert.ElementsMatch(t, []string{tracing.SpanClassify, tracing.SpanResolve, tracing.SpanAnalyze}, names)
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestService_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.clw"), mainSource)
	writeFile(t, filepath.Join(root, "src", "queue.INC"), "Q QUEUE\nId LONG\n")
	writeFile(t, filepath.Join(root, "notes.txt"), "IF")
	writeFile(t, filepath.Join(root, "obj", "gen.clw"), "END")
	writeFile(t, filepath.Join(root, "old.clw.bak"), "END")

	s := newService(t)
	report, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Empty(t, report.Failures)

	var paths []string
	for _, a := range report.Analyses {
		paths = append(paths, a.Path)
	}
	assert.Equal(t, []string{filepath.Join(root, "main.clw"), filepath.Join(root, "src", "queue.INC")}, paths)

	// The queue is never terminated.
	assert.Equal(t, 1, report.Diagnostics())
	assert.Equal(t, clarion.UnterminatedScope, report.Analyses[1].Result.Diagnostics[0].Code)
}

func TestService_ScanFilesReportsFailures(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.clw")
	writeFile(t, good, mainSource)
	missing := filepath.Join(root, "missing.clw")

	s := newService(t)
	report, err := s.ScanFiles(context.Background(), root, []string{missing, good})
	require.NoError(t, err)
	require.Len(t, report.Analyses, 1)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, missing, report.Failures[0].Path)
	assert.ErrorIs(t, report.Failures[0], os.ErrNotExist)
}

func TestService_ScanFilesKeepsFilesAfterFailure(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, "a.clw")
	last := filepath.Join(root, "c.clw")
	writeFile(t, first, mainSource)
	writeFile(t, last, mainSource)

	s := New(Options{Workers: 1})
	t.Cleanup(s.Close)
	report, err := s.ScanFiles(context.Background(), root, []string{first, filepath.Join(root, "b.clw"), last})
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	require.Len(t, report.Analyses, 2)
	assert.Equal(t, first, report.Analyses[0].Path)
	assert.Equal(t, last, report.Analyses[1].Path)
}

func TestService_ScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.clw"), mainSource)

	s := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.clw"), "")
	writeFile(t, filepath.Join(root, "a.equ"), "")

	f := Filter{Extensions: []string{".clw", ".EQU"}}
	files, err := Discover(root, f)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.equ"), filepath.Join(root, "b.clw")}, files)

	// A file root is returned whatever its extension.
	single := filepath.Join(root, "x.txt")
	writeFile(t, single, "")
	files, err = Discover(single, f)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = Discover(filepath.Join(root, "nope"), f)
	require.Error(t, err)
}
