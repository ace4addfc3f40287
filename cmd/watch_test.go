package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/clarionscope/internal/config"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/pubsub"
	"github.com/zjrosen/clarionscope/internal/testutil"
	"github.com/zjrosen/clarionscope/internal/tracing"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

func newTestSession(t *testing.T, json bool) (*watchSession, *workspace.Service, *bytes.Buffer) {
	t.Helper()
	svc := workspace.New(workspace.Options{})
	t.Cleanup(svc.Close)
	var out bytes.Buffer
	return newWatchSession(svc, presentation.NewFormatter(&out), &out, json), svc, &out
}

func analyzed(a *workspace.Analysis) pubsub.Event[workspace.Event] {
	return pubsub.Event[workspace.Event]{Type: pubsub.AnalyzedEvent, Payload: workspace.Event{Path: a.Path, Analysis: a}}
}

func TestWatchSession_Render(t *testing.T) {
	ctx := context.Background()
	session, svc, out := newTestSession(t, false)

	a, err := svc.Update(ctx, "main.clw", testutil.ProgramSource)
	require.NoError(t, err)

	t.Run("new file lists every symbol", func(t *testing.T) {
		out.Reset()
		require.NoError(t, session.render(analyzed(a)))
		assert.Equal(t, "main.clw\n+ module MAP\n+ procedure Main\n+   routine Report\n", out.String())
	})

	t.Run("moved code is silent", func(t *testing.T) {
		out.Reset()
		moved, err := svc.Update(ctx, "main.clw", "\n\n"+testutil.ProgramSource)
		require.NoError(t, err)
		require.NoError(t, session.render(analyzed(moved)))
		assert.Empty(t, out.String())
	})

	t.Run("only changes are printed", func(t *testing.T) {
		out.Reset()
		grown, err := svc.Update(ctx, "main.clw", testutil.ProgramSource+"Other PROCEDURE\n  CODE\n")
		require.NoError(t, err)
		require.NoError(t, session.render(analyzed(grown)))
		assert.Equal(t, "main.clw\n+ procedure Other\n", out.String())
	})

	t.Run("diagnostics follow the diff", func(t *testing.T) {
		out.Reset()
		broken, err := svc.Update(ctx, "main.clw", testutil.ProgramSource+"Other PROCEDURE\n  CODE\n  END\n")
		require.NoError(t, err)
		require.NoError(t, session.render(analyzed(broken)))
		assert.Equal(t, "main.clw:20:3: warning: unexpected END: no open structure to close\n", out.String())
	})

	t.Run("removal", func(t *testing.T) {
		out.Reset()
		require.NoError(t, session.render(pubsub.Event[workspace.Event]{Type: pubsub.RemovedEvent, Payload: workspace.Event{Path: "main.clw"}}))
		assert.Equal(t, "main.clw\n- module MAP\n- procedure Main\n-   routine Report\n- procedure Other\n", out.String())
		assert.Empty(t, session.prev)
	})

	t.Run("failure", func(t *testing.T) {
		out.Reset()
		require.NoError(t, session.render(pubsub.Event[workspace.Event]{Type: pubsub.FailedEvent, Payload: workspace.Event{Path: "gone.clw", Err: errors.New("permission denied")}}))
		assert.Equal(t, "gone.clw: permission denied\n", out.String())
	})
}

func TestWatchSession_JSON(t *testing.T) {
	session, svc, out := newTestSession(t, true)
	a, err := svc.Update(context.Background(), "broken.clw", testutil.UnterminatedSource)
	require.NoError(t, err)

	require.NoError(t, session.render(analyzed(a)))
	assert.Contains(t, out.String(), `"type": "analyzed"`)
	assert.Contains(t, out.String(), `"code": "UnterminatedScope"`)
	assert.Contains(t, out.String(), `"op": "+"`)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_ReanalysesChangedFiles(t *testing.T) {
	root := testutil.NewBuilder(t).WithFile("main.clw", testutil.ProgramSource).Build()

	cfg := config.Defaults()
	cfg.Output.Color = false
	cfg.Watch.Debounce = 50 * time.Millisecond
	a := &app{v: viper.New(), cfg: cfg, tracer: tracing.Disabled()}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, out, root) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "watching "+root+" (1 files, 0 diagnostics)")
	}, 5*time.Second, 10*time.Millisecond)

	// The watcher is registered after the banner; give it a moment.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.clw"), []byte("Extra PROCEDURE\n  CODE\n"), 0o600))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "+ procedure Extra")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
