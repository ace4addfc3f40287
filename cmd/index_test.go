package cmd

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/clarionscope/internal/index"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/testutil"
	"github.com/zjrosen/clarionscope/internal/tracing"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

func TestIndexBuildAndSearch(t *testing.T) {
	b := testutil.NewBuilder(t).WithPresets()
	root := b.Build()

	out, _, err := executeCommand(t, "index", "build", root)
	require.NoError(t, err)
	assert.Equal(t, "indexed 3 files (3 analysed, 0 unchanged, 0 removed), 2 diagnostics\n", out)
	assert.FileExists(t, filepath.Join(root, ".clarionscope", "index.db"))

	out, _, err = executeCommand(t, "index", "build", root)
	require.NoError(t, err)
	assert.Equal(t, "indexed 3 files (0 analysed, 3 unchanged, 0 removed), 2 diagnostics\n", out)

	out, _, err = executeCommand(t, "index", "search", "bump", "--root", root)
	require.NoError(t, err)
	assert.Equal(t, b.Path("src/counter.clw")+":7: method Counter.Bump\n", out)

	out, _, err = executeCommand(t, "index", "search", "*", "--root", root, "--category", "routine", "-f", "json")
	require.NoError(t, err)
	var hits []presentation.SymbolHitDTO
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "Report", hits[0].Name)
	assert.Equal(t, 16, hits[0].Line)
	assert.Equal(t, 18, hits[0].EndLine)

	require.NoError(t, os.Remove(b.Path("src/broken.clw")))
	require.NoError(t, os.WriteFile(b.Path("src/program.clw"), []byte(testutil.ProgramSource+"\nExtra PROCEDURE\n  CODE\n"), 0o600))

	out, _, err = executeCommand(t, "index", "build", root, "--format", "json")
	require.NoError(t, err)
	var summary indexSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 2, summary.Files)
	assert.Equal(t, 1, summary.Analysed)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Removed)
	assert.Equal(t, 0, summary.Diagnostics)

	out, _, err = executeCommand(t, "index", "search", "extra", "--root", root)
	require.NoError(t, err)
	assert.Contains(t, out, "procedure Extra")
}

func TestIndexSearch_NoIndex(t *testing.T) {
	_, _, err := executeCommand(t, "index", "search", "Main", "--root", t.TempDir())
	require.ErrorContains(t, err, "index build")
}

func TestBuildIndex_Span(t *testing.T) {
	ctx := context.Background()
	root := testutil.NewBuilder(t).WithPresets().Build()

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.NewProvider(tracing.Config{Enabled: true, SampleRate: 1.0, SpanExporter: exporter})
	require.NoError(t, err)

	svc := workspace.New(workspace.Options{
		Filter:  workspace.Filter{Extensions: []string{".clw"}},
		Workers: 2,
		Tracer:  tracer,
	})
	defer svc.Close()

	store := index.NewStore(testutil.NewTestDB(t))
	summary, err := buildIndex(ctx, tracer, svc, store, root)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Files)

	run, err := store.Run(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Files)
	assert.Equal(t, 2, run.Diagnostics)
	require.NotNil(t, run.FinishedAt)

	require.NoError(t, tracer.ForceFlush(ctx))
	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, tracing.SpanIndex)
	assert.Contains(t, names, tracing.SpanScan)
}
