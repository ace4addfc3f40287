package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/clarionscope/internal/outline"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/testutil"
)

func TestOutline_Text(t *testing.T) {
	b := testutil.NewBuilder(t).WithFile("program.clw", testutil.ProgramSource)
	b.Build()

	out, _, err := executeCommand(t, "outline", b.Path("program.clw"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, b.Path("program.clw"), lines[0])
	assert.Equal(t, []string{"MAP", "module", "2-4"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"Main", "procedure", "8-18"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"Report", "routine", "16-18"}, strings.Fields(lines[3]))
	assert.True(t, strings.HasPrefix(lines[3], "    Report"), "nested symbols are indented")
}

func TestOutline_JSONDirectory(t *testing.T) {
	root := testutil.NewBuilder(t).WithPresets().
		WithFile("src/notes.txt", "Main PROCEDURE").
		Build()

	out, _, err := executeCommand(t, "outline", "--format", "json", root)
	require.NoError(t, err)

	var dtos []presentation.OutlineDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dtos))
	require.Len(t, dtos, 3, "only Clarion sources are scanned")

	assert.Equal(t, filepath.Join(root, "src", "broken.clw"), dtos[0].Path)
	assert.Equal(t, filepath.Join(root, "src", "counter.clw"), dtos[1].Path)
	assert.Equal(t, filepath.Join(root, "src", "program.clw"), dtos[2].Path)

	var names []string
	outline.Walk(dtos[1].Symbols, func(s outline.Symbol, _ int) {
		names = append(names, s.Name)
	})
	assert.Equal(t, []string{"Counter", "Counter.Bump"}, names)
	assert.Equal(t, outline.CategoryMethod, dtos[1].Symbols[1].Category)
}

func TestFold_JSON(t *testing.T) {
	b := testutil.NewBuilder(t).WithFile("program.clw", testutil.ProgramSource)
	b.Build()

	out, _, err := executeCommand(t, "fold", "-f", "json", b.Path("program.clw"))
	require.NoError(t, err)

	var dtos []presentation.FoldingDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dtos))
	require.Len(t, dtos, 1)
	assert.Equal(t, []outline.FoldingRange{
		{StartLine: 1, EndLine: 3, Kind: outline.FoldRegion},
		{StartLine: 7, EndLine: 17, Kind: outline.FoldRegion},
		{StartLine: 10, EndLine: 12, Kind: outline.FoldRegion},
		{StartLine: 15, EndLine: 17, Kind: outline.FoldRegion},
	}, dtos[0].Ranges)
}

func TestFold_Text(t *testing.T) {
	b := testutil.NewBuilder(t).WithFile("program.clw", testutil.ProgramSource)
	b.Build()

	out, _, err := executeCommand(t, "fold", b.Path("program.clw"))
	require.NoError(t, err)
	assert.Contains(t, out, b.Path("program.clw")+":2-4 region\n")
	assert.Contains(t, out, b.Path("program.clw")+":11-13 region\n")
}

func TestCheck_ReportsDiagnostics(t *testing.T) {
	b := testutil.NewBuilder(t).WithFile("broken.clw", testutil.UnterminatedSource)
	b.Build()
	path := b.Path("broken.clw")

	out, _, err := executeCommand(t, "check", path)
	require.ErrorIs(t, err, errDiagnostics)
	assert.Equal(t,
		path+":3:3: warning: IF opened on line 3 is never terminated\n"+
			path+":9:3: warning: unexpected END: no open structure to close\n",
		out)
}

func TestCheck_JSON(t *testing.T) {
	b := testutil.NewBuilder(t).WithFile("broken.clw", testutil.UnterminatedSource)
	b.Build()

	out, _, err := executeCommand(t, "check", "--format", "json", b.Path("broken.clw"))
	require.ErrorIs(t, err, errDiagnostics)

	var diags []presentation.DiagnosticDTO
	require.NoError(t, json.Unmarshal([]byte(out), &diags))
	require.Len(t, diags, 2)
	assert.Equal(t, "UnterminatedScope", diags[0].Code)
	assert.Equal(t, "UnexpectedTerminator", diags[1].Code)
}

func TestCheck_Clean(t *testing.T) {
	root := testutil.NewBuilder(t).
		WithFile("program.clw", testutil.ProgramSource).
		WithFile("counter.clw", testutil.ClassSource, testutil.WithCRLF()).
		Build()

	out, _, err := executeCommand(t, "check", root)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, _, err = executeCommand(t, "check", "--format", "json", root)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestCheck_UnreadableFileFails(t *testing.T) {
	_, _, err := executeCommand(t, "check", filepath.Join(t.TempDir(), "missing.clw"))
	require.Error(t, err)
}

func TestTokens(t *testing.T) {
	src := "Main PROCEDURE\n  CODE\n  x = 'hi' ! greet\n"
	b := testutil.NewBuilder(t).WithFile("main.clw", src)
	b.Build()
	path := b.Path("main.clw")

	t.Run("highlighted source keeps the text", func(t *testing.T) {
		out, _, err := executeCommand(t, "tokens", path)
		require.NoError(t, err)
		assert.Equal(t, src, ansi.Strip(out))
	})

	t.Run("list", func(t *testing.T) {
		out, _, err := executeCommand(t, "tokens", "--list", path)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "1:1\tLabel\t\"Main\"\n1:6\tStructureKeyword\t\"PROCEDURE\"\n"), out)
		assert.Contains(t, out, "3:12\tComment\t\"! greet\"\n")
	})

	t.Run("json carries scope annotations", func(t *testing.T) {
		out, _, err := executeCommand(t, "tokens", "-f", "json", path)
		require.NoError(t, err)

		var tokens []presentation.TokenDTO
		require.NoError(t, json.Unmarshal([]byte(out), &tokens))
		require.NotEmpty(t, tokens)
		assert.Equal(t, "PROCEDURE", tokens[1].Text)
		assert.Equal(t, 0, tokens[1].Scope)
		assert.Equal(t, 0, tokens[len(tokens)-1].Parent, "body lexemes belong to the procedure")
	})

	t.Run("requires one file", func(t *testing.T) {
		_, _, err := executeCommand(t, "tokens")
		require.Error(t, err)
	})
}
