package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/clarionscope/internal/config"
	"github.com/zjrosen/clarionscope/internal/tracing"
)

// executeCommand runs a fresh command tree against a default config file
// with colour disabled.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(cfgPath))
	return executeWithConfig(t, cfgPath, args...)
}

func executeWithConfig(t *testing.T, cfgPath string, args ...string) (string, string, error) {
	t.Helper()
	root, a := newRootCmd()
	defer a.teardown()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	a := &app{v: viper.New(), cfgFile: writeConfig(t, "workers: 2\nwatch:\n  debounce: 1s\noutput:\n  format: json\n")}
	require.NoError(t, a.loadConfig())

	assert.Equal(t, 2, a.cfg.Workers)
	assert.Equal(t, time.Second, a.cfg.Watch.Debounce)
	assert.True(t, a.json())
	assert.Equal(t, config.DefaultExtensions(), a.cfg.Extensions, "unset keys keep their defaults")
	assert.Equal(t, 10*time.Minute, a.cfg.Cache.TTL)
	assert.True(t, a.cfg.Cache.Enabled)
	assert.Equal(t, config.DefaultTracesFilePath(), a.cfg.Tracing.FilePath)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	a := &app{
		v:       viper.New(),
		cfgFile: writeConfig(t, "output:\n  format: json\n  color: true\n"),
		format:  "text",
		noColor: true,
	}
	require.NoError(t, a.loadConfig())
	assert.False(t, a.json())
	assert.False(t, a.cfg.Output.Color)
}

func TestNewService_CacheDisabled(t *testing.T) {
	for _, tt := range []struct {
		name string
		yaml string
		hits int64
	}{
		{name: "enabled by default", yaml: "workers: 1\n", hits: 1},
		{name: "disabled", yaml: "cache:\n  enabled: false\n", hits: 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			a := &app{v: viper.New(), cfgFile: writeConfig(t, tt.yaml), tracer: tracing.Disabled()}
			require.NoError(t, a.loadConfig())
			svc := a.newService()
			defer svc.Close()

			ctx := context.Background()
			for range 2 {
				_, err := svc.Update(ctx, "main.clw", "Main PROCEDURE\n  CODE\n")
				require.NoError(t, err)
			}
			assert.Equal(t, tt.hits, svc.CacheStats().Hits)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		a := &app{v: viper.New(), cfgFile: filepath.Join(t.TempDir(), "nope.yaml")}
		require.ErrorContains(t, a.loadConfig(), "reading config")
	})

	t.Run("invalid value", func(t *testing.T) {
		a := &app{v: viper.New(), cfgFile: writeConfig(t, "workers: 0\n")}
		require.ErrorContains(t, a.loadConfig(), "invalid configuration")
	})

	t.Run("invalid format flag", func(t *testing.T) {
		a := &app{v: viper.New(), cfgFile: writeConfig(t, "workers: 1\n"), format: "xml"}
		require.ErrorContains(t, a.loadConfig(), "output.format")
	})
}

func TestSetup_EnablesTracing(t *testing.T) {
	traces := filepath.Join(t.TempDir(), "traces.jsonl")
	cfgPath := writeConfig(t, "tracing:\n  enabled: true\n  exporter: file\n  file_path: "+traces+"\n")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.clw"), []byte("Main PROCEDURE\n  CODE\n"), 0o600))

	_, _, err := executeWithConfig(t, cfgPath, "outline", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(traces)
	require.NoError(t, err)
	assert.Contains(t, string(data), tracing.SpanScan)
	assert.Contains(t, string(data), tracing.SpanAnalyze)
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, _, err := executeCommand(t, "frobnicate")
	require.Error(t, err)
}
