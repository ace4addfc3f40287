package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DefaultExtensions(), cfg.Extensions)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, "text", cfg.Output.Format)
	require.False(t, cfg.Tracing.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "no extensions", mutate: func(c *Config) { c.Extensions = nil }, wantErr: "extensions must list"},
		{name: "extension without dot", mutate: func(c *Config) { c.Extensions = []string{"clw"} }, wantErr: `"clw" must start with a dot`},
		{name: "bad exclude pattern", mutate: func(c *Config) { c.Exclude = []string{"["} }, wantErr: "invalid pattern"},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: "workers must be at least 1"},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTL = -time.Second }, wantErr: "cache.ttl"},
		{name: "zero debounce", mutate: func(c *Config) { c.Watch.Debounce = 0 }, wantErr: "watch.debounce"},
		{name: "unknown format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "output.format"},
		{name: "negative label width", mutate: func(c *Config) { c.Output.MaxLabelWidth = -1 }, wantErr: "max_label_width"},
		{name: "sample rate", mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 }, wantErr: "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateTracing(t *testing.T) {
	require.NoError(t, ValidateTracing(TracingConfig{}))
	require.NoError(t, ValidateTracing(TracingConfig{Enabled: true, Exporter: "stdout"}))

	err := ValidateTracing(TracingConfig{Exporter: "jaeger"})
	require.ErrorContains(t, err, "tracing.exporter")

	err = ValidateTracing(TracingConfig{Enabled: true, Exporter: "file"})
	require.ErrorContains(t, err, "file_path is required")

	err = ValidateTracing(TracingConfig{Enabled: true, Exporter: "otlp"})
	require.ErrorContains(t, err, "otlp_endpoint is required")

	// Path requirements only apply when enabled.
	require.NoError(t, ValidateTracing(TracingConfig{Exporter: "file"}))
}

func TestIndexPath(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, filepath.Join("src", ".clarionscope", "index.db"), cfg.IndexPath("src"))

	cfg.Index.Path = "/tmp/x.db"
	require.Equal(t, "/tmp/x.db", cfg.IndexPath("src"))
}

func TestDefaultTracesFilePath(t *testing.T) {
	path := DefaultTracesFilePath()
	if path != "" {
		require.True(t, strings.HasSuffix(path, filepath.Join("clarionscope", "traces", "traces.jsonl")))
	}
}

// loadViper decodes a config file the way the CLI does.
func loadViper(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestWriteDefaultConfig_MatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg := loadViper(t, path)
	require.Equal(t, Defaults(), cfg)
}
