// Package config provides configuration types, defaults, and persistence for clarionscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/clarionscope/internal/log"
)

// Config holds all clarionscope configuration.
type Config struct {
	// Extensions lists the file extensions treated as Clarion source.
	Extensions []string `mapstructure:"extensions"`
	// Exclude lists glob patterns matched against file and directory base names.
	Exclude []string      `mapstructure:"exclude"`
	Workers int           `mapstructure:"workers"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Index   IndexConfig   `mapstructure:"index"`
	Output  OutputConfig  `mapstructure:"output"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// IndexConfig controls the persistent symbol index.
type IndexConfig struct {
	// Path is the sqlite database file. Empty means .clarionscope/index.db
	// under the analysed root.
	Path string `mapstructure:"path"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	Format        string `mapstructure:"format"` // text or json
	Color         bool   `mapstructure:"color"`
	MaxLabelWidth int    `mapstructure:"max_label_width"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/clarionscope/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/clarionscope/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "clarionscope", "traces", "traces.jsonl")
}

// DefaultExtensions returns the Clarion source extensions.
func DefaultExtensions() []string {
	return []string{".clw", ".inc", ".equ", ".trn", ".int"}
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Extensions: DefaultExtensions(),
		Exclude:    []string{".git", ".clarionscope", "obj", "*.bak"},
		Workers:    4,
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Output: OutputConfig{
			Format:        "text",
			Color:         true,
			MaxLabelWidth: 40,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions must list at least one file extension")
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extensions: %q must start with a dot", ext)
		}
	}
	for _, pattern := range c.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("exclude: invalid pattern %q: %w", pattern, err)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce)
	}
	if err := ValidateOutput(c.Output); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateOutput checks output configuration for errors.
func ValidateOutput(out OutputConfig) error {
	switch out.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("output.format must be \"text\" or \"json\", got %q", out.Format)
	}
	if out.MaxLabelWidth < 0 {
		return fmt.Errorf("output.max_label_width must not be negative, got %d", out.MaxLabelWidth)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// IndexPath resolves the index database location for root.
func (c Config) IndexPath(root string) string {
	if c.Index.Path != "" {
		return c.Index.Path
	}
	return filepath.Join(root, ".clarionscope", "index.db")
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# clarionscope configuration

# File extensions treated as Clarion source
extensions: [.clw, .inc, .equ, .trn, .int]

# Glob patterns matched against file and directory names to skip
exclude: [.git, .clarionscope, obj, "*.bak"]

# Files analysed concurrently during a scan
workers: 4

# Analysis result cache
cache:
  enabled: true          # false re-analyses every file on every request
  ttl: 10m               # How long an unchanged file's analysis is kept
  cleanup_interval: 30m  # How often expired entries are purged

# File watching (clarionscope watch)
watch:
  debounce: 300ms        # Quiet period before changed files are re-analysed

# Symbol index (clarionscope index build/search)
index:
  # path: /path/to/index.db  # Default: .clarionscope/index.db under the scanned root

# Output settings
output:
  format: text           # text or json
  color: true            # Highlight tokens and diagnostics
  max_label_width: 40    # Truncate long labels in outline trees (0 = no limit)

# OpenTelemetry tracing of classify/resolve/analyse passes
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/clarionscope/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
