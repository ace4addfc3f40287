package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/clarionscope/internal/config"
	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/presentation"
	"github.com/zjrosen/clarionscope/internal/tracing"
	"github.com/zjrosen/clarionscope/internal/workspace"
)

var version = "dev"

// errDiagnostics makes check exit non-zero without printing an extra error.
var errDiagnostics = errors.New("diagnostics reported")

// app holds the state shared by every subcommand of one invocation.
type app struct {
	v       *viper.Viper
	cfg     config.Config
	cfgFile string
	debug   bool
	format  string
	noColor bool

	tracer   *tracing.Provider
	closeLog func()
}

// newRootCmd builds the command tree. Each call gets its own viper
// instance and flag state; the caller runs a.teardown after Execute.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New(), tracer: tracing.Disabled()}

	root := &cobra.Command{
		Use:   "clarionscope",
		Short: "Structural analysis for Clarion source",
		Long: `Classify Clarion source into lexemes, resolve structure scopes and report
unterminated or stray structures.

Configuration is read from --config, .clarionscope/config.yaml or
~/.config/clarionscope/config.yaml, in that order.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "",
		"config file (default: ~/.config/clarionscope/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false,
		"write debug logs (also enabled by CLARIONSCOPE_DEBUG)")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "",
		"output format: text or json (overrides output.format)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false,
		"disable colored output")

	root.AddCommand(
		newOutlineCmd(a),
		newFoldCmd(a),
		newCheckCmd(a),
		newTokensCmd(a),
		newWatchCmd(a),
		newIndexCmd(a),
		newConfigCmd(a),
	)
	return root, a
}

// loadConfig resolves the config file and decodes it over the defaults.
func (a *app) loadConfig() error {
	defaults := config.Defaults()
	a.v.SetDefault("extensions", defaults.Extensions)
	a.v.SetDefault("exclude", defaults.Exclude)
	a.v.SetDefault("workers", defaults.Workers)
	a.v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	a.v.SetDefault("cache.ttl", defaults.Cache.TTL)
	a.v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	a.v.SetDefault("watch.debounce", defaults.Watch.Debounce)
	a.v.SetDefault("index.path", defaults.Index.Path)
	a.v.SetDefault("output.format", defaults.Output.Format)
	a.v.SetDefault("output.color", defaults.Output.Color)
	a.v.SetDefault("output.max_label_width", defaults.Output.MaxLabelWidth)
	a.v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	a.v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	a.v.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	a.v.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	a.v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		// Config lookup order:
		// 1. .clarionscope/config.yaml (current directory)
		// 2. ~/.config/clarionscope/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			a.v.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			a.v.AddConfigPath(filepath.Join(home, ".config", "clarionscope"))
			a.v.SetConfigName("config")
			a.v.SetConfigType("yaml")
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	if err := a.v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}

	if a.format != "" {
		a.cfg.Output.Format = a.format
	}
	if a.noColor {
		a.cfg.Output.Color = false
	}
	if a.cfg.Tracing.FilePath == "" {
		a.cfg.Tracing.FilePath = config.DefaultTracesFilePath()
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

const localConfigPath = ".clarionscope/config.yaml"

// setup runs before every subcommand: config, logging, colour and tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	if a.debug || os.Getenv("CLARIONSCOPE_DEBUG") != "" {
		logPath := os.Getenv("CLARIONSCOPE_LOG")
		if logPath == "" {
			logPath = "debug.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		a.closeLog = cleanup
		if name := os.Getenv("CLARIONSCOPE_LOG_LEVEL"); name != "" {
			level, err := log.ParseLevel(name)
			if err != nil {
				return fmt.Errorf("CLARIONSCOPE_LOG_LEVEL: %w", err)
			}
			log.SetMinLevel(level)
		}
		log.Info(log.CatConfig, "clarionscope starting", "command", cmd.CommandPath(), "config", a.v.ConfigFileUsed())
	}

	if !a.cfg.Output.Color {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if a.cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(tracing.FromConfig(a.cfg.Tracing))
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		a.tracer = provider
	}
	return nil
}

// teardown flushes tracing and closes the debug log. It is safe to call
// when setup never ran.
func (a *app) teardown() {
	if err := a.tracer.Shutdown(context.Background()); err != nil {
		log.ErrorErr(log.CatTrace, "tracer shutdown failed", err)
	}
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}

// newService creates a workspace service from the loaded configuration.
func (a *app) newService() *workspace.Service {
	return workspace.New(workspace.Options{
		Filter:          a.filter(),
		Workers:         a.cfg.Workers,
		CacheTTL:        a.cfg.Cache.TTL,
		CleanupInterval: a.cfg.Cache.CleanupInterval,
		SkipCache:       !a.cfg.Cache.Enabled,
		Tracer:          a.tracer,
	})
}

func (a *app) filter() workspace.Filter {
	return workspace.Filter{Extensions: a.cfg.Extensions, Exclude: a.cfg.Exclude}
}

func (a *app) formatter(w io.Writer) *presentation.Formatter {
	return presentation.NewFormatter(w,
		presentation.WithColor(a.cfg.Output.Color),
		presentation.WithMaxLabelWidth(a.cfg.Output.MaxLabelWidth),
	)
}

func (a *app) json() bool {
	return a.cfg.Output.Format == "json"
}

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitDiagnostics = 1
	ExitError       = 2
)

// Execute runs the root command and returns the process exit code.
// Diagnostics reported by check exit with ExitDiagnostics; any other
// failure is printed and exits with ExitError.
func Execute() int {
	root, a := newRootCmd()
	err := root.Execute()
	a.teardown()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errDiagnostics):
		return ExitDiagnostics
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return ExitError
	}
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}
