package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/clarionscope/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and edit the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigSetCmd(a))
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		global bool
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a commented default config file",
		Long: `Write the default configuration with comments to path, or to
.clarionscope/config.yaml (--global: ~/.config/clarionscope/config.yaml).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := localConfigPath
			switch {
			case len(args) == 1:
				path = args[0]
			case global:
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("finding home directory: %w", err)
				}
				path = filepath.Join(home, ".config", "clarionscope", "config.yaml")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefaultConfig(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().BoolVarP(&global, "global", "g", false, "write the user config instead of the project config")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration value",
		Long: `Set a dotted key such as watch.debounce or output.format in the config file
in use, keeping its comments. Lists are written as [a, b]. The file is left
unchanged when the result does not validate.

Examples:
  clarionscope config set workers 8
  clarionscope config set exclude '[.git, obj, backup]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.ConfigFileUsed()
			if path == "" {
				path = localConfigPath
			}
			if err := setConfigValue(path, args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %s\n", path, args[0], args[1])
			return err
		},
	}
}

// setConfigValue writes key and restores the previous file if the new
// configuration is invalid.
func setConfigValue(path, key, value string) error {
	original, readErr := os.ReadFile(path) //nolint:gosec // G304: user-selected config file
	if readErr != nil && !errors.Is(readErr, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", readErr)
	}
	restore := func() {
		if readErr != nil {
			_ = os.Remove(path)
			return
		}
		_ = os.WriteFile(path, original, 0o600)
	}

	if err := config.Set(path, key, value); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	cfg := config.Defaults()
	if err := v.ReadInConfig(); err != nil {
		restore()
		return fmt.Errorf("reading updated config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		restore()
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		restore()
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
