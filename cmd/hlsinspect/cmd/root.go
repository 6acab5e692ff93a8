// Package cmd implements the CLI commands for hlsinspect.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mogiioin/hlsengine/config"
	"github.com/mogiioin/hlsengine/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile      string
	outputFormat string

	appConfig *config.Config
	logger    *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hlsinspect",
	Short: "Inspect HLS playlists and simulate buffering",
	Long: `hlsinspect loads HLS master and media playlists from files or URLs,
prints what the playlist engine parsed, and replays media playlists through
the buffer controller against an in-memory media host.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// log flags are not bound to viper so that an unset flag keeps the
	// env or file value
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./hlsengine.yaml or $HOME/.hlsengine/hlsengine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "output format (text, yaml, json)")
}

// setup loads the configuration and installs the logger.
//
// Priority order (highest to lowest):
//  1. CLI flags (--log-level, --log-format), only if explicitly provided
//  2. Environment variables (HLSENGINE_LOGGING_LEVEL, HLSENGINE_LOGGING_FORMAT)
//  3. Config file values
//  4. Built-in defaults (info, text)
func setup(_ *cobra.Command, _ []string) error {
	if !validFormat(outputFormat) {
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := rootCmd.PersistentFlags()
	overrideString(flags, "log-level", &cfg.Logging.Level)
	overrideString(flags, "log-format", &cfg.Logging.Format)
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	appConfig = cfg
	logger = observability.WithComponent(observability.NewLogger(cfg.Logging), "hlsinspect")
	observability.SetDefault(logger)
	return nil
}

// overrideString copies a flag value into dst when the flag was set.
func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if !flags.Changed(name) {
		return
	}
	if v, err := flags.GetString(name); err == nil {
		*dst = v
	}
}
