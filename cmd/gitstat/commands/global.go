// Package commands implements CLI command handlers for gitstat.
package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitstat/pkg/config"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
	"github.com/Sumatoshi-tech/gitstat/pkg/repofind"
	"github.com/Sumatoshi-tech/gitstat/pkg/version"
)

// Global flag names.
const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagLogJSON  = "log-json"
)

// RegisterGlobalFlags adds the flags every subcommand honours.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String(flagConfig, "", "config file (default: gitstat.yaml in ., ./config or /etc/gitstat)")
	root.PersistentFlags().String(flagLogLevel, "", "log level: debug, info, warn, error (overrides logging.level)")
	root.PersistentFlags().Bool(flagLogJSON, false, "emit JSON logs (overrides logging.format)")
}

// loadConfig reads the configuration and applies the global flag overrides.
// Subcommands built without a root command see no global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(stringFlag(cmd, flagConfig))
	if err != nil {
		return nil, err
	}

	if level := stringFlag(cmd, flagLogLevel); level != "" {
		cfg.Logging.Level = level
	}

	if asJSON, lookupErr := cmd.Flags().GetBool(flagLogJSON); lookupErr == nil && asJSON {
		cfg.Logging.Format = config.LogFormatJSON
	}

	return cfg, nil
}

func stringFlag(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}

	return value
}

// observabilityConfig maps the loaded configuration onto telemetry settings.
func observabilityConfig(cfg *config.Config, mode observability.AppMode, logOutput io.Writer) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.LogLevel = observability.ParseLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.Format == config.LogFormatJSON
	obsCfg.LogOutput = logOutput

	return obsCfg
}

// resolveRoots joins positional roots with the lines of an optional paths file.
func resolveRoots(args []string, pathsFile string) ([]string, error) {
	roots := append([]string(nil), args...)

	if pathsFile == "" {
		return roots, nil
	}

	data, err := os.ReadFile(pathsFile)
	if err != nil {
		return nil, fmt.Errorf("read paths file: %w", err)
	}

	return append(roots, repofind.ParsePathLines(string(data))...), nil
}

// shutdownProviders flushes telemetry, logging rather than returning failures.
func shutdownProviders(cmd *cobra.Command, providers observability.Providers) {
	err := providers.Shutdown(cmd.Context())
	if err != nil {
		logger := providers.Logger
		if logger == nil {
			logger = slog.Default()
		}

		logger.Warn("observability shutdown failed", "error", err)
	}
}
