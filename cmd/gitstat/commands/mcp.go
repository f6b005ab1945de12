package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitstat/pkg/gitstat"
	"github.com/Sumatoshi-tech/gitstat/pkg/mcp"
	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes gitstat as a tool that AI agents can discover and invoke:
  - gitstat_export: export commit statistics of every repository under the given roots`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cobraCmd)
			if err != nil {
				return err
			}

			err = cfg.Validate()
			if err != nil {
				return err
			}

			outDir, err := cfg.EnsureExportDir()
			if err != nil {
				return err
			}

			obsCfg := observabilityConfig(cfg, observability.ModeMCP, cobraCmd.ErrOrStderr())
			obsCfg.LogJSON = true

			if debug {
				obsCfg.LogLevel = slog.LevelDebug
			}

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}
			defer shutdownProviders(cobraCmd, providers)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			exportMetrics, err := observability.NewExportMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:  providers.Logger,
				Metrics: red,
				Tracer:  providers.Tracer,
				Exporter: &gitstat.Exporter{
					OutputDir:           outDir,
					SimilarityThreshold: cfg.Git.SimilarityThreshold,
					SpillRows:           cfg.Export.SpillRows,
					IgnorePatterns:      cfg.Scan.Ignore,
					MaxDepth:            cfg.Scan.MaxDepth,
					CSVBOM:              cfg.Export.CSVBOM,
					Logger:              providers.Logger,
					Tracer:              providers.Tracer,
					Metrics:             exportMetrics,
				},
				DefaultFormat:      cfg.Export.Format,
				DefaultGranularity: cfg.Export.Granularity,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
