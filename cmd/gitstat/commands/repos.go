package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitstat/pkg/observability"
	"github.com/Sumatoshi-tech/gitstat/pkg/repofind"
)

// NewReposCommand creates the repos command.
func NewReposCommand() *cobra.Command {
	var (
		pathsFile string
		ignore    []string
		maxDepth  int
	)

	cmd := &cobra.Command{
		Use:   "repos [roots...]",
		Short: "List the git repositories found under the roots",
		Long: `Repos prints, one per line, the canonical path of every repository an
export over the same roots would visit, in visiting order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("ignore") {
				cfg.Scan.Ignore = ignore
			}

			if cmd.Flags().Changed("max-depth") {
				cfg.Scan.MaxDepth = maxDepth
			}

			roots, err := resolveRoots(args, pathsFile)
			if err != nil {
				return err
			}

			logger := observability.NewLogger(observabilityConfig(cfg, observability.ModeCLI, cmd.ErrOrStderr()))

			repos, err := repofind.FindAllGitRepos(roots,
				repofind.WithIgnorePatterns(cfg.Scan.Ignore),
				repofind.WithMaxDepth(cfg.Scan.MaxDepth),
				repofind.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			for _, repo := range repos {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), repo)
				if err != nil {
					return fmt.Errorf("write repository list: %w", err)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&pathsFile, "paths-file", "", "file listing root directories, one per line")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "gitignore-style patterns skipped while scanning (overrides scan.ignore)")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "maximum directory depth below each root (0 = unlimited)")

	return cmd
}
