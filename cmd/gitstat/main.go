// Package main provides the entry point for the gitstat CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitstat/cmd/gitstat/commands"
	"github.com/Sumatoshi-tech/gitstat/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gitstat",
		Short: "gitstat - export git commit statistics to xlsx or csv",
		Long: `gitstat walks every git repository found under the given directories and
writes one row per commit (or per changed file) into a single spreadsheet.

Commands:
  export    Export commit statistics
  repos     List the repositories an export would visit
  mcp       Serve exports over the Model Context Protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewReposCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, version.String())
		},
	}
}
