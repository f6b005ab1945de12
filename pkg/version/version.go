// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

// Build metadata. Release builds override these with
// -X github.com/Sumatoshi-tech/gitstat/pkg/version.Version=... and friends.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the one-line build description printed by the CLI.
func String() string {
	return fmt.Sprintf("gitstat %s (commit: %s, built: %s)", Version, Commit, Date)
}
