package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildTime    = "unknown"
)

// SetVersionInfo records build metadata injected at link time.
func SetVersionInfo(version, commit, built string) {
	buildVersion = version
	buildCommit = commit
	buildTime = built
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chanctl %s\n", buildVersion)
			fmt.Printf("  commit:  %s\n", buildCommit)
			fmt.Printf("  built:   %s\n", buildTime)
			fmt.Printf("  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
