package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "adt",
	Short: "AI Dev Team - turn a project idea into code with a team of AI personas",
	Long: `AI Dev Team (adt) turns a one-line project idea into a small project.

A chain of personas drives each run: a product manager writes the PRD, an
architect writes the system design, a project manager plans the files, an
engineer writes each file, a QA engineer writes a test for it, and a code
fixer repairs files whose tests fail.

Runs can be started from the command line, over HTTP (adt serve) or from an
AI assistant over MCP (adt mcp serve).`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "adt %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
