package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

var (
	generateTUI   bool
	generateJSON  bool
	generateRunID string
)

var (
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var generateCmd = &cobra.Command{
	Use:     "generate [idea]",
	Aliases: []string{"gen"},
	Short:   "Generate a project from an idea",
	Long: `Run the full persona pipeline for one idea and write the project under the
configured output root.

The idea is taken from the arguments, or read from stdin when none are given.
Progress is printed to stderr; the final summary goes to stdout. The command
exits non-zero when the run fails.`,
	Args: cobra.ArbitraryArgs,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if Launcher == nil {
		return fmt.Errorf("run launcher not initialized")
	}

	idea, err := readIdea(args, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	var result *models.RunResult
	if generateTUI {
		result, err = runGenerateTUI(ctx, idea)
		if err != nil {
			return fmt.Errorf("running progress view: %w", err)
		}
	} else {
		result = Launcher.Run(ctx, generateRunID, idea, &consoleSink{w: cmd.ErrOrStderr()})
	}

	if err := printResult(cmd.OutOrStdout(), result, generateJSON); err != nil {
		return err
	}
	if result == nil || result.Status != models.RunSuccess {
		msg := "unknown error"
		if result != nil && result.Message != "" {
			msg = result.Message
		}
		return fmt.Errorf("run failed: %s", msg)
	}
	return nil
}

// readIdea joins args into the idea, or prompts for one line on stdin.
func readIdea(args []string, in io.Reader, prompt io.Writer) (string, error) {
	idea := strings.TrimSpace(strings.Join(args, " "))
	if idea == "" {
		fmt.Fprint(prompt, "Enter your project idea: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading idea: %w", err)
		}
		idea = strings.TrimSpace(line)
	}
	if idea == "" {
		return "", fmt.Errorf("idea is required")
	}
	return idea, nil
}

// consoleSink prints progress lines as the pipeline reports them.
type consoleSink struct {
	w io.Writer
}

func (s *consoleSink) Progress(_ string, message string) {
	fmt.Fprintf(s.w, "%s %s\n", stepStyle.Render("›"), message)
}

func (s *consoleSink) Complete(string, *models.RunResult) {}

func printResult(w io.Writer, result *models.RunResult, asJSON bool) error {
	if result == nil {
		return nil
	}
	if asJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting result as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintln(w, renderSummary(result))
	return nil
}

// renderSummary formats a finished run for the terminal.
func renderSummary(result *models.RunResult) string {
	var b strings.Builder
	if result.Status == models.RunSuccess {
		fmt.Fprintf(&b, "%s run %s\n", successStyle.Render("✔ succeeded"), result.RunID)
	} else {
		fmt.Fprintf(&b, "%s run %s\n", failureStyle.Render("✘ failed"), result.RunID)
		fmt.Fprintf(&b, "  %-12s %s\n", "Error:", result.Message)
	}

	if result.OutputDir != "" {
		fmt.Fprintf(&b, "  %-12s %s\n", "Project:", result.OutputDir)
	}
	if len(result.Generated) > 0 {
		fmt.Fprintf(&b, "  %-12s %d\n", "Files:", len(result.Generated))
	}
	if len(result.Tests) > 0 {
		passed := 0
		for _, rec := range result.Repairs {
			if rec.Outcome == models.FixPassed {
				passed++
			}
		}
		fmt.Fprintf(&b, "  %-12s %d/%d passing\n", "Tests:", passed, len(result.Tests))
	}
	if unresolved := result.Unresolved(); len(unresolved) > 0 {
		fmt.Fprintf(&b, "  %-12s %s\n", "Unresolved:", warnStyle.Render(strings.Join(unresolved, ", ")))
	}
	if len(result.Log) > 0 {
		b.WriteString("\n")
		for _, line := range result.Log {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(line))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func init() {
	generateCmd.Flags().BoolVar(&generateTUI, "tui", false, "Show live progress in an interactive view")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "Print the run result as JSON")
	generateCmd.Flags().StringVar(&generateRunID, "run-id", "", "Use this run ID instead of a generated one")
	rootCmd.AddCommand(generateCmd)
}
