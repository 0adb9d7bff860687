package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	historyFormat string
	historyYes    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and manage past runs",
	Long: `List past runs, newest first. Subcommands show one run in detail, delete a
run, or clear the whole history.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := listHistory()
		if err != nil {
			return err
		}
		return writeFormatted(cmd.OutOrStdout(), historyFormat, entries, func(w io.Writer) {
			renderHistoryTable(w, entries)
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := lookupResult(args[0])
		if err != nil {
			return err
		}
		return writeFormatted(cmd.OutOrStdout(), historyFormat, result, func(w io.Writer) {
			fmt.Fprintf(w, "%s\n%s\n", result.Idea, renderSummary(result))
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete one run from the history",
	Long:  "Delete one run from the history. Generated project files are left on disk.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		if History != nil {
			if err := History.Delete(runID); err != nil {
				return fmt.Errorf("deleting run %s: %w", runID, err)
			}
		} else if _, ok := Registry.Snapshot(runID); !ok {
			return fmt.Errorf("deleting run %s: %w", runID, storage.ErrRunNotFound)
		}
		Registry.Remove(runID)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", runID)
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every run from the history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !historyYes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		if History != nil {
			if err := History.Clear(); err != nil {
				return fmt.Errorf("clearing history: %w", err)
			}
		}
		Registry.Clear()
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
		return nil
	},
}

// listHistory reads the persisted history, or the runs of this process when
// no history store is available.
func listHistory() ([]models.HistoryEntry, error) {
	if History != nil {
		entries, err := History.List()
		if err != nil {
			return nil, fmt.Errorf("listing history: %w", err)
		}
		return entries, nil
	}
	if Registry == nil {
		return nil, fmt.Errorf("run history not initialized")
	}
	var entries []models.HistoryEntry
	for _, snap := range Registry.List() {
		entry := models.HistoryEntry{
			RunID:     snap.RunID,
			Idea:      snap.Idea,
			Status:    snap.Status,
			CreatedAt: snap.CreatedAt,
			UpdatedAt: snap.UpdatedAt,
		}
		if snap.Result != nil {
			entry.OutputDir = snap.Result.OutputDir
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func lookupResult(runID string) (*models.RunResult, error) {
	if Registry != nil {
		if snap, ok := Registry.Snapshot(runID); ok && snap.Result != nil {
			return snap.Result, nil
		}
	}
	if History == nil {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrRunNotFound)
	}
	result, err := History.Result(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		entry, getErr := History.Get(runID)
		if getErr != nil {
			return nil, fmt.Errorf("run %s: %w", runID, getErr)
		}
		return &models.RunResult{RunID: entry.RunID, Idea: entry.Idea, Status: entry.Status, OutputDir: entry.OutputDir}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", runID, err)
	}
	return result, nil
}

func renderHistoryTable(w io.Writer, entries []models.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-8s  %-16s  %s\n", "RUN ID", "STATUS", "CREATED", "IDEA")
	for _, e := range entries {
		fmt.Fprintf(w, "%-36s  %-8s  %-16s  %s\n",
			e.RunID, e.Status, e.CreatedAt.Local().Format("2006-01-02 15:04"), truncate(e.Idea, 60))
	}
}

// writeFormatted writes v as json or yaml, or calls table for the default
// human-readable format.
func writeFormatted(w io.Writer, format string, v any, table func(io.Writer)) error {
	switch strings.ToLower(format) {
	case "", "table":
		table(w)
		return nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("formatting as YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
		return nil
	default:
		return fmt.Errorf("unsupported format %q (use table, json or yaml)", format)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyFormat, "format", "table", "Output format: table, json or yaml")
	historyClearCmd.Flags().BoolVar(&historyYes, "yes", false, "Confirm clearing the history")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}
