package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display run metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include run counts and success rate, failures by phase, generated
artifacts and tests, test outcomes, repairs, and empty model responses.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		renderMetrics(out, metrics, sinceTime)
		return nil
	},
}

func renderMetrics(w io.Writer, m *observability.Metrics, since time.Time) {
	fmt.Fprintf(w, "Metrics (since %s)\n\n", since.Format("2006-01-02"))
	fmt.Fprintf(w, "  %-24s %d\n", "Events recorded:", m.EventCount)
	fmt.Fprintf(w, "  %-24s %d\n", "Runs started:", m.RunsStarted)
	fmt.Fprintf(w, "  %-24s %d\n", "Runs succeeded:", m.RunsSucceeded)
	fmt.Fprintf(w, "  %-24s %d\n", "Runs failed:", m.RunsFailed)
	fmt.Fprintf(w, "  %-24s %.0f%%\n", "Success rate:", m.SuccessRate()*100)
	if m.AvgRunDuration > 0 {
		fmt.Fprintf(w, "  %-24s %s\n", "Average run:", m.AvgRunDuration.Round(time.Second))
	}
	fmt.Fprintf(w, "  %-24s %d\n", "Artifacts generated:", m.ArtifactsGenerated)
	fmt.Fprintf(w, "  %-24s %d\n", "Tests generated:", m.TestsGenerated)
	fmt.Fprintf(w, "  %-24s %d passed, %d failed\n", "Test executions:", m.TestsPassed, m.TestsFailed)
	fmt.Fprintf(w, "  %-24s %d fixed, %d unresolved\n", "Repairs:", m.ArtifactsFixed, m.ArtifactsUnresolved)
	fmt.Fprintf(w, "  %-24s %d\n", "Plan parse failures:", m.PlanParseFailures)
	fmt.Fprintf(w, "  %-24s %d\n", "Empty generations:", m.EmptyGenerations)

	writeCounts(w, "Failures by phase:", m.FailuresByPhase)
	writeCounts(w, "Empty generations by persona:", m.EmptyByPersona)

	if m.OldestEvent != nil {
		fmt.Fprintf(w, "\n  %-24s %s\n", "Oldest event:", m.OldestEvent.Format(time.RFC3339))
	}
	if m.NewestEvent != nil {
		fmt.Fprintf(w, "  %-24s %s\n", "Newest event:", m.NewestEvent.Format(time.RFC3339))
	}
}

func writeCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n  %s\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-20s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
