// Package mcp provides an MCP (Model Context Protocol) server that lets AI
// coding assistants generate projects and inspect past runs.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// Server wraps the run launcher and run stores and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	launcher    core.RunLauncher
	registry    *storage.ResultRegistry
	history     storage.HistoryStore
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server. history, metricsCalc and alertEngine
// may be nil.
func NewServer(launcher core.RunLauncher, registry *storage.ResultRegistry, history storage.HistoryStore, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		launcher:    launcher,
		registry:    registry,
		history:     history,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "adt", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled. Runs started in the background are waited for
// before returning.
func (s *Server) Run(ctx context.Context) error {
	err := s.server.Run(ctx, &gomcp.StdioTransport{})
	s.launcher.Wait()
	return err
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type generateProjectInput struct {
	Idea string `json:"idea" jsonschema:"required,a short description of the project to generate"`
	Wait bool   `json:"wait,omitempty" jsonschema:"block until the run finishes and return its result instead of just the run id"`
}

type runOutput struct {
	RunID      string   `json:"run_id"`
	Idea       string   `json:"idea,omitempty"`
	Status     string   `json:"status"`
	Progress   string   `json:"progress,omitempty"`
	Message    string   `json:"message,omitempty"`
	ProjectDir string   `json:"project_dir,omitempty"`
	Generated  []string `json:"generated,omitempty"`
	Tests      []string `json:"tests,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
	Log        []string `json:"log,omitempty"`
}

type getRunInput struct {
	RunID string `json:"run_id" jsonschema:"required,the run identifier returned by generate_project"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return, newest first. Defaults to 20."`
}

type runSummary struct {
	RunID      string `json:"run_id"`
	Idea       string `json:"idea"`
	Status     string `json:"status"`
	ProjectDir string `json:"project_dir,omitempty"`
	Created    string `json:"created"`
}

type listRunsOutput struct {
	Runs  []runSummary `json:"runs"`
	Count int          `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	RunsStarted         int            `json:"runs_started"`
	RunsSucceeded       int            `json:"runs_succeeded"`
	RunsFailed          int            `json:"runs_failed"`
	SuccessRate         float64        `json:"success_rate"`
	FailuresByPhase     map[string]int `json:"failures_by_phase"`
	ArtifactsGenerated  int            `json:"artifacts_generated"`
	TestsGenerated      int            `json:"tests_generated"`
	TestsPassed         int            `json:"tests_passed"`
	TestsFailed         int            `json:"tests_failed"`
	ArtifactsFixed      int            `json:"artifacts_fixed"`
	ArtifactsUnresolved int            `json:"artifacts_unresolved"`
	EmptyGenerations    int            `json:"empty_generations"`
	AvgRunDuration      string         `json:"avg_run_duration"`
	EventCount          int            `json:"event_count"`
	OldestEvent         string         `json:"oldest_event,omitempty"`
	NewestEvent         string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "generate_project",
		Description: "Generate a project from an idea: PRD, design, task plan, code, tests and repairs. Returns the run id, or the full result when wait is true.",
	}, s.handleGenerateProject)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_run",
		Description: "Get the status of a run. While running, progress holds the latest step; once finished the generated files, tests and unresolved artifacts are included.",
	}, s.handleGetRun)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_runs",
		Description: "List past runs, newest first.",
	}, s.handleListRuns)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated run metrics from the event log: success rate, test outcomes, repairs and empty model responses.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (failing runs, unresolved artifacts, empty model responses).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleGenerateProject(ctx context.Context, _ *gomcp.CallToolRequest, input generateProjectInput) (*gomcp.CallToolResult, runOutput, error) {
	idea := strings.TrimSpace(input.Idea)
	if idea == "" {
		return errorResult("idea is required"), runOutput{}, nil
	}

	if !input.Wait {
		runID := s.launcher.Start(context.WithoutCancel(ctx), idea)
		return nil, runOutput{RunID: runID, Idea: idea, Status: string(models.RunRunning)}, nil
	}

	result := s.launcher.Run(ctx, "", idea, nil)
	return nil, resultToOutput(result), nil
}

func (s *Server) handleGetRun(_ context.Context, _ *gomcp.CallToolRequest, input getRunInput) (*gomcp.CallToolResult, runOutput, error) {
	if input.RunID == "" {
		return errorResult("run_id is required"), runOutput{}, nil
	}

	if snap, ok := s.registry.Snapshot(input.RunID); ok {
		return nil, snapshotToOutput(snap), nil
	}
	if s.history == nil {
		return errorResult(fmt.Sprintf("run %s not found", input.RunID)), runOutput{}, nil
	}

	entry, err := s.history.Get(input.RunID)
	if errors.Is(err, storage.ErrRunNotFound) {
		return errorResult(fmt.Sprintf("run %s not found", input.RunID)), runOutput{}, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("getting run %s: %s", input.RunID, err)), runOutput{}, nil
	}
	if result, err := s.history.Result(input.RunID); err == nil {
		out := resultToOutput(result)
		out.Idea = entry.Idea
		return nil, out, nil
	}
	return nil, runOutput{RunID: entry.RunID, Idea: entry.Idea, Status: string(entry.Status), ProjectDir: entry.OutputDir}, nil
}

func (s *Server) handleListRuns(_ context.Context, _ *gomcp.CallToolRequest, input listRunsInput) (*gomcp.CallToolResult, listRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	var runs []runSummary
	if s.history != nil {
		entries, err := s.history.List()
		if err != nil {
			return errorResult(fmt.Sprintf("listing runs: %s", err)), listRunsOutput{}, nil
		}
		for _, e := range entries {
			runs = append(runs, runSummary{
				RunID:      e.RunID,
				Idea:       e.Idea,
				Status:     string(e.Status),
				ProjectDir: e.OutputDir,
				Created:    e.CreatedAt.Format(time.RFC3339),
			})
		}
	} else {
		for _, snap := range s.registry.List() {
			sum := runSummary{
				RunID:   snap.RunID,
				Idea:    snap.Idea,
				Status:  string(snap.Status),
				Created: snap.CreatedAt.Format(time.RFC3339),
			}
			if snap.Result != nil {
				sum.ProjectDir = snap.Result.OutputDir
			}
			runs = append(runs, sum)
		}
	}

	if len(runs) > limit {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []runSummary{}
	}
	return nil, listRunsOutput{Runs: runs, Count: len(runs)}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		RunsStarted:         metrics.RunsStarted,
		RunsSucceeded:       metrics.RunsSucceeded,
		RunsFailed:          metrics.RunsFailed,
		SuccessRate:         metrics.SuccessRate(),
		FailuresByPhase:     metrics.FailuresByPhase,
		ArtifactsGenerated:  metrics.ArtifactsGenerated,
		TestsGenerated:      metrics.TestsGenerated,
		TestsPassed:         metrics.TestsPassed,
		TestsFailed:         metrics.TestsFailed,
		ArtifactsFixed:      metrics.ArtifactsFixed,
		ArtifactsUnresolved: metrics.ArtifactsUnresolved,
		EmptyGenerations:    metrics.EmptyGenerations,
		AvgRunDuration:      metrics.AvgRunDuration.String(),
		EventCount:          metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func resultToOutput(r *models.RunResult) runOutput {
	if r == nil {
		return runOutput{Status: string(models.RunError)}
	}
	return runOutput{
		RunID:      r.RunID,
		Idea:       r.Idea,
		Status:     string(r.Status),
		Message:    r.Message,
		ProjectDir: r.OutputDir,
		Generated:  r.Generated,
		Tests:      testFiles(r.Tests),
		Unresolved: r.Unresolved(),
		Log:        r.Log,
	}
}

func testFiles(pairs []models.TestPairing) []string {
	var out []string
	for _, p := range pairs {
		out = append(out, p.TestFile)
	}
	return out
}

func snapshotToOutput(snap models.RunSnapshot) runOutput {
	if snap.Result != nil {
		out := resultToOutput(snap.Result)
		out.RunID = snap.RunID
		if out.Idea == "" {
			out.Idea = snap.Idea
		}
		return out
	}
	return runOutput{
		RunID:    snap.RunID,
		Idea:     snap.Idea,
		Status:   string(snap.Status),
		Progress: snap.LastProgress(),
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{FailuresByPhase: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
