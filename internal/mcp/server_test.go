package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// --- Fake implementations ---

type fakeLauncher struct {
	mu       sync.Mutex
	registry *storage.ResultRegistry
	started  []string
	ran      []string
}

func (f *fakeLauncher) Run(_ context.Context, runID, idea string, _ core.RunSink) *models.RunResult {
	f.mu.Lock()
	f.ran = append(f.ran, idea)
	f.mu.Unlock()
	if runID == "" {
		runID = "sync-run"
	}
	result := &models.RunResult{
		RunID:     runID,
		Idea:      idea,
		Status:    models.RunSuccess,
		OutputDir: "/out/" + runID,
		Generated: []string{"app.py"},
		Tests:     []models.TestPairing{{ArtifactFile: "app.py", TestFile: "test_app.py"}},
		Repairs:   []models.RepairRecord{{ArtifactFile: "app.py", Attempts: 3, Outcome: models.FixUnresolved}},
	}
	f.registry.Complete(runID, result)
	return result
}

func (f *fakeLauncher) Start(_ context.Context, idea string) string {
	f.mu.Lock()
	f.started = append(f.started, idea)
	f.mu.Unlock()
	f.registry.Start("async-run", idea)
	f.registry.Progress("async-run", "Generating PRD...")
	return "async-run"
}

func (f *fakeLauncher) Wait() {}

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

func newTestServer(t *testing.T, mc observability.MetricsCalculator, ae observability.AlertEngine) (*Server, *fakeLauncher) {
	t.Helper()
	registry := storage.NewResultRegistry(10)
	launcher := &fakeLauncher{registry: registry}
	return NewServer(launcher, registry, nil, mc, ae, "test"), launcher
}

// callTool is a helper that connects a client to the server and calls a tool.
// It returns nil when the call fails at the protocol level (e.g. schema
// validation).
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil
	}
	return result
}

// decodeOutput reads the tool output from structured content, falling back
// to the text content.
func decodeOutput[T any](t *testing.T, result *gomcp.CallToolResult) T {
	t.Helper()
	var out T
	if result.StructuredContent != nil {
		data, _ := json.Marshal(result.StructuredContent)
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshalling structured output: %v", err)
		}
		return out
	}
	text := extractText(result)
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("unmarshalling output: %v (text was: %s)", err, text)
	}
	return out
}

// --- Tests ---

func TestGenerateProjectStartsRun(t *testing.T) {
	srv, launcher := newTestServer(t, nil, nil)

	result := callTool(t, srv, "generate_project", map[string]any{"idea": "a url shortener"})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}

	out := decodeOutput[runOutput](t, result)
	if out.RunID != "async-run" || out.Status != string(models.RunRunning) {
		t.Errorf("output = %+v", out)
	}
	if len(launcher.started) != 1 || launcher.started[0] != "a url shortener" {
		t.Errorf("started = %v", launcher.started)
	}
}

func TestGenerateProjectWait(t *testing.T) {
	srv, launcher := newTestServer(t, nil, nil)

	result := callTool(t, srv, "generate_project", map[string]any{"idea": "a blog", "wait": true})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}

	out := decodeOutput[runOutput](t, result)
	if out.Status != string(models.RunSuccess) || out.ProjectDir != "/out/sync-run" {
		t.Errorf("output = %+v", out)
	}
	if len(out.Tests) != 1 || out.Tests[0] != "test_app.py" {
		t.Errorf("tests = %v", out.Tests)
	}
	if len(out.Unresolved) != 1 || out.Unresolved[0] != "app.py" {
		t.Errorf("unresolved = %v", out.Unresolved)
	}
	if len(launcher.ran) != 1 || len(launcher.started) != 0 {
		t.Errorf("ran = %v started = %v", launcher.ran, launcher.started)
	}
}

func TestGenerateProjectBlankIdea(t *testing.T) {
	srv, launcher := newTestServer(t, nil, nil)

	result := callTool(t, srv, "generate_project", map[string]any{"idea": "   "})
	if result == nil {
		t.Fatal("expected a tool error result, got protocol error")
	}
	if !result.IsError {
		t.Fatal("expected error result for blank idea")
	}
	if len(launcher.started) != 0 {
		t.Errorf("started = %v", launcher.started)
	}
}

func TestGetRunRunning(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	callTool(t, srv, "generate_project", map[string]any{"idea": "x"})

	result := callTool(t, srv, "get_run", map[string]any{"run_id": "async-run"})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}

	out := decodeOutput[runOutput](t, result)
	if out.Status != string(models.RunRunning) || out.Progress != "Generating PRD..." {
		t.Errorf("output = %+v", out)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_run", map[string]any{"run_id": "missing"})
	if result == nil || !result.IsError {
		t.Fatal("expected error result for unknown run")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result content")
	}
}

func TestGetRunMissingID(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	// The SDK validates required fields at the schema level, so the call
	// may be rejected before it reaches the handler.
	result := callTool(t, srv, "get_run", map[string]any{})
	if result == nil {
		return
	}
	if !result.IsError {
		t.Fatal("expected error result for missing run_id")
	}
}

func TestGetRunFromHistory(t *testing.T) {
	history, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}
	defer history.Close()

	if err := history.Add("old-run", "a game"); err != nil {
		t.Fatal(err)
	}
	if err := history.SaveResult(&models.RunResult{RunID: "old-run", Idea: "a game", Status: models.RunError, Message: "plan parse failed"}); err != nil {
		t.Fatal(err)
	}

	registry := storage.NewResultRegistry(10)
	srv := NewServer(&fakeLauncher{registry: registry}, registry, history, nil, nil, "test")

	result := callTool(t, srv, "get_run", map[string]any{"run_id": "old-run"})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}
	out := decodeOutput[runOutput](t, result)
	if out.Status != string(models.RunError) || out.Message != "plan parse failed" || out.Idea != "a game" {
		t.Errorf("output = %+v", out)
	}

	result = callTool(t, srv, "list_runs", map[string]any{})
	list := decodeOutput[listRunsOutput](t, result)
	if list.Count != 1 || list.Runs[0].RunID != "old-run" {
		t.Errorf("list = %+v", list)
	}
}

func TestListRunsLimit(t *testing.T) {
	srv, launcher := newTestServer(t, nil, nil)
	for _, id := range []string{"a", "b", "c"} {
		launcher.Run(context.Background(), id, "idea "+id, nil)
	}

	result := callTool(t, srv, "list_runs", map[string]any{"limit": 2})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}
	out := decodeOutput[listRunsOutput](t, result)
	if out.Count != 2 || len(out.Runs) != 2 {
		t.Errorf("expected 2 runs, got %+v", out)
	}
}

func TestGetMetrics(t *testing.T) {
	now := time.Now().UTC()
	mc := &fakeMetricsCalculator{
		metrics: &observability.Metrics{
			RunsStarted:     5,
			RunsSucceeded:   3,
			RunsFailed:      1,
			FailuresByPhase: map[string]int{"plan": 1},
			TestsPassed:     7,
			AvgRunDuration:  90 * time.Second,
			EventCount:      42,
			OldestEvent:     &now,
			NewestEvent:     &now,
		},
	}
	srv, _ := newTestServer(t, mc, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}

	m := decodeOutput[metricsOutput](t, result)
	if m.RunsStarted != 5 {
		t.Errorf("expected 5 runs started, got %d", m.RunsStarted)
	}
	if m.SuccessRate != 0.75 {
		t.Errorf("success rate = %v, want 0.75", m.SuccessRate)
	}
	if m.AvgRunDuration != "1m30s" {
		t.Errorf("avg run duration = %q", m.AvgRunDuration)
	}
	if m.EventCount != 42 {
		t.Errorf("expected 42 events, got %d", m.EventCount)
	}
}

func TestGetMetricsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_metrics", map[string]any{})
	if result == nil || !result.IsError {
		t.Fatal("expected error when metrics calculator is nil")
	}
	if extractText(result) == "" {
		t.Fatal("expected error message in result")
	}
}

func TestGetAlerts(t *testing.T) {
	now := time.Now().UTC()
	ae := &fakeAlertEngine{
		alerts: []observability.Alert{
			{
				ID:          "runs_failing",
				Condition:   "runs_failing",
				Severity:    observability.SeverityHigh,
				Message:     "4 runs failed in the last 24 hours (threshold 3)",
				TriggeredAt: now,
			},
		},
	}
	srv, _ := newTestServer(t, nil, ae)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result == nil || result.IsError {
		t.Fatalf("expected success, got %v", result)
	}

	out := decodeOutput[getAlertsOutput](t, result)
	if out.Count != 1 {
		t.Errorf("expected 1 alert, got %d", out.Count)
	}
	if len(out.Alerts) > 0 && out.Alerts[0].Severity != "high" {
		t.Errorf("expected high severity, got %s", out.Alerts[0].Severity)
	}
}

func TestGetAlertsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	result := callTool(t, srv, "get_alerts", map[string]any{})
	if result == nil || !result.IsError {
		t.Fatal("expected error when alert engine is nil")
	}
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"7d", false},
		{"30d", false},
		{"24h", false},
		{"1h", false},
		{"", true},
		{"x", true},
		{"7x", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseSince(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSince(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// extractText extracts the text from the first TextContent in a CallToolResult.
func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
