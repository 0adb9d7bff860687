package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
	"gopkg.in/yaml.v3"
)

// withHistory points the package vars at a fresh sqlite history holding the
// given runs.
func withHistory(t *testing.T, results ...*models.RunResult) storage.HistoryStore {
	t.Helper()
	h, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}
	for _, r := range results {
		if err := h.Add(r.RunID, r.Idea); err != nil {
			t.Fatal(err)
		}
		if err := h.SaveResult(r); err != nil {
			t.Fatal(err)
		}
	}

	origHistory, origRegistry, origFormat := History, Registry, historyFormat
	t.Cleanup(func() {
		h.Close()
		History, Registry, historyFormat = origHistory, origRegistry, origFormat
	})
	History = h
	Registry = storage.NewResultRegistry(10)
	return h
}

func sampleRuns() []*models.RunResult {
	return []*models.RunResult{
		{RunID: "run-a", Idea: "a todo app", Status: models.RunSuccess, OutputDir: "/out/a_todo_app"},
		{RunID: "run-b", Idea: "a chat bot", Status: models.RunError, Message: "model unavailable"},
	}
}

func TestHistoryCmd_Table(t *testing.T) {
	withHistory(t, sampleRuns()...)
	historyFormat = "table"

	var out bytes.Buffer
	historyCmd.SetOut(&out)
	defer historyCmd.SetOut(nil)

	if err := historyCmd.RunE(historyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "RUN ID") || !strings.Contains(text, "a chat bot") {
		t.Errorf("table output:\n%s", text)
	}
	if strings.Index(text, "run-b") > strings.Index(text, "run-a") {
		t.Errorf("expected newest run first:\n%s", text)
	}
}

func TestHistoryCmd_JSONAndYAML(t *testing.T) {
	withHistory(t, sampleRuns()...)

	var out bytes.Buffer
	historyCmd.SetOut(&out)
	defer historyCmd.SetOut(nil)

	historyFormat = "json"
	if err := historyCmd.RunE(historyCmd, nil); err != nil {
		t.Fatal(err)
	}
	var entries []models.HistoryEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("json entries = %d", len(entries))
	}

	out.Reset()
	historyFormat = "yaml"
	if err := historyCmd.RunE(historyCmd, nil); err != nil {
		t.Fatal(err)
	}
	var raw []map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &raw); err != nil {
		t.Fatalf("yaml output: %v", err)
	}
	if len(raw) != 2 || raw[0]["run_id"] != "run-b" {
		t.Errorf("yaml entries = %v", raw)
	}

	historyFormat = "xml"
	if err := historyCmd.RunE(historyCmd, nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestHistoryShowCmd(t *testing.T) {
	withHistory(t, sampleRuns()...)
	historyFormat = "table"

	var out bytes.Buffer
	historyShowCmd.SetOut(&out)
	defer historyShowCmd.SetOut(nil)

	if err := historyShowCmd.RunE(historyShowCmd, []string{"run-b"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "model unavailable") {
		t.Errorf("show output:\n%s", out.String())
	}

	if err := historyShowCmd.RunE(historyShowCmd, []string{"missing"}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestHistoryDeleteAndClear(t *testing.T) {
	h := withHistory(t, sampleRuns()...)
	historyDeleteCmd.SetOut(&bytes.Buffer{})
	historyClearCmd.SetOut(&bytes.Buffer{})
	defer historyDeleteCmd.SetOut(nil)
	defer historyClearCmd.SetOut(nil)

	if err := historyDeleteCmd.RunE(historyDeleteCmd, []string{"run-a"}); err != nil {
		t.Fatal(err)
	}
	if entries, _ := h.List(); len(entries) != 1 {
		t.Errorf("entries after delete = %d, want 1", len(entries))
	}

	origYes := historyYes
	defer func() { historyYes = origYes }()
	historyYes = false
	if err := historyClearCmd.RunE(historyClearCmd, nil); err == nil {
		t.Error("expected clear to require --yes")
	}
	historyYes = true
	if err := historyClearCmd.RunE(historyClearCmd, nil); err != nil {
		t.Fatal(err)
	}
	if entries, _ := h.List(); len(entries) != 0 {
		t.Errorf("entries after clear = %d, want 0", len(entries))
	}
}

func TestListHistory_FallsBackToRegistry(t *testing.T) {
	origHistory, origRegistry := History, Registry
	defer func() { History, Registry = origHistory, origRegistry }()

	History = nil
	Registry = storage.NewResultRegistry(10)
	Registry.Start("r1", "in memory")

	entries, err := listHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Idea != "in memory" || entries[0].Status != models.RunRunning {
		t.Errorf("entries = %+v", entries)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a   very\nlong idea", 8); got != "a very …" {
		t.Errorf("truncate long = %q", got)
	}
}
