package models

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunResult is what the pipeline hands back to its caller once a run has
// reached a terminal state. OutputDir is only set on success.
type RunResult struct {
	RunID     string         `json:"run_id" yaml:"run_id"`
	Idea      string         `json:"idea" yaml:"idea"`
	Status    RunStatus      `json:"status" yaml:"status"`
	Message   string         `json:"message,omitempty" yaml:"message,omitempty"`
	Log       []string       `json:"log" yaml:"log"`
	OutputDir string         `json:"project_dir,omitempty" yaml:"project_dir,omitempty"`
	Generated []string       `json:"generated,omitempty" yaml:"generated,omitempty"`
	Tests     []TestPairing  `json:"tests,omitempty" yaml:"tests,omitempty"`
	Repairs   []RepairRecord `json:"repairs,omitempty" yaml:"repairs,omitempty"`
}

// Unresolved returns the artifacts the repair loop could not fix.
func (r *RunResult) Unresolved() []string {
	var out []string
	for _, rec := range r.Repairs {
		if rec.Outcome == FixUnresolved {
			out = append(out, rec.ArtifactFile)
		}
	}
	return out
}

// RunSnapshot is the latest observable state of a run, as kept by the
// in-memory registry while the run is in flight.
type RunSnapshot struct {
	RunID     string     `json:"run_id"`
	Idea      string     `json:"idea"`
	Status    RunStatus  `json:"status"`
	Progress  []string   `json:"progress,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// LastProgress returns the most recent progress message, or "".
func (s *RunSnapshot) LastProgress() string {
	if len(s.Progress) == 0 {
		return ""
	}
	return s.Progress[len(s.Progress)-1]
}

// HistoryEntry is one persisted run in the history store.
type HistoryEntry struct {
	RunID     string    `json:"session_id" yaml:"run_id"`
	Idea      string    `json:"prompt" yaml:"idea"`
	Status    RunStatus `json:"status" yaml:"status"`
	OutputDir string    `json:"project_dir,omitempty" yaml:"output_dir,omitempty"`
	CreatedAt time.Time `json:"timestamp" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}
