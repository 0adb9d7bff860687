package models

// Task is one row of a parsed task plan: a file to produce and what it
// should contain. Plan order is implementation order.
type Task struct {
	FileName        string `json:"file_name" yaml:"file_name"`
	TaskDescription string `json:"task_description" yaml:"task_description"`
}

// TestPairing links a generated artifact to the test file written for it.
// Both paths are relative to the run's output directory.
type TestPairing struct {
	ArtifactFile string `json:"artifact_file" yaml:"artifact_file"`
	TestFile     string `json:"test_file" yaml:"test_file"`
}

// FixOutcome records how the repair loop finished for one pairing.
type FixOutcome string

const (
	FixPassed     FixOutcome = "passed"
	FixUnresolved FixOutcome = "unresolved"
	FixSkipped    FixOutcome = "skipped"
)

// RepairRecord summarises the repair loop for a single artifact.
type RepairRecord struct {
	ArtifactFile string     `json:"artifact_file" yaml:"artifact_file"`
	Attempts     int        `json:"attempts" yaml:"attempts"`
	Outcome      FixOutcome `json:"outcome" yaml:"outcome"`
}
