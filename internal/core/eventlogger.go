package core

import (
	"fmt"
	"os"
)

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Event types written by the pipeline.
const (
	EventRunStarted         = "run.started"
	EventRunCompleted       = "run.completed"
	EventRunFailed          = "run.failed"
	EventPhaseStarted       = "phase.started"
	EventArtifactGenerated  = "artifact.generated"
	EventGenerationEmpty    = "artifact.generation_empty"
	EventTestGenerated      = "test.generated"
	EventTestPassed         = "test.passed"
	EventTestFailed         = "test.failed"
	EventArtifactFixed      = "artifact.fixed"
	EventArtifactUnresolved = "artifact.unresolved"
	EventPlanParseFailed    = "plan.parse_failed"
)

// logEvent writes to l when it is set. Logging failures are reported on
// stderr and never interrupt a run.
func logEvent(l EventLogger, eventType string, data map[string]any) {
	if l == nil {
		return
	}
	if err := l.LogEvent(eventType, data); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging %s event: %v\n", eventType, err)
	}
}
