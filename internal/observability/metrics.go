package observability

import (
	"fmt"
	"time"
)

// Metrics holds pipeline metrics derived from the event log.
type Metrics struct {
	RunsStarted         int            `json:"runs_started" yaml:"runs_started"`
	RunsSucceeded       int            `json:"runs_succeeded" yaml:"runs_succeeded"`
	RunsFailed          int            `json:"runs_failed" yaml:"runs_failed"`
	FailuresByPhase     map[string]int `json:"failures_by_phase" yaml:"failures_by_phase"`
	PlanParseFailures   int            `json:"plan_parse_failures" yaml:"plan_parse_failures"`
	ArtifactsGenerated  int            `json:"artifacts_generated" yaml:"artifacts_generated"`
	TestsGenerated      int            `json:"tests_generated" yaml:"tests_generated"`
	TestsPassed         int            `json:"tests_passed" yaml:"tests_passed"`
	TestsFailed         int            `json:"tests_failed" yaml:"tests_failed"`
	ArtifactsFixed      int            `json:"artifacts_fixed" yaml:"artifacts_fixed"`
	ArtifactsUnresolved int            `json:"artifacts_unresolved" yaml:"artifacts_unresolved"`
	EmptyGenerations    int            `json:"empty_generations" yaml:"empty_generations"`
	EmptyByPersona      map[string]int `json:"empty_by_persona" yaml:"empty_by_persona"`
	AvgRunDuration      time.Duration  `json:"avg_run_duration" yaml:"avg_run_duration"`
	EventCount          int            `json:"event_count" yaml:"event_count"`
	OldestEvent         *time.Time     `json:"oldest_event,omitempty" yaml:"oldest_event,omitempty"`
	NewestEvent         *time.Time     `json:"newest_event,omitempty" yaml:"newest_event,omitempty"`
}

// SuccessRate returns succeeded runs over finished runs, or 0 when no run
// has finished.
func (m *Metrics) SuccessRate() float64 {
	finished := m.RunsSucceeded + m.RunsFailed
	if finished == 0 {
		return 0
	}
	return float64(m.RunsSucceeded) / float64(finished)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		FailuresByPhase: make(map[string]int),
		EmptyByPersona:  make(map[string]int),
	}
	m.EventCount = len(events)

	var totalDuration time.Duration
	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "run.started":
			m.RunsStarted++
		case "run.completed":
			m.RunsSucceeded++
			totalDuration += time.Duration(numberField(event.Data, "duration_ms")) * time.Millisecond
		case "run.failed":
			m.RunsFailed++
			if phase, ok := event.Data["phase"].(string); ok && phase != "" {
				m.FailuresByPhase[phase]++
			}
		case "plan.parse_failed":
			m.PlanParseFailures++
		case "artifact.generated":
			m.ArtifactsGenerated++
		case "test.generated":
			m.TestsGenerated++
		case "test.passed":
			m.TestsPassed++
		case "test.failed":
			m.TestsFailed++
		case "artifact.fixed":
			m.ArtifactsFixed++
		case "artifact.unresolved":
			m.ArtifactsUnresolved++
		case "artifact.generation_empty":
			m.EmptyGenerations++
			if persona, ok := event.Data["persona"].(string); ok && persona != "" {
				m.EmptyByPersona[persona]++
			}
		}
	}

	if m.RunsSucceeded > 0 {
		m.AvgRunDuration = totalDuration / time.Duration(m.RunsSucceeded)
	}

	return m, nil
}

// numberField reads a numeric field that went through a JSON round trip
// (float64) or was set in memory (int, int64).
func numberField(data map[string]any, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
