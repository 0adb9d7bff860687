package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire. Counts are taken over
// the trailing window.
type AlertThresholds struct {
	WindowHours         int `yaml:"window_hours" json:"window_hours"`
	MaxFailedRuns       int `yaml:"max_failed_runs" json:"max_failed_runs"`
	MaxUnresolved       int `yaml:"max_unresolved_artifacts" json:"max_unresolved_artifacts"`
	MaxEmptyGenerations int `yaml:"max_empty_generations" json:"max_empty_generations"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		WindowHours:         24,
		MaxFailedRuns:       3,
		MaxUnresolved:       5,
		MaxEmptyGenerations: 5,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate counts failure events inside the window and returns an alert for
// every count above its threshold.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	since := now.Add(-time.Duration(ae.thresholds.WindowHours) * time.Hour)

	events, err := ae.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}

	counts := make(map[string]int)
	for _, event := range events {
		counts[event.Type]++
	}

	checks := []struct {
		eventType string
		limit     int
		condition string
		severity  AlertSeverity
		what      string
	}{
		{"run.failed", ae.thresholds.MaxFailedRuns, "runs_failing", SeverityHigh, "runs failed"},
		{"artifact.unresolved", ae.thresholds.MaxUnresolved, "artifacts_unresolved", SeverityMedium, "artifacts could not be fixed"},
		{"artifact.generation_empty", ae.thresholds.MaxEmptyGenerations, "model_returning_empty", SeverityMedium, "model calls returned no text"},
	}

	var alerts []Alert
	for _, c := range checks {
		n := counts[c.eventType]
		if n <= c.limit {
			continue
		}
		alerts = append(alerts, Alert{
			ID:        c.condition,
			Condition: c.condition,
			Severity:  c.severity,
			Message: fmt.Sprintf("%d %s in the last %d hours (threshold %d)",
				n, c.what, ae.thresholds.WindowHours, c.limit),
			TriggeredAt: now,
		})
	}

	return alerts, nil
}
