package core

import "fmt"

// ConfigError reports missing or invalid model access configuration. A run
// that hits it stops before touching the filesystem.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// PlanParseError reports that the project manager's task plan could not be
// decoded. Raw holds the model output exactly as received.
type PlanParseError struct {
	Raw   string
	Cause error
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("parsing task plan: %v", e.Cause)
}

func (e *PlanParseError) Unwrap() error {
	return e.Cause
}

// PathEscapeError reports a task file path that would land outside the
// output directory.
type PathEscapeError struct {
	Path string
}

func (e *PathEscapeError) Error() string {
	return fmt.Sprintf("file path %q escapes the output directory", e.Path)
}
