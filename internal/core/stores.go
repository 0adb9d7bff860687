package core

import (
	"context"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// RunSink receives progress and the final result of runs. Implementations
// must accept concurrent calls for distinct run IDs.
// This interface is defined locally in core to avoid importing storage.
type RunSink interface {
	Progress(runID, message string)
	Complete(runID string, result *models.RunResult)
}

// ProgressFunc adapts a plain callback to RunSink. Complete is a no-op.
type ProgressFunc func(message string)

func (f ProgressFunc) Progress(_ string, message string) {
	if f != nil {
		f(message)
	}
}

func (f ProgressFunc) Complete(string, *models.RunResult) {}

// MultiSink fans every call out to each sink in order.
type MultiSink []RunSink

func (m MultiSink) Progress(runID, message string) {
	for _, s := range m {
		if s != nil {
			s.Progress(runID, message)
		}
	}
}

func (m MultiSink) Complete(runID string, result *models.RunResult) {
	for _, s := range m {
		if s != nil {
			s.Complete(runID, result)
		}
	}
}

// RunRegistrar is implemented by sinks that track a run from the moment it
// is launched, before the first progress message.
type RunRegistrar interface {
	Start(runID, idea string)
}

// Start forwards to every sink that implements RunRegistrar.
func (m MultiSink) Start(runID, idea string) {
	for _, s := range m {
		if r, ok := s.(RunRegistrar); ok {
			r.Start(runID, idea)
		}
	}
}

// TestRunner executes one test file inside a working directory.
// This interface is defined locally in core to avoid importing integration.
type TestRunner interface {
	// Run reports whether the test passed along with its combined output.
	// Launch failures come back as passed=false with the error text.
	Run(ctx context.Context, testFile, workDir string) (passed bool, diagnostic string)
}
