package core

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// RunRecorder persists run history.
// This interface is defined locally in core to avoid importing storage.
type RunRecorder interface {
	Add(runID, idea string) error
	SaveResult(result *models.RunResult) error
}

// RunNotifier announces finished runs.
// This interface is defined locally in core to avoid importing observability.
type RunNotifier interface {
	NotifyRun(result *models.RunResult) error
}

// RunLauncher starts pipeline runs and records them. It is shared by every
// surface (CLI, HTTP, MCP) so runs look the same wherever they come from.
type RunLauncher interface {
	// Run executes one run on the calling goroutine. An empty runID gets a
	// fresh one. sink receives this run's progress in addition to the
	// launcher's own sinks and may be nil.
	Run(ctx context.Context, runID, idea string, sink RunSink) *models.RunResult
	// Start launches a run on its own goroutine and returns its ID at once.
	Start(ctx context.Context, idea string) string
	// Wait blocks until every run launched with Start has finished.
	Wait()
}

type runLauncher struct {
	pipeline Orchestrator
	sink     RunSink
	recorder RunRecorder
	notifier RunNotifier
	wg       sync.WaitGroup
}

// NewRunLauncher creates a RunLauncher. sink, recorder and notifier may be nil.
func NewRunLauncher(pipeline Orchestrator, sink RunSink, recorder RunRecorder, notifier RunNotifier) RunLauncher {
	return &runLauncher{pipeline: pipeline, sink: sink, recorder: recorder, notifier: notifier}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func (l *runLauncher) Run(ctx context.Context, runID, idea string, sink RunSink) *models.RunResult {
	if runID == "" {
		runID = NewRunID()
	}
	if l.recorder != nil {
		if err := l.recorder.Add(runID, idea); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording run %s: %v\n", runID, err)
		}
	}

	result := l.pipeline.Run(ctx, runID, idea, MultiSink{l.sink, sink})

	if l.recorder != nil {
		if err := l.recorder.SaveResult(result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: saving result of run %s: %v\n", runID, err)
		}
	}
	if l.notifier != nil {
		if err := l.notifier.NotifyRun(result); err != nil {
			fmt.Fprintf(os.Stderr, "warning: notifying run %s: %v\n", runID, err)
		}
	}
	return result
}

func (l *runLauncher) Start(ctx context.Context, idea string) string {
	runID := NewRunID()
	// Register the run before the goroutine starts so a status request right
	// after Start already finds it.
	if r, ok := l.sink.(RunRegistrar); ok {
		r.Start(runID, idea)
	}
	if l.sink != nil {
		l.sink.Progress(runID, "Processing...")
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Run(ctx, runID, idea, nil)
	}()
	return runID
}

func (l *runLauncher) Wait() {
	l.wg.Wait()
}
