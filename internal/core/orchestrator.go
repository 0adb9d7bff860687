package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// Fixed document names inside an output directory.
const (
	PRDFileName          = "prd.md"
	SystemDesignFileName = "system_design.md"
)

// DefaultMaxRepairAttempts bounds test executions per pairing when no other
// limit is configured.
const DefaultMaxRepairAttempts = 2

// OrchestratorConfig holds the tunables of a pipeline run.
type OrchestratorConfig struct {
	OutputRoot        string
	TopK              int
	MaxRepairAttempts int
}

// Orchestrator drives one idea through the persona pipeline.
type Orchestrator interface {
	// Run executes every phase in order and returns the terminal result.
	// Progress and the result are also delivered to sink, which may be nil.
	Run(ctx context.Context, runID, idea string, sink RunSink) *models.RunResult
}

type orchestrator struct {
	cfg       OrchestratorConfig
	access    ModelAccess
	retriever KnowledgeRetriever
	invoker   PersonaInvoker
	runner    TestRunner
	logger    EventLogger
}

// NewOrchestrator creates an Orchestrator with all dependencies injected.
// access, retriever and logger may be nil.
func NewOrchestrator(cfg OrchestratorConfig, access ModelAccess, retriever KnowledgeRetriever, invoker PersonaInvoker, runner TestRunner, logger EventLogger) Orchestrator {
	if cfg.MaxRepairAttempts <= 0 {
		cfg.MaxRepairAttempts = DefaultMaxRepairAttempts
	}
	return &orchestrator{
		cfg:       cfg,
		access:    access,
		retriever: retriever,
		invoker:   invoker,
		runner:    runner,
		logger:    logger,
	}
}

// run is the mutable state of a single execution. It never leaves the
// goroutine that called Run until the result is handed back.
type run struct {
	o      *orchestrator
	ctx    context.Context
	sink   RunSink
	result *models.RunResult
	outDir string
	start  time.Time

	prd    string
	design string
}

func (o *orchestrator) Run(ctx context.Context, runID, idea string, sink RunSink) *models.RunResult {
	r := &run{
		o:      o,
		ctx:    ctx,
		sink:   sink,
		result: &models.RunResult{RunID: runID, Idea: idea, Status: models.RunRunning, Log: []string{}},
		start:  time.Now(),
	}
	logEvent(o.logger, EventRunStarted, map[string]any{"run_id": runID, "idea": idea})

	result := r.execute(idea)
	if sink != nil {
		sink.Complete(runID, result)
	}
	return result
}

func (r *run) execute(idea string) *models.RunResult {
	r.phase("configure", "Checking model access...")
	if r.o.access != nil {
		if err := r.o.access.Check(); err != nil {
			r.progress("Error: " + err.Error())
			return r.fail(err.Error(), "configure")
		}
	}

	r.phase("plan", "Creating project directory...")
	r.outDir = filepath.Join(r.o.cfg.OutputRoot, ProjectSlug(idea))
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		msg := fmt.Sprintf("creating output directory %s: %v", r.outDir, err)
		r.progress("Error: " + msg)
		return r.fail(msg, "plan")
	}
	unlock, err := lockProject(r.outDir, func() {
		r.progress("Waiting for another run writing to the same project...")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	} else {
		defer unlock()
	}

	r.phase("design", "Generating PRD...")
	ideaPrompt := idea
	if r.o.retriever != nil {
		ideaPrompt = AugmentIdea(idea, r.o.retriever.Retrieve(idea, r.o.cfg.TopK))
	}
	r.prd = r.invoke(PersonaProductManager, PRDFileName, map[string]string{"user_idea": ideaPrompt})
	if path, ok := r.writeDocument(PRDFileName, r.prd); ok {
		r.logf("PRD saved to '%s'", path)
	}

	r.progress("Generating System Design...")
	r.design = r.invoke(PersonaArchitect, SystemDesignFileName, map[string]string{"prd_content": r.prd})
	if path, ok := r.writeDocument(SystemDesignFileName, r.design); ok {
		r.logf("System Design saved to '%s'", path)
	}

	r.phase("decompose", "Breaking down tasks...")
	raw := r.invoke(PersonaProjectManager, "task plan", map[string]string{
		"prd_content":   r.prd,
		"system_design": r.design,
	})
	tasks, err := ParseTaskPlan(raw)
	if err != nil {
		r.logf("Failed to parse task JSON. Output was:\n%s", raw)
		r.progress("Failed to parse task JSON.")
		logEvent(r.o.logger, EventPlanParseFailed, map[string]any{
			"run_id": r.result.RunID,
			"error":  err.Error(),
		})
		return r.fail(err.Error(), "decompose")
	}
	r.logf("Parsed %d tasks.", len(tasks))

	generated := r.generate(tasks)
	pairings := r.generateTests(generated)
	r.repair(pairings)

	r.progress("Project generation complete!")
	r.logf("Project generation complete!")
	r.result.Status = models.RunSuccess
	r.result.OutputDir = r.outDir
	logEvent(r.o.logger, EventRunCompleted, map[string]any{
		"run_id":      r.result.RunID,
		"output_dir":  r.outDir,
		"generated":   len(r.result.Generated),
		"tests":       len(r.result.Tests),
		"unresolved":  len(r.result.Unresolved()),
		"duration_ms": time.Since(r.start).Milliseconds(),
	})
	return r.result
}

// generate writes one artifact per task in plan order.
func (r *run) generate(tasks []models.Task) []string {
	r.phase("generate", "Generating code files...")
	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		r.progress(fmt.Sprintf("Generating %s...", task.FileName))
		code := r.invoke(PersonaEngineer, task.FileName, map[string]string{
			"file_name":        task.FileName,
			"task_description": task.TaskDescription,
			"prd_content":      r.prd,
			"system_design":    r.design,
		})
		code = Sanitize(StripCodeFence(code), task.FileName)

		if err := r.writeFile(task.FileName, code); err != nil {
			r.logf("Could not write %s: %v", task.FileName, err)
			continue
		}
		if !seen[task.FileName] {
			seen[task.FileName] = true
			r.result.Generated = append(r.result.Generated, task.FileName)
		}
		r.logf("%s generated.", task.FileName)
		logEvent(r.o.logger, EventArtifactGenerated, map[string]any{
			"run_id": r.result.RunID,
			"file":   task.FileName,
			"bytes":  len(code),
		})
	}
	return r.result.Generated
}

// generateTests writes one test file per readable artifact.
func (r *run) generateTests(generated []string) []models.TestPairing {
	r.phase("test_generation", "Generating unit tests...")
	for _, fileName := range generated {
		code, err := r.readFile(fileName)
		if err != nil {
			r.logf("Could not read %s: %v", fileName, err)
			continue
		}

		r.progress(fmt.Sprintf("Generating test for %s...", fileName))
		testName := TestFileName(fileName)
		testCode := r.invoke(PersonaQAEngineer, testName, map[string]string{
			"file_name":     fileName,
			"prd_content":   r.prd,
			"system_design": r.design,
			"file_code":     code,
		})
		testCode = StripCodeFence(testCode)

		if err := r.writeFile(testName, testCode); err != nil {
			r.logf("Could not write %s: %v", testName, err)
			continue
		}
		r.result.Tests = append(r.result.Tests, models.TestPairing{ArtifactFile: fileName, TestFile: testName})
		r.logf("%s generated.", testName)
		logEvent(r.o.logger, EventTestGenerated, map[string]any{
			"run_id":   r.result.RunID,
			"file":     fileName,
			"test":     testName,
			"bytes":    len(testCode),
			"is_empty": testCode == "",
		})
	}
	return r.result.Tests
}

// repair runs each pairing's test up to the attempt limit, asking the fixer
// to rewrite the artifact between failed attempts.
func (r *run) repair(pairings []models.TestPairing) {
	r.phase("repair", "Running tests and fixing code if needed...")
	limit := r.o.cfg.MaxRepairAttempts
	for _, p := range pairings {
		record := models.RepairRecord{ArtifactFile: p.ArtifactFile, Outcome: models.FixUnresolved}

		for attempt := 1; attempt <= limit; attempt++ {
			r.progress(fmt.Sprintf("Testing %s (attempt %d)...", p.ArtifactFile, attempt))
			record.Attempts = attempt
			passed, diagnostic := r.o.runner.Run(r.ctx, filepath.FromSlash(p.TestFile), r.outDir)
			if passed {
				record.Outcome = models.FixPassed
				r.logf("Tests passed for %s!", p.ArtifactFile)
				logEvent(r.o.logger, EventTestPassed, map[string]any{
					"run_id":  r.result.RunID,
					"file":    p.ArtifactFile,
					"attempt": attempt,
				})
				if attempt > 1 {
					logEvent(r.o.logger, EventArtifactFixed, map[string]any{
						"run_id":   r.result.RunID,
						"file":     p.ArtifactFile,
						"attempts": attempt,
					})
				}
				break
			}
			logEvent(r.o.logger, EventTestFailed, map[string]any{
				"run_id":  r.result.RunID,
				"file":    p.ArtifactFile,
				"attempt": attempt,
			})
			if attempt == limit {
				break
			}

			code, err := r.readFile(p.ArtifactFile)
			var testCode string
			if err == nil {
				testCode, err = r.readFile(p.TestFile)
			}
			if err != nil {
				r.logf("Could not read code or test for fixer: %v", err)
				record.Outcome = models.FixSkipped
				break
			}

			r.progress(fmt.Sprintf("Fixing %s...", p.ArtifactFile))
			fixed := r.invoke(PersonaCodeFixer, p.ArtifactFile, map[string]string{
				"file_name":     p.ArtifactFile,
				"file_code":     code,
				"test_code":     testCode,
				"error_message": diagnostic,
			})
			fixed = Sanitize(StripCodeFence(fixed), p.ArtifactFile)
			if err := r.writeFile(p.ArtifactFile, fixed); err != nil {
				r.logf("Could not write %s: %v", p.ArtifactFile, err)
				record.Outcome = models.FixSkipped
				break
			}
			r.logf("%s updated by Code Fixer.", p.ArtifactFile)
		}

		if record.Outcome == models.FixUnresolved {
			r.logf("Could not fix %s after %d attempts.", p.ArtifactFile, record.Attempts)
			logEvent(r.o.logger, EventArtifactUnresolved, map[string]any{
				"run_id":   r.result.RunID,
				"file":     p.ArtifactFile,
				"attempts": record.Attempts,
			})
		}
		r.result.Repairs = append(r.result.Repairs, record)
	}
}

// invoke calls a persona and folds transport failures into empty text. The
// failure is noted in the status log; an empty but successful response is
// only recorded as an event.
func (r *run) invoke(persona Persona, subject string, values map[string]string) string {
	text, err := r.o.invoker.Invoke(r.ctx, persona, values)
	if err != nil {
		r.logf("Model call failed for %s: %v", subject, err)
	}
	if text == "" {
		data := map[string]any{
			"run_id":  r.result.RunID,
			"persona": string(persona),
			"subject": subject,
		}
		if err != nil {
			data["error"] = err.Error()
		}
		logEvent(r.o.logger, EventGenerationEmpty, data)
	}
	return text
}

func (r *run) writeDocument(name, content string) (string, bool) {
	path := filepath.Join(r.outDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.logf("Could not write %s: %v", name, err)
		return path, false
	}
	return path, true
}

// writeFile replaces the content of a task-relative file, creating parent
// directories as needed.
func (r *run) writeFile(rel, content string) error {
	path, err := SafeJoin(r.outDir, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

func (r *run) readFile(rel string) (string, error) {
	path, err := SafeJoin(r.outDir, rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *run) phase(name, message string) {
	r.progress(message)
	logEvent(r.o.logger, EventPhaseStarted, map[string]any{
		"run_id": r.result.RunID,
		"phase":  name,
	})
}

func (r *run) progress(message string) {
	if r.sink != nil {
		r.sink.Progress(r.result.RunID, message)
	}
}

func (r *run) logf(format string, args ...any) {
	r.result.Log = append(r.result.Log, fmt.Sprintf(format, args...))
}

func (r *run) fail(message, phase string) *models.RunResult {
	r.result.Status = models.RunError
	r.result.Message = message
	if len(r.result.Log) == 0 || r.result.Log[len(r.result.Log)-1] != message {
		r.logf("%s", message)
	}
	logEvent(r.o.logger, EventRunFailed, map[string]any{
		"run_id": r.result.RunID,
		"phase":  phase,
		"error":  message,
	})
	return r.result
}
