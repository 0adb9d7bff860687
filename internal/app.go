// Package internal provides the App struct that wires all components of the
// AI Dev Team system together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/ai-dev-team/internal/cli"
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/internal/integration"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// EventLogFile and ConfigFile live directly under the base path.
const (
	EventLogFile = ".adt_events.jsonl"
	ConfigFile   = ".adtconfig"
)

// App holds all service dependencies for the AI Dev Team system.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Pipeline
	Templates core.TemplateManager
	Retriever core.KnowledgeRetriever
	Model     core.ModelClient
	Invoker   core.PersonaInvoker
	Access    core.ModelAccess
	Pipeline  core.Orchestrator
	Launcher  core.RunLauncher

	// Integration services
	Executor   integration.CLIExecutor
	TestRunner integration.TestRunner

	// Storage layer
	Registry *storage.ResultRegistry
	History  storage.HistoryStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Bus         *observability.EventBus
}

// NewApp creates and wires all components of the AI Dev Team system.
// basePath is the directory holding .adtconfig, the knowledge base, prompt
// overrides and run history.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (using defaults)\n", err)
		globalCfg = core.DefaultGlobalConfig()
	}
	app.Config = globalCfg

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFile))
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		fmt.Fprintf(os.Stderr, "warning: event log disabled: %v\n", err)
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if globalCfg.SlackWebhook != "" {
		app.Notifier = observability.NewSlackNotifier(globalCfg.SlackWebhook)
	}
	app.Bus = observability.NewEventBus()

	// --- Storage layer ---
	app.Registry = storage.NewResultRegistry(storage.DefaultRegistrySize)
	app.History, err = storage.NewHistoryStore(resolvePath(basePath, globalCfg.Paths.HistoryDB))
	if err != nil {
		// Non-fatal: runs still work, they are just not remembered.
		fmt.Fprintf(os.Stderr, "warning: run history disabled: %v\n", err)
		app.History = nil
	}

	// --- Integration services ---
	app.Executor = integration.NewCLIExecutor()
	app.TestRunner = integration.NewTestRunner(app.Executor, globalCfg.TestCommands, globalCfg.Repair.Timeout)

	// --- Pipeline ---
	app.Templates, err = core.NewTemplateManager(resolvePath(basePath, globalCfg.Paths.Prompts))
	if err != nil {
		return nil, fmt.Errorf("loading persona templates: %w", err)
	}
	app.Retriever = core.NewKnowledgeRetriever(resolvePath(basePath, globalCfg.Paths.KnowledgeBase), globalCfg.Retrieval.MaxSnippet)

	app.Access = core.NewModelAccess(app.ConfigMgr, globalCfg)
	switch globalCfg.Model.Provider {
	case models.ProviderClaudeCLI:
		app.Model = integration.NewClaudeCLIModelClient(app.Executor, "claude", globalCfg.Model.Name, globalCfg.Model.Timeout)
		app.Access = &cliVersionAccess{
			base:    app.Access,
			checker: integration.NewCLIVersionChecker(app.Executor, "claude"),
		}
	default:
		app.Model = integration.NewHTTPModelClient(
			globalCfg.Model.BaseURL,
			globalCfg.Model.Name,
			app.ConfigMgr.ResolveAPIKey(globalCfg),
			globalCfg.Model.Timeout,
		)
	}
	app.Invoker = core.NewPersonaInvoker(app.Templates, app.Model)

	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}
	app.Pipeline = core.NewOrchestrator(
		core.OrchestratorConfig{
			OutputRoot:        resolvePath(basePath, globalCfg.Paths.OutputRoot),
			TopK:              globalCfg.Retrieval.TopK,
			MaxRepairAttempts: globalCfg.Repair.MaxAttempts,
		},
		app.Access,
		app.Retriever,
		app.Invoker,
		app.TestRunner,
		evtAdapter,
	)

	var recorder core.RunRecorder
	if app.History != nil {
		recorder = app.History
	}
	var notifier core.RunNotifier
	if app.Notifier != nil {
		notifier = app.Notifier
	}
	app.Launcher = core.NewRunLauncher(app.Pipeline, core.MultiSink{app.Registry, app.Bus}, recorder, notifier)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = globalCfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Launcher = app.Launcher
	cli.Registry = app.Registry
	cli.History = app.History
	cli.Bus = app.Bus
	cli.Templates = app.Templates
	cli.TestRunner = app.TestRunner
	cli.WorkspaceInit = core.NewWorkspaceInitializer()

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close releases resources held by the App: the history database and the
// event log file handle. It is safe to call Close when either is nil.
func (a *App) Close() error {
	var errs []error
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the base path for the AI Dev Team data directory.
// It checks the ADT_HOME env var, then walks up from the current directory
// looking for .adtconfig, and falls back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("ADT_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   observability.LevelForEventType(eventType),
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}

// cliVersionAccess extends a ModelAccess check with a minimum claude CLI
// version, since older releases lack stream-json output.
type cliVersionAccess struct {
	base    core.ModelAccess
	checker integration.CLIVersionChecker
}

func (a *cliVersionAccess) Check() error {
	if err := a.base.Check(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.checker.CheckMinimumVersion(ctx, integration.MinStreamJSONVersion); err != nil {
		return &core.ConfigError{Reason: err.Error()}
	}
	return nil
}
