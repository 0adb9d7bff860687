package cli

import (
	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/internal/integration"
	"github.com/valter-silva-au/ai-dev-team/internal/observability"
	"github.com/valter-silva-au/ai-dev-team/internal/storage"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath   string
	Config     *models.GlobalConfig
	ConfigMgr  core.ConfigurationManager
	Launcher   core.RunLauncher
	Templates  core.TemplateManager
	TestRunner integration.TestRunner

	WorkspaceInit core.WorkspaceInitializer
)

// Storage instances. History is nil when the history database could not be
// opened.
var (
	Registry *storage.ResultRegistry
	History  storage.HistoryStore
)

// Observability service instances.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Bus         *observability.EventBus
)
