// Package core contains the generation pipeline for AI Dev Team: configuration,
// knowledge retrieval, persona prompting, plan parsing, artifact sanitization
// and the orchestrator that sequences them into a run.
package core

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// ConfigurationManager defines the interface for loading and validating the
// global configuration (.adtconfig) and resolving model access credentials.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
	// ResolveAPIKey returns the model API key named by cfg.Model.APIKeyEnv,
	// looking at the process environment first and a .env file second.
	ResolveAPIKey(cfg *models.GlobalConfig) string
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Model: models.ModelConfig{
			Provider:  models.ProviderHTTP,
			Name:      "deepseek-chat",
			BaseURL:   "https://api.deepseek.com/v1",
			APIKeyEnv: "DEEPSEEK_API_KEY",
			Timeout:   120 * time.Second,
		},
		Paths: models.PathsConfig{
			OutputRoot:    ".",
			KnowledgeBase: "knowledge_base",
			Prompts:       "prompts",
			HistoryDB:     ".adt_history.db",
		},
		Retrieval: models.RetrievalConfig{
			TopK:       2,
			MaxSnippet: 1500,
		},
		Repair: models.RepairConfig{
			MaxAttempts: 2,
			Timeout:     60 * time.Second,
		},
		TestCommands: map[string]string{
			"py": "pytest {test} --maxfail=1 --disable-warnings -q",
		},
		ServerAddr: ":5000",
	}
}

// LoadGlobalConfig reads the .adtconfig file from the base path using Viper.
// If the file does not exist, defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".adtconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("model.provider", string(cfg.Model.Provider))
	v.SetDefault("model.name", cfg.Model.Name)
	v.SetDefault("model.base_url", cfg.Model.BaseURL)
	v.SetDefault("model.api_key_env", cfg.Model.APIKeyEnv)
	v.SetDefault("model.timeout", cfg.Model.Timeout)
	v.SetDefault("paths.output_root", cfg.Paths.OutputRoot)
	v.SetDefault("paths.knowledge_base", cfg.Paths.KnowledgeBase)
	v.SetDefault("paths.prompts", cfg.Paths.Prompts)
	v.SetDefault("paths.history_db", cfg.Paths.HistoryDB)
	v.SetDefault("retrieval.top_k", cfg.Retrieval.TopK)
	v.SetDefault("retrieval.max_snippet", cfg.Retrieval.MaxSnippet)
	v.SetDefault("repair.max_attempts", cfg.Repair.MaxAttempts)
	v.SetDefault("repair.timeout", cfg.Repair.Timeout)
	v.SetDefault("server.addr", cfg.ServerAddr)
	v.SetDefault("notifications.slack.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .adtconfig: %w", err)
	}

	cfg.Model.Provider = models.ModelProvider(v.GetString("model.provider"))
	cfg.Model.Name = v.GetString("model.name")
	cfg.Model.BaseURL = v.GetString("model.base_url")
	cfg.Model.APIKeyEnv = v.GetString("model.api_key_env")
	cfg.Model.Timeout = v.GetDuration("model.timeout")
	cfg.Paths.OutputRoot = v.GetString("paths.output_root")
	cfg.Paths.KnowledgeBase = v.GetString("paths.knowledge_base")
	cfg.Paths.Prompts = v.GetString("paths.prompts")
	cfg.Paths.HistoryDB = v.GetString("paths.history_db")
	cfg.Retrieval.TopK = v.GetInt("retrieval.top_k")
	cfg.Retrieval.MaxSnippet = v.GetInt("retrieval.max_snippet")
	cfg.Repair.MaxAttempts = v.GetInt("repair.max_attempts")
	cfg.Repair.Timeout = v.GetDuration("repair.timeout")
	cfg.ServerAddr = v.GetString("server.addr")
	cfg.SlackWebhook = v.GetString("notifications.slack.webhook_url")

	// Configured test commands extend the defaults rather than replace them.
	for ext, command := range v.GetStringMapString("test_commands") {
		cfg.TestCommands[strings.TrimPrefix(strings.ToLower(ext), ".")] = command
	}

	return cfg, nil
}

// ResolveAPIKey looks up the configured key variable in the environment and
// then in a .env file next to .adtconfig.
func (cm *viperConfigManager) ResolveAPIKey(cfg *models.GlobalConfig) string {
	if cfg == nil || cfg.Model.APIKeyEnv == "" {
		return ""
	}
	if key := strings.TrimSpace(os.Getenv(cfg.Model.APIKeyEnv)); key != "" {
		return key
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(cm.basePath, ".env"))
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return strings.TrimSpace(v.GetString(cfg.Model.APIKeyEnv))
}

var validProviders = map[models.ModelProvider]bool{
	models.ProviderHTTP:      true,
	models.ProviderClaudeCLI: true,
}

// ValidateConfig checks the configuration for invalid values and returns a
// single error listing every problem found.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validProviders[cfg.Model.Provider] {
		errs = append(errs, fmt.Sprintf(
			"model.provider %q is invalid, must be one of: http, claude-cli",
			cfg.Model.Provider,
		))
	}
	if cfg.Model.Provider == models.ProviderHTTP {
		if cfg.Model.BaseURL == "" {
			errs = append(errs, "model.base_url must not be empty for the http provider")
		}
		if cfg.Model.APIKeyEnv == "" {
			errs = append(errs, "model.api_key_env must not be empty for the http provider")
		}
	}
	if cfg.Model.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("model.timeout must be non-negative, got %s", cfg.Model.Timeout))
	}
	if cfg.Retrieval.TopK < 0 {
		errs = append(errs, fmt.Sprintf("retrieval.top_k must be non-negative, got %d", cfg.Retrieval.TopK))
	}
	if cfg.Retrieval.MaxSnippet <= 0 {
		errs = append(errs, fmt.Sprintf("retrieval.max_snippet must be positive, got %d", cfg.Retrieval.MaxSnippet))
	}
	if cfg.Repair.MaxAttempts < 1 || cfg.Repair.MaxAttempts > 5 {
		errs = append(errs, fmt.Sprintf(
			"repair.max_attempts %d is invalid, must be between 1 and 5",
			cfg.Repair.MaxAttempts,
		))
	}
	for ext, command := range cfg.TestCommands {
		if !strings.Contains(command, "{test}") {
			errs = append(errs, fmt.Sprintf("test_commands.%s %q must contain {test} placeholder", ext, command))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("global config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// ModelAccess verifies that the pipeline can reach a model before any side
// effects happen. It is the Configure step of a run.
type ModelAccess interface {
	Check() error
}

// NewModelAccess returns a ModelAccess for the configured provider.
func NewModelAccess(cm ConfigurationManager, cfg *models.GlobalConfig) ModelAccess {
	return &modelAccess{cm: cm, cfg: cfg}
}

type modelAccess struct {
	cm  ConfigurationManager
	cfg *models.GlobalConfig
}

func (m *modelAccess) Check() error {
	if err := m.cm.ValidateConfig(m.cfg); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	switch m.cfg.Model.Provider {
	case models.ProviderClaudeCLI:
		if _, err := exec.LookPath("claude"); err != nil {
			return &ConfigError{Reason: "claude CLI not found on PATH"}
		}
	default:
		if m.cm.ResolveAPIKey(m.cfg) == "" {
			return &ConfigError{Reason: fmt.Sprintf("%s not found in environment or .env file", m.cfg.Model.APIKeyEnv)}
		}
	}
	return nil
}
