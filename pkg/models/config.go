package models

import "time"

// ModelProvider selects the transport used to reach the generative model.
type ModelProvider string

const (
	ProviderHTTP      ModelProvider = "http"
	ProviderClaudeCLI ModelProvider = "claude-cli"
)

// ModelConfig holds model access settings.
type ModelConfig struct {
	Provider  ModelProvider `yaml:"provider" mapstructure:"provider"`
	Name      string        `yaml:"name" mapstructure:"name"`
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// PathsConfig holds filesystem locations, relative to the base path unless absolute.
type PathsConfig struct {
	OutputRoot    string `yaml:"output_root" mapstructure:"output_root"`
	KnowledgeBase string `yaml:"knowledge_base" mapstructure:"knowledge_base"`
	Prompts       string `yaml:"prompts" mapstructure:"prompts"`
	HistoryDB     string `yaml:"history_db" mapstructure:"history_db"`
}

// RetrievalConfig tunes the knowledge-base context lookup.
type RetrievalConfig struct {
	TopK       int `yaml:"top_k" mapstructure:"top_k"`
	MaxSnippet int `yaml:"max_snippet" mapstructure:"max_snippet"`
}

// RepairConfig bounds the test-and-fix loop.
type RepairConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GlobalConfig holds system-wide settings read from .adtconfig via Viper.
type GlobalConfig struct {
	Model        ModelConfig       `yaml:"model" mapstructure:"model"`
	Paths        PathsConfig       `yaml:"paths" mapstructure:"paths"`
	Retrieval    RetrievalConfig   `yaml:"retrieval" mapstructure:"retrieval"`
	Repair       RepairConfig      `yaml:"repair" mapstructure:"repair"`
	TestCommands map[string]string `yaml:"test_commands" mapstructure:"test_commands"`
	ServerAddr   string            `yaml:"server_addr" mapstructure:"server_addr"`
	SlackWebhook string            `yaml:"slack_webhook" mapstructure:"slack_webhook"`
}
