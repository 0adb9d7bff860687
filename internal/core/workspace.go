package core

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

//go:embed workspace_templates
var workspaceFS embed.FS

// InitConfig holds the parameters for initializing a workspace.
type InitConfig struct {
	BasePath  string
	Name      string
	Provider  models.ModelProvider
	Model     string
	BaseURL   string
	APIKeyEnv string
}

// InitResult holds a summary of what was created vs. skipped.
type InitResult struct {
	Created []string
	Skipped []string
}

// WorkspaceInitializer lays out a directory for adt: configuration, the
// knowledge base, prompt overrides and the project output root.
type WorkspaceInitializer interface {
	Init(config InitConfig) (*InitResult, error)
}

type workspaceInitializer struct{}

// NewWorkspaceInitializer creates a new WorkspaceInitializer.
func NewWorkspaceInitializer() WorkspaceInitializer {
	return &workspaceInitializer{}
}

// Init creates the workspace. It is safe to run on an existing workspace:
// files and directories that already exist are skipped and not overwritten.
func (wi *workspaceInitializer) Init(config InitConfig) (*InitResult, error) {
	config = withInitDefaults(config)
	result := &InitResult{}

	dirs := []string{
		config.BasePath,
		filepath.Join(config.BasePath, "knowledge_base"),
		filepath.Join(config.BasePath, "prompts"),
		filepath.Join(config.BasePath, "projects"),
	}
	for _, dir := range dirs {
		created, err := ensureDir(dir)
		if err != nil {
			return nil, fmt.Errorf("initializing workspace: creating directory %s: %w", dir, err)
		}
		if created {
			result.Created = append(result.Created, dir)
		} else {
			result.Skipped = append(result.Skipped, dir)
		}
	}

	files := []struct {
		template string
		target   string
		render   bool
	}{
		{"adtconfig.yaml", ".adtconfig", true},
		{"gitignore", ".gitignore", false},
		{"env.example", ".env.example", true},
		{"prompts-readme.md", filepath.Join("prompts", "README.md"), false},
	}
	for _, f := range files {
		target := filepath.Join(config.BasePath, f.target)
		name := f.template
		contentFn := func() ([]byte, error) { return workspaceFS.ReadFile("workspace_templates/" + name) }
		if f.render {
			contentFn = func() ([]byte, error) { return renderWorkspaceTemplate(name, config) }
		}
		if err := writeFileIfNotExists(target, contentFn, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func withInitDefaults(config InitConfig) InitConfig {
	defaults := DefaultGlobalConfig().Model
	if config.Name == "" {
		config.Name = filepath.Base(config.BasePath)
	}
	if config.Provider == "" {
		config.Provider = defaults.Provider
	}
	if config.Model == "" {
		config.Model = defaults.Name
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.APIKeyEnv == "" {
		config.APIKeyEnv = defaults.APIKeyEnv
	}
	return config
}

// ensureDir creates a directory if it does not exist. Returns true if created.
func ensureDir(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return false, err
	}
	return true, nil
}

// writeFileIfNotExists writes content from contentFn if the file does not exist.
// It records created/skipped in the result.
func writeFileIfNotExists(path string, contentFn func() ([]byte, error), result *InitResult) error {
	if _, err := os.Stat(path); err == nil {
		result.Skipped = append(result.Skipped, path)
		return nil
	}
	content, err := contentFn()
	if err != nil {
		return fmt.Errorf("initializing workspace: generating content for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("initializing workspace: writing %s: %w", path, err)
	}
	result.Created = append(result.Created, path)
	return nil
}

func renderWorkspaceTemplate(name string, data any) ([]byte, error) {
	raw, err := workspaceFS.ReadFile("workspace_templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
