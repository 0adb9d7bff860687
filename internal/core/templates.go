package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Persona names one fixed role in the generation pipeline.
type Persona string

const (
	PersonaProductManager Persona = "product_manager"
	PersonaArchitect      Persona = "architect"
	PersonaProjectManager Persona = "project_manager"
	PersonaEngineer       Persona = "engineer"
	PersonaQAEngineer     Persona = "qa_engineer"
	PersonaCodeFixer      Persona = "code_fixer"
)

// AllPersonas lists the personas in pipeline order.
var AllPersonas = []Persona{
	PersonaProductManager,
	PersonaArchitect,
	PersonaProjectManager,
	PersonaEngineer,
	PersonaQAEngineer,
	PersonaCodeFixer,
}

// PersonaOverlayFile is the optional YAML file in the prompts directory that
// maps persona names to template text.
const PersonaOverlayFile = "personas.yaml"

// TemplateManager resolves the prompt template for each persona.
type TemplateManager interface {
	GetTemplate(persona Persona) (string, error)
	RegisterTemplate(persona Persona, templatePath string) error
	Render(persona Persona, values map[string]string) (string, error)
}

// templateManager resolves templates in this order: a registered custom
// file, <dir>/<persona>.txt, the personas.yaml overlay, the built-in default.
type templateManager struct {
	dir             string
	customTemplates map[Persona]string
	overlay         map[Persona]string
}

// NewTemplateManager creates a TemplateManager reading overrides from dir.
// A malformed personas.yaml is reported as an error; a missing one is not.
func NewTemplateManager(dir string) (TemplateManager, error) {
	tm := &templateManager{
		dir:             dir,
		customTemplates: make(map[Persona]string),
		overlay:         make(map[Persona]string),
	}
	if dir == "" {
		return tm, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, PersonaOverlayFile))
	if err != nil {
		if os.IsNotExist(err) {
			return tm, nil
		}
		return nil, fmt.Errorf("reading %s: %w", PersonaOverlayFile, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PersonaOverlayFile, err)
	}
	for name, tmpl := range raw {
		tm.overlay[Persona(name)] = tmpl
	}
	return tm, nil
}

// GetTemplate returns the raw template for persona.
func (tm *templateManager) GetTemplate(persona Persona) (string, error) {
	if customPath, ok := tm.customTemplates[persona]; ok {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return "", fmt.Errorf("reading custom template %s: %w", customPath, err)
		}
		return string(data), nil
	}

	if tm.dir != "" {
		data, err := os.ReadFile(filepath.Join(tm.dir, string(persona)+".txt"))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s template: %w", persona, err)
		}
	}

	if tmpl, ok := tm.overlay[persona]; ok {
		return tmpl, nil
	}

	tmpl, ok := builtinPersonaTemplates[persona]
	if !ok {
		return "", fmt.Errorf("no template found for persona %q", persona)
	}
	return tmpl, nil
}

// RegisterTemplate registers a custom template file that overrides every
// other source for persona.
func (tm *templateManager) RegisterTemplate(persona Persona, templatePath string) error {
	absPath := templatePath
	if !filepath.IsAbs(templatePath) && tm.dir != "" {
		absPath = filepath.Join(tm.dir, templatePath)
	}

	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("custom template file %s: %w", absPath, err)
	}

	tm.customTemplates[persona] = absPath
	return nil
}

// Render resolves and formats the template for persona.
func (tm *templateManager) Render(persona Persona, values map[string]string) (string, error) {
	tmpl, err := tm.GetTemplate(persona)
	if err != nil {
		return "", err
	}
	return FormatTemplate(tmpl, values), nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// FormatTemplate substitutes {name} placeholders from values. Placeholders
// with no value are left untouched, so literal braces in code samples survive.
func FormatTemplate(tmpl string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

var builtinPersonaTemplates = map[Persona]string{
	PersonaProductManager: `You are an experienced product manager.
Write a concise Product Requirements Document in Markdown for the idea below.
Cover the problem, target users, core features, user stories and acceptance criteria.

{user_idea}
`,

	PersonaArchitect: `You are a senior software architect.
Read the Product Requirements Document below and write a system design in Markdown.
Describe the components, data model, interfaces, file layout and technology choices.

# PRD
{prd_content}
`,

	PersonaProjectManager: `You are a technical project manager.
Break the project below into implementation tasks, one per file, in build order.
Respond with ONLY a JSON array. Each element must be an object with the keys
"file_name" (a path relative to the project root) and "task_description".

# PRD
{prd_content}

# System Design
{system_design}
`,

	PersonaEngineer: `You are a senior software engineer.
Write the complete contents of the file {file_name}.

Task: {task_description}

# PRD
{prd_content}

# System Design
{system_design}

Respond with ONLY the file contents. Do not add explanations.
`,

	PersonaQAEngineer: `You are a QA engineer.
Write unit tests for the file {file_name} shown below. The tests are run from the
project root, so import the code under test relative to it.

# PRD
{prd_content}

# System Design
{system_design}

# {file_name}
{file_code}

Respond with ONLY the test file contents. Do not add explanations.
`,

	PersonaCodeFixer: `You are an expert debugger.
The tests for {file_name} are failing. Rewrite {file_name} so that the tests pass.
Do not change the tests.

# {file_name}
{file_code}

# Tests
{test_code}

# Test output
{error_message}

Respond with ONLY the corrected contents of {file_name}. Do not add explanations.
`,
}
