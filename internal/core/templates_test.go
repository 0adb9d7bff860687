package core

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetTemplate_BuiltinDefaults(t *testing.T) {
	tm, err := NewTemplateManager("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range AllPersonas {
		tmpl, err := tm.GetTemplate(p)
		if err != nil {
			t.Errorf("GetTemplate(%s) error: %v", p, err)
			continue
		}
		if strings.TrimSpace(tmpl) == "" {
			t.Errorf("GetTemplate(%s) returned empty template", p)
		}
	}
}

func TestGetTemplate_BuiltinsUseExpectedPlaceholders(t *testing.T) {
	want := map[Persona][]string{
		PersonaProductManager: {"{user_idea}"},
		PersonaArchitect:      {"{prd_content}"},
		PersonaProjectManager: {"{prd_content}", "{system_design}", "file_name", "task_description"},
		PersonaEngineer:       {"{file_name}", "{task_description}", "{prd_content}", "{system_design}"},
		PersonaQAEngineer:     {"{file_name}", "{file_code}"},
		PersonaCodeFixer:      {"{file_name}", "{file_code}", "{test_code}", "{error_message}"},
	}
	for p, placeholders := range want {
		for _, ph := range placeholders {
			if !strings.Contains(builtinPersonaTemplates[p], ph) {
				t.Errorf("%s template missing %s", p, ph)
			}
		}
	}
}

func TestGetTemplate_SourcePrecedence(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, PersonaOverlayFile, "architect: overlay architect\nengineer: overlay engineer\n")
	writeTestFile(t, dir, "engineer.txt", "file engineer")
	writeTestFile(t, dir, "custom_fixer.txt", "custom fixer")

	tm, err := NewTemplateManager(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tm.RegisterTemplate(PersonaCodeFixer, "custom_fixer.txt"); err != nil {
		t.Fatalf("RegisterTemplate error: %v", err)
	}

	cases := map[Persona]string{
		PersonaEngineer:  "file engineer",
		PersonaArchitect: "overlay architect",
		PersonaCodeFixer: "custom fixer",
	}
	for p, want := range cases {
		got, err := tm.GetTemplate(p)
		if err != nil {
			t.Fatalf("GetTemplate(%s) error: %v", p, err)
		}
		if got != want {
			t.Errorf("GetTemplate(%s) = %q, want %q", p, got, want)
		}
	}

	got, _ := tm.GetTemplate(PersonaQAEngineer)
	if got != builtinPersonaTemplates[PersonaQAEngineer] {
		t.Error("persona without overrides should use the built-in template")
	}
}

func TestNewTemplateManager_MalformedOverlay(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, PersonaOverlayFile, "architect: [unclosed")
	if _, err := NewTemplateManager(dir); err == nil {
		t.Fatal("expected error for malformed personas.yaml")
	}
}

func TestRegisterTemplate_MissingFile(t *testing.T) {
	tm, _ := NewTemplateManager(t.TempDir())
	if err := tm.RegisterTemplate(PersonaEngineer, filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing custom template")
	}
}

func TestGetTemplate_UnknownPersona(t *testing.T) {
	tm, _ := NewTemplateManager("")
	if _, err := tm.GetTemplate(Persona("designer")); err == nil {
		t.Fatal("expected error for unknown persona")
	}
}

func TestFormatTemplate(t *testing.T) {
	tests := []struct {
		name   string
		tmpl   string
		values map[string]string
		want   string
	}{
		{"substitutes", "Build {file_name}: {task_description}", map[string]string{"file_name": "a.py", "task_description": "x"}, "Build a.py: x"},
		{"repeats", "{x}{x}", map[string]string{"x": "1"}, "11"},
		{"leaves unknown", "func() { return {missing} }", map[string]string{}, "func() { return {missing} }"},
		{"no recursive expansion", "{a}", map[string]string{"a": "{b}", "b": "boom"}, "{b}"},
		{"json braces survive", `{"file_name": "{file_name}"}`, map[string]string{"file_name": "a.py"}, `{"file_name": "a.py"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTemplate(tt.tmpl, tt.values); got != tt.want {
				t.Errorf("FormatTemplate = %q, want %q", got, tt.want)
			}
		})
	}
}
