package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-dev-team/internal/core"
	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

func withConfig(t *testing.T, cfg *models.GlobalConfig) {
	t.Helper()
	origCfg, origMgr, origBase := Config, ConfigMgr, BasePath
	t.Cleanup(func() { Config, ConfigMgr, BasePath = origCfg, origMgr, origBase })

	BasePath = t.TempDir()
	Config = cfg
	ConfigMgr = core.NewConfigurationManager(BasePath)
}

func TestConfigShowCmd(t *testing.T) {
	withConfig(t, core.DefaultGlobalConfig())
	t.Setenv("DEEPSEEK_API_KEY", "sk-secret")

	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	defer configShowCmd.SetOut(nil)

	if err := configShowCmd.RunE(configShowCmd, nil); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"# base path:", "provider: http", "api_key_env: DEEPSEEK_API_KEY", "max_attempts: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "sk-secret") {
		t.Error("config show printed the API key")
	}
}

func TestConfigValidateCmd(t *testing.T) {
	cfg := core.DefaultGlobalConfig()
	withConfig(t, cfg)

	var out bytes.Buffer
	configValidateCmd.SetOut(&out)
	defer configValidateCmd.SetOut(nil)

	t.Setenv("DEEPSEEK_API_KEY", "")
	if err := configValidateCmd.RunE(configValidateCmd, nil); err == nil {
		t.Error("expected error when the API key is missing")
	}

	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	if err := configValidateCmd.RunE(configValidateCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Configuration OK") {
		t.Errorf("output = %q", out.String())
	}

	cfg.Repair.MaxAttempts = 0
	if err := configValidateCmd.RunE(configValidateCmd, nil); err == nil {
		t.Error("expected error for invalid repair.max_attempts")
	}
}

func TestConfigCmd_NotLoaded(t *testing.T) {
	withConfig(t, nil)

	if err := configShowCmd.RunE(configShowCmd, nil); err == nil {
		t.Error("expected error from show without configuration")
	}
	if err := configValidateCmd.RunE(configValidateCmd, nil); err == nil {
		t.Error("expected error from validate without configuration")
	}
}

func TestPersonasCmd(t *testing.T) {
	var out bytes.Buffer
	personasCmd.SetOut(&out)
	defer personasCmd.SetOut(nil)

	personasCmd.Run(personasCmd, nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != len(core.AllPersonas) {
		t.Fatalf("listed %d personas, want %d", len(lines), len(core.AllPersonas))
	}
	if lines[0] != string(core.PersonaProductManager) || lines[len(lines)-1] != string(core.PersonaCodeFixer) {
		t.Errorf("personas out of pipeline order: %v", lines)
	}
}

func TestPersonasShowCmd(t *testing.T) {
	orig := Templates
	defer func() { Templates = orig }()

	tm, err := core.NewTemplateManager("")
	if err != nil {
		t.Fatal(err)
	}
	Templates = tm

	var out bytes.Buffer
	personasShowCmd.SetOut(&out)
	defer personasShowCmd.SetOut(nil)

	if err := personasShowCmd.RunE(personasShowCmd, []string{"engineer"}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Error("expected the engineer template to be printed")
	}

	if err := personasShowCmd.RunE(personasShowCmd, []string{"poet"}); err == nil {
		t.Error("expected error for unknown persona")
	}
}
