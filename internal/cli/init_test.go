package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/ai-dev-team/internal/core"
)

func TestInitCmd_NilInitializer(t *testing.T) {
	orig := WorkspaceInit
	defer func() { WorkspaceInit = orig }()
	WorkspaceInit = nil

	if err := initCmd.RunE(initCmd, []string{t.TempDir()}); err == nil {
		t.Fatal("expected error when WorkspaceInit is nil")
	}
}

func TestInitCmd_CreatesWorkspace(t *testing.T) {
	orig := WorkspaceInit
	defer func() { WorkspaceInit = orig }()
	WorkspaceInit = core.NewWorkspaceInitializer()

	dir := filepath.Join(t.TempDir(), "lab")
	var out bytes.Buffer
	initCmd.SetOut(&out)
	defer initCmd.SetOut(nil)

	if err := initCmd.RunE(initCmd, []string{dir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".adtconfig")); err != nil {
		t.Errorf(".adtconfig not created: %v", err)
	}
	if !strings.Contains(out.String(), "Created:") || !strings.Contains(out.String(), ".adtconfig") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := initCmd.RunE(initCmd, []string{dir}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "Created:") || !strings.Contains(out.String(), "Skipped") {
		t.Errorf("second run output = %q", out.String())
	}
}
