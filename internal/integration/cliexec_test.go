package integration

import (
	"bytes"
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell commands")
	}
}

// --- BuildEnv tests ---

func TestBuildEnv_NilContextReturnsBase(t *testing.T) {
	executor := NewCLIExecutor()
	base := []string{"PATH=/usr/bin", "HOME=/home/u"}

	env := executor.BuildEnv(base, nil)
	if len(env) != len(base) {
		t.Fatalf("env length = %d, want %d", len(env), len(base))
	}
}

func TestBuildEnv_InjectsRunContext(t *testing.T) {
	executor := NewCLIExecutor()
	base := []string{"PATH=/usr/bin"}

	env := executor.BuildEnv(base, &RunEnvContext{RunID: "run-1", OutputDir: "/tmp/out"})

	want := map[string]bool{"ADT_RUN_ID=run-1": false, "ADT_OUTPUT_DIR=/tmp/out": false}
	for _, kv := range env {
		if _, ok := want[kv]; ok {
			want[kv] = true
		}
	}
	for kv, seen := range want {
		if !seen {
			t.Errorf("env missing %q", kv)
		}
	}
	if len(base) != 1 {
		t.Error("BuildEnv must not modify the base slice")
	}
}

// --- Exec tests ---

func TestExec_CapturesStdout(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{Command: "echo hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if result.Stdout != "hello\n" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello\n")
	}
}

func TestExec_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestExec_MissingProgramReturnsError(t *testing.T) {
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{Command: "adt-no-such-program-xyz"})
	if err == nil {
		t.Fatal("expected an error for a missing program")
	}
	if result == nil || result.ExitCode != -1 {
		t.Errorf("result = %+v, want ExitCode -1", result)
	}
}

func TestExec_EmptyCommand(t *testing.T) {
	executor := NewCLIExecutor()

	if _, err := executor.Exec(context.Background(), CLIExecConfig{Command: "   "}); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestExec_ShellSyntaxCombinesStreams(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{Command: "echo out; echo err 1>&2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "out\n" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if result.Stderr != "err\n" {
		t.Errorf("Stderr = %q", result.Stderr)
	}
	if !strings.Contains(result.Combined, "out") || !strings.Contains(result.Combined, "err") {
		t.Errorf("Combined = %q, want both streams", result.Combined)
	}
}

func TestExec_ArgsPassedVerbatim(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	arg := "a b; echo injected $HOME `id`"
	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "printf",
		Args:    []string{"%s", arg},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != arg {
		t.Errorf("Stdout = %q, want %q", result.Stdout, arg)
	}
}

func TestExec_InjectsRunEnv(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "sh",
		Args:    []string{"-c", "echo $ADT_RUN_ID"},
		RunCtx:  &RunEnvContext{RunID: "run-42", OutputDir: t.TempDir()},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "run-42" {
		t.Errorf("Stdout = %q, want run-42", result.Stdout)
	}
}

func TestExec_RunsInDir(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()
	dir := t.TempDir()

	result, err := executor.Exec(context.Background(), CLIExecConfig{Command: "pwd", Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(result.Stdout), filepath.Base(dir)) {
		t.Errorf("pwd = %q, want it to end in %q", result.Stdout, filepath.Base(dir))
	}
}

func TestExec_TeesToWriters(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()
	var stdout bytes.Buffer

	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "echo tee",
		Stdout:  &stdout,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout.String() != "tee\n" || result.Stdout != "tee\n" {
		t.Errorf("writer = %q, result = %q", stdout.String(), result.Stdout)
	}
}

func TestExec_StdinIsForwarded(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "cat",
		Stdin:   strings.NewReader("from stdin"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "from stdin" {
		t.Errorf("Stdout = %q", result.Stdout)
	}
}

func TestExec_TimeoutKillsCommand(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	start := time.Now()
	result, err := executor.Exec(context.Background(), CLIExecConfig{
		Command: "sleep 10",
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected TimedOut")
	}
	if result.ExitCode == 0 {
		t.Error("a timed out command must not report exit code 0")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Exec took %s, want it bounded by the timeout", elapsed)
	}
}

func TestExec_BackgroundChildDoesNotHang(t *testing.T) {
	skipOnWindows(t)
	executor := NewCLIExecutor()

	start := time.Now()
	result, err := executor.Exec(context.Background(), CLIExecConfig{Command: "sleep 30 & echo started"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "started") {
		t.Errorf("Stdout = %q", result.Stdout)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Exec took %s, want it not to wait for the background child", elapsed)
	}
}

// --- buildCommand tests ---

func TestBuildCommand_PlainLineIsSplit(t *testing.T) {
	cmd, program, err := buildCommand(context.Background(), CLIExecConfig{Command: "pytest test_a.py -q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if program != "pytest" {
		t.Errorf("program = %q, want pytest", program)
	}
	if got := strings.Join(cmd.Args, " "); got != "pytest test_a.py -q" {
		t.Errorf("args = %q", got)
	}
}

func TestBuildCommand_ShellLine(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh is POSIX only")
	}
	_, program, err := buildCommand(context.Background(), CLIExecConfig{Command: "go test ./... | tee out"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if program != "sh" {
		t.Errorf("program = %q, want sh", program)
	}
}
