package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TestPlaceholder marks where the test file path goes in a command template.
const TestPlaceholder = "{test}"

// TestRunner runs generated test files with the command configured for
// their extension.
type TestRunner interface {
	// Run executes testFile (relative to workDir) and reports whether it
	// passed together with the combined output. It never returns an error:
	// launch failures become a failed run with the error text as output.
	Run(ctx context.Context, testFile, workDir string) (bool, string)
	// CommandFor returns the command line that would run testFile.
	CommandFor(testFile string) (string, bool)
}

// testRunner implements TestRunner using a CLIExecutor for command execution.
type testRunner struct {
	executor CLIExecutor
	commands map[string]string
	timeout  time.Duration
}

// NewTestRunner creates a TestRunner. commands maps a lowercased extension
// without the dot to a command template containing {test}. Each execution is
// bounded by timeout when it is positive.
func NewTestRunner(executor CLIExecutor, commands map[string]string, timeout time.Duration) TestRunner {
	normalized := make(map[string]string, len(commands))
	for ext, cmd := range commands {
		normalized[strings.TrimPrefix(strings.ToLower(ext), ".")] = cmd
	}
	return &testRunner{executor: executor, commands: normalized, timeout: timeout}
}

func (r *testRunner) CommandFor(testFile string) (string, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(testFile)), ".")
	tmpl, ok := r.commands[ext]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(tmpl, TestPlaceholder, shellQuote(testFile)), true
}

func (r *testRunner) Run(ctx context.Context, testFile, workDir string) (bool, string) {
	cmdLine, ok := r.CommandFor(testFile)
	if !ok {
		return false, fmt.Sprintf("no test command configured for %s", displayExt(testFile))
	}

	result, err := r.executor.Exec(ctx, CLIExecConfig{
		Command: cmdLine,
		Dir:     workDir,
		RunCtx:  &RunEnvContext{OutputDir: workDir},
		Timeout: r.timeout,
	})
	if err != nil {
		return false, err.Error()
	}
	if result.TimedOut {
		return false, fmt.Sprintf("%s\ntest run timed out after %s", result.Combined, r.timeout)
	}
	return result.ExitCode == 0, result.Combined
}

func displayExt(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return ext
	}
	return "files without an extension"
}

// shellQuote leaves plain paths alone and single-quotes anything else.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"$`|&;<>()*?{}[]!#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
