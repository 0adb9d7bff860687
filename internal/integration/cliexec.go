package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// CLIExecConfig holds all parameters needed to execute an external command.
type CLIExecConfig struct {
	// Command is a program name when Args is set and a full command line
	// otherwise. Command lines using shell syntax go to the system shell.
	Command string
	Args    []string
	Dir     string
	RunCtx  *RunEnvContext // nil outside a pipeline run
	Timeout time.Duration  // zero means no limit beyond ctx
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// RunEnvContext carries run-specific information to inject as environment variables.
type RunEnvContext struct {
	RunID     string
	OutputDir string
}

// CLIExecResult captures the outcome of an external command.
type CLIExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Combined interleaves stdout and stderr in arrival order.
	Combined string
	TimedOut bool
}

// CLIExecutor defines the interface for invoking external commands in their
// own process group with run context injection.
type CLIExecutor interface {
	// Exec runs the command and waits for it and all its children to finish.
	// A non-zero exit is reported through ExitCode; err is only set when the
	// command could not be started.
	Exec(ctx context.Context, config CLIExecConfig) (*CLIExecResult, error)
	// BuildEnv constructs the subprocess environment with run context variables injected.
	BuildEnv(base []string, runCtx *RunEnvContext) []string
}

// cliExecutor implements CLIExecutor.
type cliExecutor struct{}

// NewCLIExecutor creates a new CLIExecutor.
func NewCLIExecutor() CLIExecutor {
	return &cliExecutor{}
}

// BuildEnv appends ADT_* environment variables to the base environment when
// a run context is provided. When runCtx is nil, the base is returned unchanged.
func (e *cliExecutor) BuildEnv(base []string, runCtx *RunEnvContext) []string {
	if runCtx == nil {
		return base
	}
	env := make([]string, len(base), len(base)+2)
	copy(env, base)
	env = append(env,
		"ADT_RUN_ID="+runCtx.RunID,
		"ADT_OUTPUT_DIR="+runCtx.OutputDir,
	)
	return env
}

// needsShell reports whether a command line uses shell syntax.
func needsShell(cmdLine string) bool {
	return strings.ContainsAny(cmdLine, "|&;<>$`'\"*?(){}")
}

// buildCommand turns the configured command into an *exec.Cmd. With Args
// set, Command is the program and Args are passed verbatim. Otherwise Command
// is a command line: plain ones are split on whitespace, anything else goes
// through sh -c (cmd /c on Windows).
func buildCommand(ctx context.Context, config CLIExecConfig) (*exec.Cmd, string, error) {
	if len(config.Args) > 0 {
		if config.Command == "" {
			return nil, "", errors.New("empty command")
		}
		return exec.CommandContext(ctx, config.Command, config.Args...), config.Command, nil
	}

	line := strings.TrimSpace(config.Command)
	if line == "" {
		return nil, "", errors.New("empty command")
	}

	if needsShell(line) {
		if runtime.GOOS == "windows" {
			return exec.CommandContext(ctx, "cmd", "/c", line), "cmd", nil
		}
		return exec.CommandContext(ctx, "sh", "-c", line), "sh", nil
	}

	fields := strings.Fields(line)
	return exec.CommandContext(ctx, fields[0], fields[1:]...), fields[0], nil
}

func (e *cliExecutor) Exec(ctx context.Context, config CLIExecConfig) (*CLIExecResult, error) {
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	cmd, program, err := buildCommand(ctx, config)
	if err != nil {
		return &CLIExecResult{ExitCode: -1}, err
	}
	cmd.Dir = config.Dir
	cmd.Env = e.BuildEnv(os.Environ(), config.RunCtx)
	setProcessGroup(cmd)
	cmd.WaitDelay = time.Second

	// Always capture stdout/stderr for the result, teeing to the provided
	// writers if set.
	var stdoutBuf, stderrBuf bytes.Buffer
	combined := &lockedBuffer{}

	stdout := []io.Writer{&stdoutBuf, combined}
	if config.Stdout != nil {
		stdout = append(stdout, config.Stdout)
	}
	stderr := []io.Writer{&stderrBuf, combined}
	if config.Stderr != nil {
		stderr = append(stderr, config.Stderr)
	}
	cmd.Stdout = io.MultiWriter(stdout...)
	cmd.Stderr = io.MultiWriter(stderr...)
	if config.Stdin != nil {
		cmd.Stdin = config.Stdin
	}

	if err := cmd.Start(); err != nil {
		return &CLIExecResult{ExitCode: -1}, fmt.Errorf("executing %s: %w", program, err)
	}
	err = cmd.Wait()
	// Reap anything the command left running in its group.
	killProcessGroup(cmd)

	result := &CLIExecResult{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Combined: combined.String(),
		TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrWaitDelay):
			// Exited cleanly but a child held the output pipes open.
			result.ExitCode = cmd.ProcessState.ExitCode()
		default:
			result.ExitCode = -1
			return result, fmt.Errorf("waiting for %s: %w", program, err)
		}
	}
	if result.TimedOut && result.ExitCode == 0 {
		result.ExitCode = -1
	}

	return result, nil
}

// lockedBuffer is a bytes.Buffer safe for the concurrent writes exec makes
// when stdout and stderr are distinct writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
