package integration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeExecutor is a CLIExecutor whose Exec behaviour is supplied per test.
type fakeExecutor struct {
	execFn  func(cfg CLIExecConfig) (*CLIExecResult, error)
	configs []CLIExecConfig
}

func (f *fakeExecutor) Exec(_ context.Context, cfg CLIExecConfig) (*CLIExecResult, error) {
	f.configs = append(f.configs, cfg)
	return f.execFn(cfg)
}

func (f *fakeExecutor) BuildEnv(base []string, _ *RunEnvContext) []string { return base }

const sampleStream = `{"type":"system","subtype":"init","session_id":"s1"}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"partial "}]}}
{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Read"},{"type":"text","text":"answer"}]}}
{"type":"result","subtype":"success","is_error":false,"result":"final answer"}
`

func TestParseStreamJSON_ResultIsAuthoritative(t *testing.T) {
	text, isError := ParseStreamJSON(sampleStream)
	if isError {
		t.Error("expected isError = false")
	}
	if text != "final answer" {
		t.Errorf("text = %q, want %q", text, "final answer")
	}
}

func TestParseStreamJSON_AssistantTextWithoutResult(t *testing.T) {
	stream := `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"one "}]}}
{"type":"assistant","message":{"role":"assistant","content":"two"}}
`
	text, _ := ParseStreamJSON(stream)
	if text != "one two" {
		t.Errorf("text = %q, want %q", text, "one two")
	}
}

func TestParseStreamJSON_RawLinesKept(t *testing.T) {
	text, _ := ParseStreamJSON("not json\n\n")
	if text != "not json\n" {
		t.Errorf("text = %q", text)
	}
}

func TestParseStreamJSON_ErrorResult(t *testing.T) {
	_, isError := ParseStreamJSON(`{"type":"result","subtype":"error_during_execution","is_error":true,"result":"boom"}`)
	if !isError {
		t.Error("expected isError = true")
	}
}

func TestClaudeCLIModelClient_Generate(t *testing.T) {
	exec := &fakeExecutor{execFn: func(CLIExecConfig) (*CLIExecResult, error) {
		return &CLIExecResult{Stdout: sampleStream}, nil
	}}
	client := NewClaudeCLIModelClient(exec, "", "sonnet", time.Minute)

	text, err := client.Generate(context.Background(), "write 'code' && $stuff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "final answer" {
		t.Errorf("text = %q", text)
	}

	cfg := exec.configs[0]
	if cfg.Command != "claude" {
		t.Errorf("Command = %q, want claude", cfg.Command)
	}
	want := []string{"-p", "write 'code' && $stuff", "--output-format", "stream-json", "--verbose", "--model", "sonnet"}
	if strings.Join(cfg.Args, "\x00") != strings.Join(want, "\x00") {
		t.Errorf("Args = %q, want %q", cfg.Args, want)
	}
	if cfg.Timeout != time.Minute {
		t.Errorf("Timeout = %s", cfg.Timeout)
	}
}

func TestClaudeCLIModelClient_NoModelFlag(t *testing.T) {
	client := NewClaudeCLIModelClient(&fakeExecutor{}, "claude", "", 0)
	for _, a := range client.Args("p") {
		if a == "--model" {
			t.Fatal("did not expect --model without a configured model")
		}
	}
}

func TestClaudeCLIModelClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result *CLIExecResult
		err    error
	}{
		{"launch error", &CLIExecResult{ExitCode: -1}, errors.New("executable not found")},
		{"non-zero exit", &CLIExecResult{ExitCode: 1, Stderr: "not logged in"}, nil},
		{"timeout", &CLIExecResult{ExitCode: -1, TimedOut: true}, nil},
		{"error result", &CLIExecResult{Stdout: `{"type":"result","is_error":true,"result":"rate limited"}`}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{execFn: func(CLIExecConfig) (*CLIExecResult, error) { return tt.result, tt.err }}
			text, err := NewClaudeCLIModelClient(exec, "", "", time.Second).Generate(context.Background(), "p")
			if err == nil {
				t.Fatal("expected an error")
			}
			if text != "" {
				t.Errorf("text = %q, want empty on failure", text)
			}
		})
	}
}
