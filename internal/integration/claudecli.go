package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClaudeCLIModelClient generates text by running the claude CLI in print
// mode with streamed JSON output.
type ClaudeCLIModelClient struct {
	executor CLIExecutor
	binary   string
	model    string
	timeout  time.Duration
}

// NewClaudeCLIModelClient creates a client that runs binary (usually
// "claude"). model may be empty to use the CLI default.
func NewClaudeCLIModelClient(executor CLIExecutor, binary, model string, timeout time.Duration) *ClaudeCLIModelClient {
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeCLIModelClient{executor: executor, binary: binary, model: model, timeout: timeout}
}

// Args returns the CLI arguments used for prompt.
func (c *ClaudeCLIModelClient) Args(prompt string) []string {
	args := []string{"-p", prompt, "--output-format", "stream-json", "--verbose"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	return args
}

// Generate runs the CLI once and returns the final answer text.
func (c *ClaudeCLIModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := c.executor.Exec(ctx, CLIExecConfig{
		Command: c.binary,
		Args:    c.Args(prompt),
		Timeout: c.timeout,
	})
	if err != nil {
		return "", fmt.Errorf("running %s: %w", c.binary, err)
	}
	if result.TimedOut {
		return "", fmt.Errorf("%s timed out after %s", c.binary, c.timeout)
	}

	text, isError := ParseStreamJSON(result.Stdout)
	if result.ExitCode != 0 || isError {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = text
		}
		return "", fmt.Errorf("%s exited with code %d: %s", c.binary, result.ExitCode, detail)
	}
	return text, nil
}

// streamLine is one line of claude's stream-json output.
type streamLine struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
	Result  *string         `json:"result,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// streamMessage represents the message field in an assistant line.
type streamMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// contentBlock represents a typed content block within a message.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ParseStreamJSON collects assistant text from stream-json output. A
// "result" line, when present, is authoritative and replaces the collected
// text. Non-JSON lines are kept as raw output.
func ParseStreamJSON(stdout string) (text string, isError bool) {
	var out strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var sl streamLine
		if err := json.Unmarshal(line, &sl); err != nil {
			out.Write(line)
			out.WriteString("\n")
			continue
		}

		switch sl.Type {
		case "assistant":
			out.WriteString(extractMessageText(sl.Message))
		case "result":
			isError = sl.IsError
			if sl.Result != nil {
				out.Reset()
				out.WriteString(*sl.Result)
			}
		}
	}
	return out.String(), isError
}

// extractMessageText extracts the text content from a raw message JSON.
// message.content can be either a string or an array of content blocks.
func extractMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ""
	}

	return extractTextFromContent(msg.Content)
}

// extractTextFromContent handles content that is either a plain string
// or an array of content blocks, returning the text blocks joined. Thinking
// and tool_use blocks are skipped.
func extractTextFromContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plainStr string
	if err := json.Unmarshal(raw, &plainStr); err == nil {
		return plainStr
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "")
}
