package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ModelClient is the model transport. It returns the generated text or an
// error explaining why there is none.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PersonaInvoker formats a persona's template and calls the model once.
type PersonaInvoker interface {
	// Invoke returns the model's text. A transport failure is reported as an
	// error alongside empty text; callers decide whether empty text is fatal.
	Invoke(ctx context.Context, persona Persona, values map[string]string) (string, error)
}

type personaInvoker struct {
	templates TemplateManager
	client    ModelClient
}

// NewPersonaInvoker creates a PersonaInvoker. It never retries.
func NewPersonaInvoker(templates TemplateManager, client ModelClient) PersonaInvoker {
	return &personaInvoker{templates: templates, client: client}
}

func (pi *personaInvoker) Invoke(ctx context.Context, persona Persona, values map[string]string) (string, error) {
	prompt, err := pi.templates.Render(persona, values)
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", persona, err)
	}
	text, err := pi.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("invoking %s: %w", persona, err)
	}
	return text, nil
}

var fenceOpenPattern = regexp.MustCompile("^```[A-Za-z0-9_+#.-]*[ \t]*(\r?\n|$)")

// StripCodeFence unwraps text that starts with a markdown fence, keeping
// what lies between the opener and the last closing fence. Anything after
// that closing fence is dropped. Other text is only trimmed.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	loc := fenceOpenPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	body := s[loc[1]:]
	if end := strings.LastIndex(body, "\n```"); end != -1 {
		body = body[:end]
	} else {
		body = strings.TrimSuffix(body, "```")
	}
	return strings.TrimSpace(body)
}
