package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

var (
	// leadingLabelPattern matches a "json" label or fence opener at the very start.
	leadingLabelPattern = regexp.MustCompile("(?i)^(json|```json|```)")
	// fenceOpenerPattern matches the first fence opener anywhere in the text.
	fenceOpenerPattern = regexp.MustCompile("```[A-Za-z0-9_-]*[ \t]*\r?\n")
)

// ParseTaskPlan turns raw project-manager output into an ordered task list.
// Any failure is returned as a *PlanParseError carrying raw.
func ParseTaskPlan(raw string) ([]models.Task, error) {
	tasks, err := DecodeTaskPlan(UnwrapTaskPlan(raw))
	if err != nil {
		return nil, &PlanParseError{Raw: raw, Cause: err}
	}
	return tasks, nil
}

// UnwrapTaskPlan strips the wrapping noise models put around structured
// output: surrounding whitespace, a leading "json" label or fence opener, a
// trailing fence closer, text after the array. When what remains still does
// not look like JSON, it falls back to the first array inside a fenced block
// and then to the first balanced array anywhere.
func UnwrapTaskPlan(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(leadingLabelPattern.ReplaceAllString(s, ""))
	s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	if strings.HasPrefix(s, "[") {
		// Drops a closing fence or prose that follows the array.
		if arr, ok := firstBalancedArray(s); ok {
			return arr
		}
		return s
	}
	if strings.HasPrefix(s, "{") {
		return s
	}

	if loc := fenceOpenerPattern.FindStringIndex(raw); loc != nil {
		if arr, ok := firstBalancedArray(raw[loc[1]:]); ok {
			return arr
		}
	}
	if arr, ok := firstBalancedArray(raw); ok {
		return arr
	}
	return s
}

// DecodeTaskPlan strictly decodes an unwrapped plan. Every entry needs a
// non-empty file_name that stays inside the output directory and a
// task_description. A blank candidate is an empty plan.
func DecodeTaskPlan(candidate string) ([]models.Task, error) {
	if strings.TrimSpace(candidate) == "" {
		return []models.Task{}, nil
	}
	var entries []struct {
		FileName        *string `json:"file_name"`
		TaskDescription *string `json:"task_description"`
	}
	if err := json.Unmarshal([]byte(candidate), &entries); err != nil {
		return nil, fmt.Errorf("decoding plan JSON: %w", err)
	}
	if entries == nil {
		return nil, errors.New("plan is null")
	}

	tasks := make([]models.Task, 0, len(entries))
	for i, e := range entries {
		if e.FileName == nil || strings.TrimSpace(*e.FileName) == "" {
			return nil, fmt.Errorf("task %d: missing file_name", i+1)
		}
		if e.TaskDescription == nil {
			return nil, fmt.Errorf("task %d (%s): missing task_description", i+1, *e.FileName)
		}
		name := strings.TrimSpace(*e.FileName)
		if _, err := CleanRelPath(name); err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}
		tasks = append(tasks, models.Task{
			FileName:        name,
			TaskDescription: *e.TaskDescription,
		})
	}
	return tasks, nil
}

// firstBalancedArray returns the first top-level JSON array in s, honouring
// string literals and escapes.
func firstBalancedArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
