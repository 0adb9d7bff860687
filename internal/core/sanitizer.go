package core

import (
	"path/filepath"
	"strings"
)

// FileFamily groups file extensions by how trailing prose is trimmed from
// generated content.
type FileFamily int

const (
	// FamilyUnknown leaves content untouched.
	FamilyUnknown FileFamily = iota
	// FamilyBrace covers languages whose code ends at a closing brace.
	FamilyBrace
	// FamilyLine covers scripting, markup and config formats where the last
	// meaningful line marks the end of the code.
	FamilyLine
)

func (f FileFamily) String() string {
	switch f {
	case FamilyBrace:
		return "brace"
	case FamilyLine:
		return "line"
	default:
		return "unknown"
	}
}

// familyByExt is the total extension-to-family mapping. Anything absent is
// FamilyUnknown.
var familyByExt = map[string]FileFamily{
	"js":   FamilyBrace,
	"ts":   FamilyBrace,
	"java": FamilyBrace,
	"c":    FamilyBrace,
	"cpp":  FamilyBrace,
	"cs":   FamilyBrace,

	"py":   FamilyLine,
	"sh":   FamilyLine,
	"rb":   FamilyLine,
	"go":   FamilyLine,
	"php":  FamilyLine,
	"html": FamilyLine,
	"css":  FamilyLine,
	"json": FamilyLine,
	"md":   FamilyLine,
	"txt":  FamilyLine,
}

// FileExt returns the lowercased extension of name without the leading dot.
func FileExt(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// FamilyOf returns the sanitization family for a file name.
func FamilyOf(name string) FileFamily {
	return familyByExt[FileExt(name)]
}

// Sanitize trims explanatory text that models tend to append after the code.
// It is a heuristic and never fails: when in doubt it returns code unchanged.
func Sanitize(code, fileName string) string {
	if code == "" {
		return code
	}
	switch FamilyOf(fileName) {
	case FamilyBrace:
		return trimAfterLastBrace(code)
	case FamilyLine:
		return trimAfterLastCodeLine(code)
	default:
		return code
	}
}

func trimAfterLastBrace(code string) string {
	idx := strings.LastIndexByte(code, '}')
	if idx == -1 {
		return code
	}
	return code[:idx+1]
}

func trimAfterLastCodeLine(code string) string {
	end := -1
	for start := 0; start < len(code); {
		line, next := nextLine(code, start)
		if isCodeLine(line) {
			end = start + len(line)
		}
		start = next
	}
	if end == -1 {
		return code
	}
	return code[:end]
}

// isCodeLine reports whether a line is non-empty and not a comment or
// docstring marker.
func isCodeLine(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	return !strings.HasPrefix(s, "#") &&
		!strings.HasPrefix(s, `"""`) &&
		!strings.HasPrefix(s, "'''")
}

// nextLine returns the line starting at start without its terminator, and the
// offset just past the terminator. \n, \r\n and \r all end a line.
func nextLine(s string, start int) (string, int) {
	i := strings.IndexAny(s[start:], "\r\n")
	if i == -1 {
		return s[start:], len(s)
	}
	end := start + i
	if s[end] == '\r' && end+1 < len(s) && s[end+1] == '\n' {
		return s[start:end], end + 2
	}
	return s[start:end], end + 1
}
