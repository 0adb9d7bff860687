package core

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var slugUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ProjectSlug derives the output directory name for an idea. Every character
// outside [a-zA-Z0-9_-] becomes an underscore, so distinct ideas may share a
// slug.
func ProjectSlug(idea string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(strings.TrimSpace(idea)), "_")
	if slug == "" {
		return "project"
	}
	return slug
}

// CleanRelPath normalises a task file path and rejects anything absolute or
// climbing out of the output directory.
func CleanRelPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", &PathEscapeError{Path: p}
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(p) || filepath.VolumeName(p) != "" {
		return "", &PathEscapeError{Path: p}
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &PathEscapeError{Path: p}
	}
	return clean, nil
}

// SafeJoin joins a task file path onto root, refusing paths that escape it.
func SafeJoin(root, rel string) (string, error) {
	clean, err := CleanRelPath(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

// TestFileName derives the test artifact path for an artifact: the base name
// gains a "test_" prefix and stays in the artifact's directory. Code files keep
// their extension; documents, markup, config and unknown types get ".py".
// Dotfiles keep their whole name as the stem, so ".env" maps to "test_.env.py".
func TestFileName(artifact string) string {
	dir, base := path.Split(strings.ReplaceAll(artifact, `\`, "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = base
	}
	if !keepsOwnTestExt(FileExt(base)) {
		ext = ".py"
	}
	return dir + "test_" + stem + ext
}

// nonCodeExt lists line-family extensions that carry no executable code.
var nonCodeExt = map[string]bool{
	"md":   true,
	"txt":  true,
	"json": true,
	"html": true,
	"css":  true,
}

func keepsOwnTestExt(ext string) bool {
	return FamilyOf("x."+ext) != FamilyUnknown && !nonCodeExt[ext]
}
