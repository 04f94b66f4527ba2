// Package paths provides canonical helpers for vault paths:
// - vault-relative, forward-slash file paths (e.g. "notes/daily/today.md")
// - file stems used for filename lookups (e.g. "today")
//
// It centralizes separator handling so indexing, resolution, and export
// agree on the same keys on every platform.
package paths

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

// ErrPathOutsideVault is returned when a path escapes the vault root.
var ErrPathOutsideVault = errors.New("path is outside the vault")

// NormalizeRel normalizes a vault-relative path-like value:
// - converts OS separators and backslashes to '/'
// - trims leading "./" and leading "/"
// - collapses repeated '/'
func NormalizeRel(p string) string {
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, `\`, "/")
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimPrefix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// Rel returns the forward-slash path of target relative to root.
func Rel(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// Stem returns the final path component without its extension.
// Both '/' and '\' are treated as separators.
func Stem(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// IsMarkdown reports whether p has a ".md" extension, ignoring case.
func IsMarkdown(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".md")
}

// TrimMarkdownExt strips a trailing ".md" (any case).
func TrimMarkdownExt(p string) string {
	if IsMarkdown(p) {
		return p[:len(p)-3]
	}
	return p
}

// Depth returns the number of components in a forward-slash relative path.
func Depth(rel string) int {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

// ValidateWithinVault returns ErrPathOutsideVault when target does not sit
// under root after cleaning.
func ValidateWithinVault(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathOutsideVault
	}
	return nil
}
