// Package testutil provides reusable test helpers for building temporary
// vaults and checking exported output.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TestVault is a temporary directory tree: a vault under construction, or
// any existing directory opened with OpenDir.
type TestVault struct {
	Path string

	t        *testing.T
	obsidian bool
	files    []file
}

type file struct {
	rel     string
	content string
}

// NewTestVault starts a vault builder. Nothing touches the disk until
// Build.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	return &TestVault{t: t}
}

// OpenDir wraps an existing directory, such as an export bundle, so the
// read helpers and assertions work on it.
func OpenDir(t *testing.T, path string) *TestVault {
	t.Helper()
	return &TestVault{Path: path, t: t}
}

// WithFile adds a file at a slash-separated vault-relative path. Notes
// and attachments are added the same way.
func (v *TestVault) WithFile(rel, content string) *TestVault {
	v.files = append(v.files, file{rel: rel, content: content})
	return v
}

// WithObsidianDir adds an empty .obsidian directory so the tree is
// detected as an Obsidian vault.
func (v *TestVault) WithObsidianDir() *TestVault {
	v.obsidian = true
	return v
}

// Build writes the vault into a fresh t.TempDir.
func (v *TestVault) Build() *TestVault {
	v.t.Helper()
	v.Path = v.t.TempDir()
	if v.obsidian {
		if err := os.Mkdir(v.Abs(".obsidian"), 0o755); err != nil {
			v.t.Fatalf("create .obsidian: %v", err)
		}
	}
	for _, f := range v.files {
		v.write(f.rel, f.content)
	}
	return v
}

// Abs returns the absolute path of a vault-relative path.
func (v *TestVault) Abs(rel string) string {
	return filepath.Join(v.Path, filepath.FromSlash(rel))
}

func (v *TestVault) write(rel, content string) {
	v.t.Helper()
	p := v.Abs(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		v.t.Fatalf("create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		v.t.Fatalf("write %s: %v", rel, err)
	}
}

// ReadFile returns the content of a vault-relative file, failing the test
// if it cannot be read.
func (v *TestVault) ReadFile(rel string) string {
	v.t.Helper()
	data, err := os.ReadFile(v.Abs(rel))
	if err != nil {
		v.t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

// FileExists reports whether a vault-relative path exists.
func (v *TestVault) FileExists(rel string) bool {
	_, err := os.Stat(v.Abs(rel))
	return err == nil
}
