package testutil

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// AssertFileExists fails the test if relPath is missing.
func (v *TestVault) AssertFileExists(relPath string) {
	v.t.Helper()
	if !v.FileExists(relPath) {
		v.t.Errorf("expected %s to exist", relPath)
	}
}

// AssertFileContains fails the test unless relPath contains substr.
func (v *TestVault) AssertFileContains(relPath, substr string) {
	v.t.Helper()
	if content := v.ReadFile(relPath); !strings.Contains(content, substr) {
		v.t.Errorf("expected %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if relPath contains substr.
func (v *TestVault) AssertFileNotContains(relPath, substr string) {
	v.t.Helper()
	if content := v.ReadFile(relPath); strings.Contains(content, substr) {
		v.t.Errorf("expected %s not to contain %q, got:\n%s", relPath, substr, content)
	}
}

// Files lists every regular file under the root as sorted, slash-separated
// relative paths.
func (v *TestVault) Files() []string {
	v.t.Helper()
	var files []string
	err := filepath.WalkDir(v.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(v.Path, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		v.t.Fatalf("failed to list %s: %v", v.Path, err)
	}
	slices.Sort(files)
	return files
}

// AssertFiles fails the test unless the root holds exactly want.
func (v *TestVault) AssertFiles(want ...string) {
	v.t.Helper()
	want = slices.Clone(want)
	slices.Sort(want)
	if got := v.Files(); !slices.Equal(got, want) {
		v.t.Errorf("files = %v, want %v", got, want)
	}
}
