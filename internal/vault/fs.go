package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystem is the read-only view of the vault the index and exporter use.
type FileSystem interface {
	// ListFiles returns absolute paths of files under root matching pattern,
	// sorted. A missing root yields an empty list.
	ListFiles(root, pattern string) ([]string, error)
	FileExists(path string) bool
	DirExists(path string) bool
	ReadFile(path string) (string, error)
}

// skipDirs are tool directories that never hold vault content.
var skipDirs = map[string]bool{
	ObsidianDir: true,
	".trash":    true,
	".git":      true,
	".ferry":    true,
}

// ObsidianDir marks the root of an Obsidian vault.
const ObsidianDir = ".obsidian"

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

// NewOSFileSystem returns a FileSystem backed by the operating system.
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// ListFiles walks root in lexical order. Patterns of the form "**/<glob>"
// match <glob> against the file name at any depth; other patterns match the
// whole root-relative path. An empty pattern matches everything.
func (OSFileSystem) ListFiles(root, pattern string) ([]string, error) {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}

	files := []string{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			// Unreadable subtrees are skipped; the rest of the vault still indexes.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if matchPattern(pattern, filepath.ToSlash(rel)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read vault root: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// FileExists reports whether path is an existing regular file.
func (OSFileSystem) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path is an existing directory.
func (OSFileSystem) DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadFile reads a UTF-8 file.
func (OSFileSystem) ReadFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func matchPattern(pattern, rel string) bool {
	if pattern == "" || pattern == "**" || pattern == "**/*" {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		matched, _ := path.Match(rest, path.Base(rel))
		return matched
	}
	matched, _ := path.Match(pattern, rel)
	return matched
}
