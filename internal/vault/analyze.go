package vault

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aidanlsb/ferry/internal/markdown"
	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

// ErrVaultNotFound is returned when the vault root does not exist.
var ErrVaultNotFound = errors.New("vault not found")

// ErrNotObsidianVault is returned when a .obsidian directory is required
// but missing.
var ErrNotObsidianVault = errors.New("not an obsidian vault")

// Structure is the inventory of a vault before any transformation.
type Structure struct {
	Root string

	// IsObsidian reports whether the root carries a .obsidian directory.
	IsObsidian bool

	MarkdownFiles []string
	AssetFiles    []string

	// Links maps each markdown file's relative path to the wikilinks found
	// in it, in source order.
	Links map[string][]wikilink.Link
}

// TotalLinks returns the number of wikilinks across all files.
func (s *Structure) TotalLinks() int {
	n := 0
	for _, links := range s.Links {
		n += len(links)
	}
	return n
}

// AnalyzeOptions controls Analyze.
type AnalyzeOptions struct {
	// RequireObsidianDir makes a missing .obsidian directory an error.
	RequireObsidianDir bool
}

// IsVault reports whether root contains a .obsidian directory.
func IsVault(fsys FileSystem, root string) bool {
	return fsys.DirExists(filepath.Join(root, ObsidianDir))
}

// Analyze inventories markdown files, attachments, and raw wikilinks.
// Files that cannot be read are inventoried without links.
func Analyze(fsys FileSystem, root string, opts AnalyzeOptions) (*Structure, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	if !fsys.DirExists(absRoot) {
		return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, root)
	}

	s := &Structure{
		Root:       absRoot,
		IsObsidian: IsVault(fsys, absRoot),
		Links:      make(map[string][]wikilink.Link),
	}
	if opts.RequireObsidianDir && !s.IsObsidian {
		return nil, fmt.Errorf("%w: %s has no %s directory", ErrNotObsidianVault, root, ObsidianDir)
	}

	files, err := fsys.ListFiles(absRoot, "**/*")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if !paths.IsMarkdown(f) {
			s.AssetFiles = append(s.AssetFiles, f)
			continue
		}
		s.MarkdownFiles = append(s.MarkdownFiles, f)

		content, err := fsys.ReadFile(f)
		if err != nil {
			continue
		}
		rel, err := paths.Rel(absRoot, f)
		if err != nil {
			continue
		}
		body, _ := markdown.ExtractFrontmatter(content)
		s.Links[rel] = wikilink.Extract(body)
	}
	return s, nil
}
