package vault

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"

	"github.com/aidanlsb/ferry/internal/paths"
)

// Index is the read-only lookup structure over one vault snapshot.
// It is built once per run and shared by every per-file transformation.
type Index struct {
	// Root is the absolute vault root.
	Root string

	// ByStem maps a markdown file stem to its absolute path. When several
	// files share a stem, the one closest to the root wins; ties go to the
	// first file in enumeration order.
	ByStem map[string]string

	// ByRelativePath maps a root-relative, forward-slash markdown path
	// (extension included) to its absolute path.
	ByRelativePath map[string]string

	// AssetsByRelativePath and AssetsByName index non-markdown files the
	// same way, for attachment embeds like ![[diagram.png]].
	AssetsByRelativePath map[string]string
	AssetsByName         map[string]string
}

// BuildIndex enumerates every file under root and builds the lookup maps.
// An empty or missing vault yields an empty index. The only error is a
// root that cannot be enumerated.
func BuildIndex(fsys FileSystem, root string) (*Index, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}

	files, err := fsys.ListFiles(absRoot, "**/*")
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Root:                 absRoot,
		ByStem:               make(map[string]string),
		ByRelativePath:       make(map[string]string),
		AssetsByRelativePath: make(map[string]string),
		AssetsByName:         make(map[string]string),
	}
	stemDepth := make(map[string]int)
	nameDepth := make(map[string]int)

	for _, file := range files {
		rel, err := paths.Rel(absRoot, file)
		if err != nil {
			continue
		}
		depth := paths.Depth(rel)

		if !paths.IsMarkdown(file) {
			idx.AssetsByRelativePath[rel] = file
			name := path.Base(rel)
			if d, seen := nameDepth[name]; !seen || depth < d {
				idx.AssetsByName[name] = file
				nameDepth[name] = depth
			}
			continue
		}

		idx.ByRelativePath[rel] = file
		stem := paths.Stem(rel)
		if d, seen := stemDepth[stem]; !seen || depth < d {
			idx.ByStem[stem] = file
			stemDepth[stem] = depth
		}
	}

	return idx, nil
}

// LookupPath finds a markdown file by root-relative path.
func (idx *Index) LookupPath(rel string) (string, bool) {
	p, ok := idx.ByRelativePath[rel]
	return p, ok
}

// LookupStem finds a markdown file by stem.
func (idx *Index) LookupStem(stem string) (string, bool) {
	p, ok := idx.ByStem[stem]
	return p, ok
}

// LookupAsset finds a non-markdown file by relative path, then by file name.
func (idx *Index) LookupAsset(ref string) (string, bool) {
	ref = paths.NormalizeRel(ref)
	if ref == "" {
		return "", false
	}
	if p, ok := idx.AssetsByRelativePath[ref]; ok {
		return p, true
	}
	p, ok := idx.AssetsByName[path.Base(ref)]
	return p, ok
}

// RelativePaths returns the indexed markdown paths relative to the root,
// sorted.
func (idx *Index) RelativePaths() []string {
	out := make([]string, 0, len(idx.ByRelativePath))
	for rel := range idx.ByRelativePath {
		out = append(out, rel)
	}
	sort.Strings(out)
	return out
}

// MarkdownFiles returns the absolute markdown paths ordered by relative path.
func (idx *Index) MarkdownFiles() []string {
	rels := idx.RelativePaths()
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = idx.ByRelativePath[rel]
	}
	return out
}

// Len returns the number of indexed markdown files.
func (idx *Index) Len() int {
	return len(idx.ByRelativePath)
}

// Rel returns the root-relative path of an absolute file path, or the
// input unchanged when it is not under the root.
func (idx *Index) Rel(abs string) string {
	rel, err := paths.Rel(idx.Root, abs)
	if err != nil {
		return abs
	}
	return rel
}
