package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aidanlsb/ferry/internal/atomicfile"
	"github.com/aidanlsb/ferry/internal/markdown"
	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/transform"
)

// ManifestName is the bundle index written next to the documents.
const ManifestName = "manifest.json"

// AssetsDir holds copied attachments inside a bundle.
const AssetsDir = "assets"

// Bundle is everything an export writes.
type Bundle struct {
	// VaultRoot is the absolute vault root documents and assets are
	// relative to.
	VaultRoot string
	OutputDir string

	Documents []transform.Content
	Assets    []string
	Warnings  []string

	Config    PackageConfig
	RunID     string
	CreatedAt time.Time
}

// PackageConfig describes the bundle in its manifest.
type PackageConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	CreatedBy   string `json:"created_by"`
}

// Writer persists a bundle. Per-item failures are reported in
// Written.Failures; the error is reserved for a bundle that could not be
// written at all.
type Writer interface {
	Write(b *Bundle) (*Written, error)
}

// Written reports what a Writer produced.
type Written struct {
	Dir       string
	Documents []string
	Assets    []string
	Failures  []string
}

// BundleWriter writes a bundle as a directory of markdown files:
//
//	<out>/<relative dir>/<stem>.md
//	<out>/assets/<vault relative path>
//	<out>/manifest.json
type BundleWriter struct{}

// NewBundleWriter returns a directory bundle writer.
func NewBundleWriter() *BundleWriter {
	return &BundleWriter{}
}

type manifest struct {
	Config    PackageConfig      `json:"config"`
	RunID     string             `json:"run_id,omitempty"`
	CreatedAt string             `json:"created_at"`
	Documents []manifestDocument `json:"documents"`
	Assets    []string           `json:"assets"`
	Warnings  []string           `json:"warnings"`
}

type manifestDocument struct {
	Source string `json:"source"`
	Path   string `json:"path"`
	Assets int    `json:"assets,omitempty"`
}

// Write implements Writer.
func (w *BundleWriter) Write(b *Bundle) (*Written, error) {
	if b.OutputDir == "" {
		return nil, fmt.Errorf("no output directory")
	}
	if err := os.MkdirAll(b.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	out := &Written{Dir: b.OutputDir}
	m := manifest{
		Config:    b.Config,
		RunID:     b.RunID,
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		Documents: []manifestDocument{},
		Assets:    []string{},
		Warnings:  b.Warnings,
	}
	if m.Warnings == nil {
		m.Warnings = []string{}
	}

	for _, doc := range b.Documents {
		source := relTo(b.VaultRoot, doc.OriginalPath)
		target := documentPath(source)

		text, err := markdown.RenderFrontmatter(doc.Metadata, doc.Markdown)
		if err != nil {
			out.Failures = append(out.Failures, fmt.Sprintf("Failed to generate document for %s: %v", filepath.Base(doc.OriginalPath), err))
			continue
		}
		if err := atomicfile.WriteFile(filepath.Join(b.OutputDir, filepath.FromSlash(target)), []byte(text), 0o644); err != nil {
			out.Failures = append(out.Failures, fmt.Sprintf("Failed to write %s: %v", target, err))
			continue
		}
		out.Documents = append(out.Documents, target)
		m.Documents = append(m.Documents, manifestDocument{Source: source, Path: target, Assets: len(doc.Assets)})
	}

	for _, asset := range b.Assets {
		target := path.Join(AssetsDir, relTo(b.VaultRoot, asset))
		if err := atomicfile.CopyFile(asset, filepath.Join(b.OutputDir, filepath.FromSlash(target))); err != nil {
			out.Failures = append(out.Failures, fmt.Sprintf("Failed to copy asset %s: %v", filepath.Base(asset), err))
			continue
		}
		out.Assets = append(out.Assets, target)
		m.Assets = append(m.Assets, target)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return out, fmt.Errorf("encode manifest: %w", err)
	}
	if err := atomicfile.WriteFile(filepath.Join(b.OutputDir, ManifestName), append(data, '\n'), 0o644); err != nil {
		return out, fmt.Errorf("write manifest: %w", err)
	}
	return out, nil
}

// documentPath maps a vault-relative note path to its bundle path.
func documentPath(rel string) string {
	return path.Join(path.Dir(rel), paths.Stem(rel)+".md")
}

// relTo returns p relative to root with forward slashes, or its base name
// when p is outside root.
func relTo(root, p string) string {
	if err := paths.ValidateWithinVault(root, p); err != nil {
		return filepath.Base(p)
	}
	rel, err := paths.Rel(root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return rel
}
