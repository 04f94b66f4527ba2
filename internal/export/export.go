// Package export runs a whole-vault conversion: analyze, index once,
// transform every note fail-soft, write the bundle, and record history.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/aidanlsb/ferry/internal/buildinfo"
	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/slugs"
	"github.com/aidanlsb/ferry/internal/transform"
	"github.com/aidanlsb/ferry/internal/vault"
)

// Options controls one export run.
type Options struct {
	VaultPath  string
	OutputPath string

	// PackageName names the bundle in its manifest. Defaults to a slug of
	// the vault directory name.
	PackageName string

	// ValidateOnly stops after the broken-link check.
	ValidateOnly bool

	// RequireObsidianDir makes a vault without .obsidian an error.
	RequireObsidianDir bool

	// Progress receives human-readable status lines.
	Progress func(string)
}

// VaultInfo summarizes the analyzed vault.
type VaultInfo struct {
	Root        string `json:"root"`
	IsObsidian  bool   `json:"is_obsidian"`
	TotalFiles  int    `json:"total_files"`
	TotalAssets int    `json:"total_assets"`
	TotalLinks  int    `json:"total_links"`
}

// Result is the outcome of a run. Errors holds per-file failures; a
// non-nil error from Run means the run could not proceed at all.
type Result struct {
	RunID           string
	OutputPath      string
	FilesProcessed  int
	AssetsProcessed int
	Warnings        []string
	Errors          []string
	BrokenLinks     []string
	Duration        time.Duration
	Vault           VaultInfo
	Documents       []transform.Content
}

// Exporter wires the conversion pipeline.
type Exporter struct {
	fs       vault.FileSystem
	fallback resolver.Fallback
	writer   Writer
	history  History
	logger   logging.Logger
	now      func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithFileSystem replaces the OS file system.
func WithFileSystem(fs vault.FileSystem) Option {
	return func(e *Exporter) { e.fs = fs }
}

// WithFallback installs an assisted resolver fallback.
func WithFallback(f resolver.Fallback) Option {
	return func(e *Exporter) { e.fallback = f }
}

// WithWriter replaces the directory bundle writer.
func WithWriter(w Writer) Option {
	return func(e *Exporter) { e.writer = w }
}

// WithHistory records every run in h.
func WithHistory(h History) Option {
	return func(e *Exporter) { e.history = h }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Exporter) { e.logger = logging.OrNoOp(l) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New creates an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		fs:     vault.NewOSFileSystem(),
		writer: NewBundleWriter(),
		logger: logging.NoOp(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.history == nil {
		e.history = noHistory{}
	}
	return e
}

// Resolver returns the resolver exports use, with the fallback when one is
// installed.
func (e *Exporter) Resolver() *resolver.Resolver {
	if e.fallback != nil {
		return resolver.New(resolver.WithFallback(e.fallback))
	}
	return resolver.New()
}

// Run exports opts.VaultPath. It fails only when the vault is missing, the
// index cannot be built, or ctx ends mid-run; everything else is collected
// into the Result.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Result, error) {
	start := e.now()
	result := &Result{}
	defer func() { result.Duration = e.now().Sub(start) }()

	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}

	progress("Scanning vault structure...")
	structure, err := vault.Analyze(e.fs, opts.VaultPath, vault.AnalyzeOptions{RequireObsidianDir: opts.RequireObsidianDir})
	if err != nil {
		return nil, err
	}
	result.Vault = VaultInfo{
		Root:        structure.Root,
		IsObsidian:  structure.IsObsidian,
		TotalFiles:  len(structure.MarkdownFiles),
		TotalAssets: len(structure.AssetFiles),
		TotalLinks:  structure.TotalLinks(),
	}
	if !structure.IsObsidian {
		e.logger.Warn("export: no .obsidian directory, treating as a plain folder", "root", structure.Root)
	}

	progress("Building vault index...")
	idx, err := vault.BuildIndex(e.fs, structure.Root)
	if err != nil {
		return nil, fmt.Errorf("build vault index: %w", err)
	}

	result.BrokenLinks = FindBrokenLinks(ctx, structure, idx)
	if opts.ValidateOnly {
		return result, nil
	}

	run := e.beginRun(ctx, structure.Root, start, result)
	result.RunID = run.id

	var pending []resolver.Resolved
	tr := transform.Default(e.Resolver(),
		transform.WithFileExists(e.fs.FileExists),
		transform.WithLogger(e.logger),
		transform.WithObserver(func(_ string, r resolver.Resolved) { pending = append(pending, r) }),
	)

	progress("Transforming content...")
	assets := newAssetSet()
	err = vault.WalkMarkdownFiles(e.fs, idx, func(f vault.WalkResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := filepath.Base(f.Path)
		progress(fmt.Sprintf("Processing %s...", name))
		rec := FileRecord{Source: f.RelativePath}
		if f.Error != nil {
			rec.Failure = fmt.Sprintf("Failed to read %s: %v", name, f.Error)
			run.record(ctx, rec)
			return nil
		}

		pending = pending[:0]
		content, err := safeTransform(ctx, tr, f.Path, f.Content, idx)
		rec.Resolutions = pending
		if err != nil {
			rec.Failure = fmt.Sprintf("Failed to transform %s: %v", name, err)
			run.record(ctx, rec)
			return nil
		}

		rec.Warnings = content.Warnings
		run.record(ctx, rec)

		result.Documents = append(result.Documents, content)
		result.Warnings = append(result.Warnings, content.Warnings...)
		for _, a := range content.Assets {
			assets.add(a)
		}
		result.FilesProcessed++
		return nil
	})
	if err != nil {
		run.finish(ctx)
		return result, fmt.Errorf("export cancelled: %w", err)
	}

	for _, a := range structure.AssetFiles {
		assets.add(a)
	}
	result.AssetsProcessed = len(assets.list)

	progress("Writing bundle...")
	out := opts.OutputPath
	if out == "" {
		out = filepath.Join(filepath.Dir(structure.Root), slugs.BundleName(structure.Root)+"-export")
	}
	name := opts.PackageName
	if name == "" {
		name = slugs.BundleName(structure.Root)
	}
	written, err := e.writer.Write(&Bundle{
		VaultRoot: structure.Root,
		OutputDir: out,
		Documents: result.Documents,
		Assets:    assets.list,
		Warnings:  result.Warnings,
		Config: PackageConfig{
			Name:        name,
			Description: "Converted from Obsidian vault: " + filepath.Base(structure.Root),
			Version:     "1.0",
			CreatedBy:   "ferry " + buildinfo.String(),
		},
		RunID:     run.id,
		CreatedAt: start,
	})
	if written != nil {
		result.Errors = append(result.Errors, written.Failures...)
		result.OutputPath = written.Dir
	}
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Export failed: %v", err))
	}

	run.finish(ctx)
	progress(fmt.Sprintf("Export completed! Bundle written to %s", out))
	return result, nil
}

// FindBrokenLinks lists links that deterministic resolution cannot serve,
// as "<source> → <link>", sources in path order. Attachment embeds that
// match a vault file and same-note anchors are not broken.
func FindBrokenLinks(ctx context.Context, s *vault.Structure, idx *vault.Index) []string {
	sources := make([]string, 0, len(s.Links))
	for rel := range s.Links {
		sources = append(sources, rel)
	}
	sort.Strings(sources)

	res := resolver.New()
	var broken []string
	for _, rel := range sources {
		for _, link := range s.Links[rel] {
			if link.IsSameNote() {
				continue
			}
			if link.IsEmbed {
				if _, ok := idx.LookupAsset(link.Target); ok {
					continue
				}
			}
			if res.Resolve(ctx, link, idx).IsBroken() {
				broken = append(broken, rel+" → "+link.Original)
			}
		}
	}
	return broken
}

func safeTransform(ctx context.Context, tr *transform.Transformer, path, raw string, idx *vault.Index) (content transform.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tr.Transform(ctx, path, raw, idx), nil
}

type assetSet struct {
	seen map[string]bool
	list []string
}

func newAssetSet() *assetSet {
	return &assetSet{seen: make(map[string]bool)}
}

func (s *assetSet) add(p string) {
	if s.seen[p] {
		return
	}
	s.seen[p] = true
	s.list = append(s.list, p)
}
