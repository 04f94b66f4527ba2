// Package resolver maps wikilink targets to vault files.
//
// Resolution order, first hit wins:
//  1. exact relative path
//  2. exact relative path with ".md" appended
//  3. file stem of the last path component
//  4. optional fallback (language-model assisted)
//  5. failed
//
// Header and block suffixes never take part in lookup.
package resolver

import (
	"context"
	"strings"

	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/vault"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

// Method names how a link was resolved.
type Method string

const (
	MethodExact    Method = "exact"
	MethodFilename Method = "filename"
	MethodAIFuzzy  Method = "ai-fuzzy-match"
	MethodFailed   Method = "failed"

	// MethodAsset marks an embed served by a vault attachment rather than a
	// note. The resolver never produces it; the transformer does.
	MethodAsset Method = "asset"
)

// Resolved is a wikilink paired with its resolution outcome.
type Resolved struct {
	Link wikilink.Link

	// Path is the absolute file path, empty when the link is broken.
	Path       string
	Method     Method
	Confidence float64
}

// IsBroken reports whether the link could not be resolved.
func (r Resolved) IsBroken() bool {
	return r.Path == ""
}

// Fallback resolves links the deterministic steps could not. vaultFiles are
// root-relative markdown paths; a returned Path must be one of them.
// Implementations return nil for "no answer" and never fail.
type Fallback interface {
	ResolveWikilink(ctx context.Context, link wikilink.Link, vaultFiles []string, currentFile string) *Resolved
}

// Default confidences for deterministic matches.
const (
	DefaultExactConfidence    = 1.0
	DefaultFilenameConfidence = 0.9
)

// Resolver resolves wikilinks against a vault index.
type Resolver struct {
	fallback           Fallback
	exactConfidence    float64
	filenameConfidence float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallback installs an assisted fallback. Without one, links that miss
// every deterministic step fail.
func WithFallback(f Fallback) Option {
	return func(r *Resolver) { r.fallback = f }
}

// WithConfidence overrides the confidences reported for exact and filename
// matches.
func WithConfidence(exact, filename float64) Option {
	return func(r *Resolver) {
		r.exactConfidence = exact
		r.filenameConfidence = filename
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		exactConfidence:    DefaultExactConfidence,
		filenameConfidence: DefaultFilenameConfidence,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasFallback reports whether an assisted fallback is installed.
func (r *Resolver) HasFallback() bool {
	return r.fallback != nil
}

// Resolve resolves a link with no current-file context.
func (r *Resolver) Resolve(ctx context.Context, link wikilink.Link, idx *vault.Index) Resolved {
	return r.ResolveFrom(ctx, link, idx, "")
}

// ResolveFrom resolves a link found in currentFile (a root-relative path,
// used only as context for the fallback). It always returns a result.
func (r *Resolver) ResolveFrom(ctx context.Context, link wikilink.Link, idx *vault.Index, currentFile string) Resolved {
	target := strings.ReplaceAll(strings.TrimSpace(link.Target), `\`, "/")

	if target != "" {
		if p, ok := idx.LookupPath(target); ok {
			return Resolved{Link: link, Path: p, Method: MethodExact, Confidence: r.exactConfidence}
		}
		if p, ok := idx.LookupPath(target + ".md"); ok {
			return Resolved{Link: link, Path: p, Method: MethodExact, Confidence: r.exactConfidence}
		}
		if p, ok := idx.LookupStem(stemOf(target)); ok {
			return Resolved{Link: link, Path: p, Method: MethodFilename, Confidence: r.filenameConfidence}
		}
	}

	if r.fallback != nil && target != "" {
		if res := r.fallback.ResolveWikilink(ctx, link, idx.RelativePaths(), currentFile); res != nil {
			out := *res
			out.Link = link
			if abs, ok := idx.LookupPath(out.Path); ok {
				out.Path = abs
			}
			if !out.IsBroken() {
				return out
			}
		}
	}

	return Resolved{Link: link, Method: MethodFailed, Confidence: 0}
}

// ResolveAll resolves links in order.
func (r *Resolver) ResolveAll(ctx context.Context, links []wikilink.Link, idx *vault.Index, currentFile string) []Resolved {
	out := make([]Resolved, 0, len(links))
	for _, l := range links {
		out = append(out, r.ResolveFrom(ctx, l, idx, currentFile))
	}
	return out
}

// stemOf returns the last path component without a trailing ".md".
// Other extensions are kept: "report.v2" stays "report.v2".
func stemOf(target string) string {
	last := target
	if i := strings.LastIndex(last, "/"); i >= 0 {
		last = last[i+1:]
	}
	return paths.TrimMarkdownExt(last)
}
