// Package fallback asks the language-model assistant for help when the
// deterministic parsers are not enough: unresolved wikilinks, deeply nested
// callouts, and ambiguous bracket syntax.
package fallback

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/aidanlsb/ferry/internal/assist"
	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

// Complexity grades how hard a piece of markdown is to parse with rules.
type Complexity string

const (
	Simple    Complexity = "simple"
	Complex   Complexity = "complex"
	Ambiguous Complexity = "ambiguous"
)

// DefaultConfidenceThreshold is the confidence below which a deterministic
// result should be handed to the fallback.
const DefaultConfidenceThreshold = 0.7

// Assistant is the subset of *assist.Assistant the parser needs.
type Assistant interface {
	IsAvailable() bool
	GetAssistance(ctx context.Context, req assist.Request) *assist.Response
}

type linkKey struct {
	original    string
	currentFile string
}

// Parser is the assisted fallback. It satisfies resolver.Fallback.
type Parser struct {
	assistant            Assistant
	threshold            float64
	cacheEnabled         bool
	lowConfidenceMethods map[resolver.Method]bool
	logger               logging.Logger

	links      map[linkKey]resolver.Resolved
	structures map[string]map[string]any
}

// Option configures a Parser.
type Option func(*Parser)

// WithConfidenceThreshold sets the threshold used by ShouldUseFallback.
func WithConfidenceThreshold(v float64) Option {
	return func(p *Parser) { p.threshold = v }
}

// WithCache enables or disables result caching (default enabled).
func WithCache(enabled bool) Option {
	return func(p *Parser) { p.cacheEnabled = enabled }
}

// WithLowConfidenceMethods replaces the methods that always warrant a
// fallback attempt.
func WithLowConfidenceMethods(methods ...resolver.Method) Option {
	return func(p *Parser) {
		p.lowConfidenceMethods = make(map[resolver.Method]bool, len(methods))
		for _, m := range methods {
			p.lowConfidenceMethods[m] = true
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Parser) { p.logger = logging.OrNoOp(l) }
}

// New creates a Parser around an assistant.
func New(assistant Assistant, opts ...Option) *Parser {
	p := &Parser{
		assistant:    assistant,
		threshold:    DefaultConfidenceThreshold,
		cacheEnabled: true,
		lowConfidenceMethods: map[resolver.Method]bool{
			"fuzzy_match":   true,
			"partial_match": true,
		},
		logger:     logging.NoOp(),
		links:      make(map[linkKey]resolver.Resolved),
		structures: make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) available() bool {
	return p != nil && p.assistant != nil && p.assistant.IsAvailable()
}

var (
	tripleBracketRe = regexp.MustCompile(`\[\[\[.*?\]\]\]`)
	quotePrefixRe   = regexp.MustCompile(`^(>\s*)+`)
	nestedCalloutRe = regexp.MustCompile(`>\s*>\s*\[!`)
	quotedLinkRe    = regexp.MustCompile(`>\s*.*?\[\[.*?\]\]`)
	trailingBlockRe = regexp.MustCompile(`(?m)\^[a-zA-Z0-9\-_]+\s*$`)
)

// AssessComplexity grades content. Triple brackets are ambiguous; quote
// nesting deeper than two, or two of (nested callout, wikilink inside a
// quote, trailing block id), is complex.
func AssessComplexity(content string) Complexity {
	if tripleBracketRe.MatchString(content) {
		return Ambiguous
	}
	if quoteDepth(content) > 2 {
		return Complex
	}

	factors := 0
	for _, re := range []*regexp.Regexp{nestedCalloutRe, quotedLinkRe, trailingBlockRe} {
		if re.MatchString(content) {
			factors++
		}
	}
	if factors >= 2 {
		return Complex
	}
	return Simple
}

func quoteDepth(content string) int {
	deepest := 0
	for _, line := range strings.Split(content, "\n") {
		prefix := quotePrefixRe.FindString(line)
		if n := strings.Count(prefix, ">"); n > deepest {
			deepest = n
		}
	}
	return deepest
}

// ResolveWikilink implements resolver.Fallback.
func (p *Parser) ResolveWikilink(ctx context.Context, link wikilink.Link, vaultFiles []string, currentFile string) *resolver.Resolved {
	return p.ResolveWikilinkWithContext(ctx, link, vaultFiles, currentFile, nil)
}

// ResolveWikilinkWithContext asks the assistant which vault file a link
// means. extra is merged into the request context. The answer must name one
// of vaultFiles; anything else is treated as no answer.
func (p *Parser) ResolveWikilinkWithContext(ctx context.Context, link wikilink.Link, vaultFiles []string, currentFile string, extra map[string]any) *resolver.Resolved {
	if !p.available() {
		return nil
	}

	key := linkKey{original: link.Original, currentFile: currentFile}
	if p.cacheEnabled {
		if cached, ok := p.links[key]; ok {
			return &cached
		}
	}

	reqCtx := map[string]any{
		"vault_files":  vaultFiles,
		"current_file": currentFile,
	}
	for k, v := range extra {
		reqCtx[k] = v
	}

	resp := p.assistant.GetAssistance(ctx, assist.Request{
		Type:    assist.WikilinkResolution,
		Content: link.Original,
		Context: reqCtx,
	})
	if resp == nil {
		return nil
	}

	match, ok := matchVaultFile(resp.Content, vaultFiles)
	if !ok {
		p.logger.Debug("fallback: answer is not a vault file", "link", link.Original, "answer", resp.Content)
		return nil
	}

	result := resolver.Resolved{
		Link:       link,
		Path:       match,
		Method:     resolver.MethodAIFuzzy,
		Confidence: resp.Confidence,
	}
	if p.cacheEnabled {
		p.links[key] = result
	}
	return &result
}

// matchVaultFile accepts an exact vault path (with or without ".md"), or a
// bare file name that identifies exactly one vault file.
func matchVaultFile(answer string, vaultFiles []string) (string, bool) {
	answer = paths.NormalizeRel(strings.Trim(strings.TrimSpace(answer), "\"'`"))
	if answer == "" {
		return "", false
	}
	for _, f := range vaultFiles {
		if f == answer || f == answer+".md" {
			return f, true
		}
	}

	base := path.Base(answer)
	if !paths.IsMarkdown(base) {
		base += ".md"
	}
	var found string
	for _, f := range vaultFiles {
		if path.Base(f) == base {
			if found != "" {
				return "", false
			}
			found = f
		}
	}
	return found, found != ""
}

// ParseComplexStructure asks for a JSON rendering of nested content.
// Results are cached by content. Returns nil without an answer.
func (p *Parser) ParseComplexStructure(ctx context.Context, content string) map[string]any {
	if !p.available() {
		return nil
	}
	if p.cacheEnabled {
		if cached, ok := p.structures[content]; ok {
			return cached
		}
	}

	resp := p.assistant.GetAssistance(ctx, assist.Request{
		Type:    assist.ComplexStructure,
		Content: content,
		Context: map[string]any{"parse_type": "nested_callouts"},
	})
	if resp == nil {
		return nil
	}

	parsed, ok := assist.ExtractJSONObject(resp.Content)
	if !ok {
		return nil
	}
	if p.cacheEnabled {
		p.structures[content] = parsed
	}
	return parsed
}

// ParseAmbiguousSyntax asks how ambiguous syntax was meant. A non-JSON
// answer comes back as {"interpretation": "unknown", "content": answer}.
func (p *Parser) ParseAmbiguousSyntax(ctx context.Context, content string) map[string]any {
	if !p.available() {
		return nil
	}

	resp := p.assistant.GetAssistance(ctx, assist.Request{
		Type:    assist.AmbiguousSyntax,
		Content: content,
		Context: map[string]any{"syntax_type": "brackets"},
	})
	if resp == nil {
		return nil
	}

	if parsed, ok := assist.ExtractJSONObject(resp.Content); ok {
		return parsed
	}
	return map[string]any{"interpretation": "unknown", "content": resp.Content}
}

// ShouldUseFallback reports whether a result is weak enough to retry with
// assistance: confidence under the threshold, or a low-confidence method.
func (p *Parser) ShouldUseFallback(r resolver.Resolved) bool {
	return r.Confidence < p.threshold || p.lowConfidenceMethods[r.Method]
}

// ResolveBatch resolves links one at a time and keeps only the successes.
func (p *Parser) ResolveBatch(ctx context.Context, links []wikilink.Link, vaultFiles []string, currentFile string) []resolver.Resolved {
	out := []resolver.Resolved{}
	if !p.available() {
		return out
	}
	for _, l := range links {
		if r := p.ResolveWikilink(ctx, l, vaultFiles, currentFile); r != nil {
			out = append(out, *r)
		}
	}
	return out
}
