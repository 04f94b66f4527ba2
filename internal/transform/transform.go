// Package transform rewrites one Obsidian note into portable markdown:
// frontmatter is split off, wikilinks become standard links and images,
// callouts and block ids are normalized, and referenced assets are
// collected.
package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aidanlsb/ferry/internal/logging"
	"github.com/aidanlsb/ferry/internal/markdown"
	"github.com/aidanlsb/ferry/internal/paths"
	"github.com/aidanlsb/ferry/internal/resolver"
	"github.com/aidanlsb/ferry/internal/slugs"
	"github.com/aidanlsb/ferry/internal/vault"
	"github.com/aidanlsb/ferry/internal/wikilink"
)

// Content is the result of transforming one note.
type Content struct {
	OriginalPath string
	Markdown     string
	Metadata     map[string]any

	// Assets are absolute paths of referenced files, first-seen order, no
	// duplicates.
	Assets   []string
	Warnings []string
}

// Normalizer rewrites a markdown body. Callout and block reference
// normalizers implement it.
type Normalizer interface {
	Normalize(text string) string
}

// LinkResolver resolves a wikilink found in currentFile.
type LinkResolver interface {
	ResolveFrom(ctx context.Context, link wikilink.Link, idx *vault.Index, currentFile string) resolver.Resolved
}

// Observer is told about every link outcome, in source order.
type Observer func(path string, r resolver.Resolved)

// Transformer turns notes into portable markdown. It holds no per-call
// state and is safe for concurrent use when its collaborators are.
type Transformer struct {
	links     wikilink.Extractor
	resolver  LinkResolver
	callouts  Normalizer
	blockRefs Normalizer

	fileExists func(string) bool
	observer   Observer
	logger     logging.Logger
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithFileExists replaces the check used for relative image references.
func WithFileExists(fn func(string) bool) Option {
	return func(t *Transformer) {
		if fn != nil {
			t.fileExists = fn
		}
	}
}

// WithObserver installs a hook called for each link outcome.
func WithObserver(fn Observer) Option {
	return func(t *Transformer) { t.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Transformer) { t.logger = logging.OrNoOp(l) }
}

// New creates a Transformer from its collaborators.
func New(links wikilink.Extractor, res LinkResolver, callouts, blockRefs Normalizer, opts ...Option) *Transformer {
	t := &Transformer{
		links:      links,
		resolver:   res,
		callouts:   callouts,
		blockRefs:  blockRefs,
		fileExists: fileExists,
		logger:     logging.NoOp(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Default returns a Transformer wired with the standard scanner and
// normalizers around res.
func Default(res LinkResolver, opts ...Option) *Transformer {
	return New(wikilink.NewScanner(), res, markdown.NewCalloutNormalizer(), markdown.NewBlockRefNormalizer(), opts...)
}

type edit struct {
	start, end int
	text       string
}

// Transform converts the raw text of the note at path. It never fails:
// unresolvable links stay as written and are reported in Warnings.
func (t *Transformer) Transform(ctx context.Context, path, raw string, idx *vault.Index) Content {
	out := Content{OriginalPath: path, Metadata: map[string]any{}}
	if raw == "" {
		return out
	}

	body, meta := markdown.ExtractFrontmatter(raw)
	out.Metadata = meta

	name := filepath.Base(path)
	current := idx.Rel(path)
	assets := newAssetSet()

	var edits []edit
	for _, link := range t.links.Extract(body) {
		if link.IsSameNote() {
			edits = append(edits, edit{link.Start, link.End, sameNoteLink(link)})
			continue
		}

		res := t.Resolve(ctx, link, idx, current)
		t.observe(path, res)
		if res.IsBroken() {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"Broken wikilink '%s' in %s: target '%s' not found", link.Original, name, link.Target))
			t.logger.Debug("transform: broken wikilink", "file", current, "link", link.Original)
			continue
		}

		edits = append(edits, edit{link.Start, link.End, Rewrite(res)})
		if link.IsEmbed {
			assets.add(res.Path)
		}
	}

	text := applyEdits(body, edits)
	text = t.callouts.Normalize(text)
	text = t.blockRefs.Normalize(text)

	dir := filepath.Dir(path)
	for _, ref := range markdown.ImageRefs(text) {
		if markdown.IsExternalRef(ref) {
			continue
		}
		candidate := filepath.Clean(filepath.Join(dir, filepath.FromSlash(ref)))
		if err := paths.ValidateWithinVault(idx.Root, candidate); err != nil {
			t.logger.Debug("transform: image outside vault", "file", current, "ref", ref)
			continue
		}
		if t.fileExists(candidate) {
			assets.add(candidate)
		}
	}

	out.Markdown = text
	out.Assets = assets.list
	return out
}

// Resolve resolves one link the way Transform does: embeds of vault
// attachments first, then the link resolver. currentFile is vault-relative.
func (t *Transformer) Resolve(ctx context.Context, link wikilink.Link, idx *vault.Index, currentFile string) resolver.Resolved {
	if link.Target == "" {
		return resolver.Resolved{Link: link, Method: resolver.MethodFailed}
	}
	if link.IsEmbed {
		if asset, ok := attachment(link, idx); ok {
			return resolver.Resolved{Link: link, Path: asset, Method: resolver.MethodAsset, Confidence: 1}
		}
	}
	return t.resolver.ResolveFrom(ctx, link, idx, currentFile)
}

func (t *Transformer) observe(path string, r resolver.Resolved) {
	if t.observer != nil {
		t.observer(path, r)
	}
}

// Rewrite returns the markdown Transform writes for a resolved link.
// Embeds point at the resolved file name; links point at its stem plus
// header and block anchors. A same-note link becomes an anchor and a
// broken link stays as written.
func Rewrite(r resolver.Resolved) string {
	link := r.Link
	if link.IsSameNote() {
		return sameNoteLink(link)
	}
	if r.IsBroken() {
		return link.Original
	}
	if link.IsEmbed {
		return imageRef(link.Display(), filepath.Base(r.Path))
	}
	dest := paths.Stem(r.Path) + anchors(link)
	return "[" + link.Display() + "](" + destination(dest) + ")"
}

// sameNoteLink renders [[#Heading]] and [[#^block]] as in-page links.
func sameNoteLink(link wikilink.Link) string {
	display := link.Alias
	if display == "" {
		display = link.Header
	}
	if display == "" {
		display = link.BlockID
	}
	return "[" + display + "](" + destination(anchors(link)) + ")"
}

func anchors(link wikilink.Link) string {
	var b strings.Builder
	if link.Header != "" {
		b.WriteString("#" + slugs.HeadingSlug(link.Header))
	}
	if link.BlockID != "" {
		b.WriteString("#" + link.BlockID)
	}
	return b.String()
}

func imageRef(alt, dest string) string {
	return "![" + alt + "](" + destination(dest) + ")"
}

// destination wraps link targets that would otherwise end the link early.
func destination(dest string) string {
	if strings.ContainsAny(dest, " ()") {
		return "<" + dest + ">"
	}
	return dest
}

// attachment finds the vault file a non-note embed points at.
func attachment(link wikilink.Link, idx *vault.Index) (string, bool) {
	ext := filepath.Ext(link.Target)
	if ext == "" || strings.EqualFold(ext, ".md") {
		return "", false
	}
	return idx.LookupAsset(link.Target)
}

// applyEdits splices replacements into text from the back so earlier
// offsets stay valid.
func applyEdits(text string, edits []edit) string {
	if len(edits) == 0 {
		return text
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	for _, e := range edits {
		text = text[:e.start] + e.text + text[e.end:]
	}
	return text
}

type assetSet struct {
	seen map[string]bool
	list []string
}

func newAssetSet() *assetSet {
	return &assetSet{seen: make(map[string]bool)}
}

func (s *assetSet) add(p string) {
	if p == "" || s.seen[p] {
		return
	}
	s.seen[p] = true
	s.list = append(s.list, p)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
