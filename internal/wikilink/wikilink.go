// Package wikilink parses and scans Obsidian wikilinks.
//
// Wikilink grammar:
//
//	[[target]]
//	[[target|alias]]
//	[[target#header]]
//	[[target#^block-id]]
//	![[target]]            (embed)
//	[[#header]]            (same note)
//
// Notes:
//   - The alias splits on the first '|', the block id on the last '^' of the
//     target part, and the header on the first '#'.
//   - Every part is trimmed of surrounding whitespace.
//   - Header and block id are carried along for rendering only; they never
//     take part in resolving the target file.
package wikilink

import (
	"regexp"
	"strings"

	"github.com/aidanlsb/ferry/internal/markdown"
)

// Link is a wikilink token found in a document.
type Link struct {
	// Original is the exact literal, including brackets and the embed marker.
	Original string
	Target   string
	Alias    string
	Header   string
	BlockID  string
	IsEmbed  bool

	// Start and End are byte offsets of Original in the scanned text.
	Start int
	End   int
}

// IsSameNote reports whether the link points into the note it appears in,
// like [[#Heading]] or [[#^block]].
func (l Link) IsSameNote() bool {
	return l.Target == "" && (l.Header != "" || l.BlockID != "")
}

// Display returns the alias when present, else the target.
func (l Link) Display() string {
	if l.Alias != "" {
		return l.Alias
	}
	return l.Target
}

// re matches [[...]] and ![[...]]. The inner text cannot contain brackets.
var re = regexp.MustCompile(`!?\[\[([^\[\]]+)\]\]`)

// Parse parses a string that is exactly a wikilink literal.
func Parse(literal string) (Link, bool) {
	s := strings.TrimSpace(literal)
	embed := strings.HasPrefix(s, "!")
	inner := strings.TrimPrefix(s, "!")
	if !strings.HasPrefix(inner, "[[") || !strings.HasSuffix(inner, "]]") {
		return Link{}, false
	}
	inner = strings.TrimSuffix(strings.TrimPrefix(inner, "[["), "]]")
	if strings.ContainsAny(inner, "[]") {
		return Link{}, false
	}
	l, ok := parseInner(inner)
	if !ok {
		return Link{}, false
	}
	l.Original = s
	l.IsEmbed = embed
	l.End = len(s)
	return l, true
}

func parseInner(inner string) (Link, bool) {
	var l Link
	target := inner
	if i := strings.Index(target, "|"); i >= 0 {
		l.Alias = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	if i := strings.LastIndex(target, "^"); i >= 0 {
		l.BlockID = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	if i := strings.Index(target, "#"); i >= 0 {
		l.Header = strings.TrimSpace(target[i+1:])
		target = target[:i]
	}
	l.Target = strings.TrimSpace(target)
	if l.Target == "" && l.Header == "" && l.BlockID == "" && l.Alias == "" {
		return Link{}, false
	}
	return l, true
}

// Extractor finds wikilinks in a document body.
type Extractor interface {
	Extract(text string) []Link
}

// Scanner is the default Extractor. It skips fenced code blocks, inline
// code spans, and matches preceded by '[' such as [[[x]]].
type Scanner struct{}

// NewScanner returns a wikilink scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Extract implements Extractor.
func (Scanner) Extract(text string) []Link {
	return Extract(text)
}

// Extract returns all wikilinks in text in source order.
func Extract(text string) []Link {
	if !strings.Contains(text, "[[") {
		return nil
	}
	masked := markdown.MaskCode(text)

	var out []Link
	for _, m := range re.FindAllStringSubmatchIndex(masked, -1) {
		start, end := m[0], m[1]
		if prev := start - 1; prev >= 0 && masked[prev] == '[' {
			continue
		}
		l, ok := parseInner(text[m[2]:m[3]])
		if !ok {
			continue
		}
		l.Original = text[start:end]
		l.IsEmbed = text[start] == '!'
		l.Start, l.End = start, end
		out = append(out, l)
	}
	return out
}
