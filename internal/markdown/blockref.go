package markdown

import (
	"regexp"
	"strings"
)

// blockRefRe matches a trailing "^block-id" and the content before it.
var blockRefRe = regexp.MustCompile(`^(.*?)\s*\^([a-zA-Z0-9\-_]+)\s*$`)

// BlockRefNormalizer turns trailing Obsidian block ids into HTML comments:
//
//	Some paragraph ^intro   ->   Some paragraph <!-- block: intro -->
//	^intro                  ->   <!-- block: intro -->
type BlockRefNormalizer struct{}

// NewBlockRefNormalizer returns a block reference normalizer.
func NewBlockRefNormalizer() *BlockRefNormalizer {
	return &BlockRefNormalizer{}
}

// Normalize rewrites block ids outside fenced, indented, and inline code.
func (BlockRefNormalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" || !strings.Contains(text, "^") {
		return text
	}
	lines := strings.Split(text, "\n")
	var fence Fence
	for i, line := range lines {
		if fence.Step(line) || fence.Open() || isIndentedCode(line) {
			continue
		}
		m := blockRefRe.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		// The id must survive inline-code blanking, otherwise it sits inside `code`.
		if masked := BlankInlineCode(line); masked[m[4]:m[5]] != line[m[4]:m[5]] {
			continue
		}
		content, id := line[m[2]:m[3]], line[m[4]:m[5]]
		comment := "<!-- block: " + id + " -->"
		if strings.TrimSpace(content) == "" {
			lines[i] = comment
		} else {
			lines[i] = strings.TrimRight(content, " \t") + " " + comment
		}
	}
	return strings.Join(lines, "\n")
}
