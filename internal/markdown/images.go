package markdown

import (
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var imageParser = goldmark.New().Parser()

// ImageRefs returns the destinations of standard markdown images in source
// order. Code blocks and code spans are never scanned. Percent-encoded
// destinations are decoded.
func ImageRefs(content string) []string {
	if !strings.Contains(content, "![") {
		return nil
	}
	src := []byte(content)
	doc := imageParser.Parse(text.NewReader(src))

	var refs []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := strings.TrimSpace(string(img.Destination))
		if dest == "" {
			return ast.WalkContinue, nil
		}
		if decoded, err := url.PathUnescape(dest); err == nil {
			dest = decoded
		}
		refs = append(refs, dest)
		return ast.WalkContinue, nil
	})
	return refs
}

// IsExternalRef reports whether an image destination points outside the
// vault: a URL or an absolute path.
func IsExternalRef(dest string) bool {
	lower := strings.ToLower(dest)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(dest, "/")
}
