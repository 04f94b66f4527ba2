// Package slugs holds the two slug strategies ferry uses:
//   - Anchor slugs: fragment IDs generated from heading text, used when a
//     wikilink like [[Note#Some Heading]] becomes [text](Note#some-heading).
//   - Name slugs: bundle and package names, built on gosimple/slug.
package slugs

import (
	"strings"
	"unicode"

	goslug "github.com/gosimple/slug"
)

// HeadingSlug converts heading text to a fragment anchor. Letters and
// digits are kept (lowercased), separators collapse to a single dash, and
// everything else is dropped.
func HeadingSlug(text string) string {
	var result strings.Builder
	prevDash := false

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevDash = false
		case r == ' ' || r == '-' || r == '_' || r == ':':
			if !prevDash && result.Len() > 0 {
				result.WriteRune('-')
				prevDash = true
			}
		}
	}

	return strings.TrimSuffix(result.String(), "-")
}

// NameSlug converts a vault or note name into a file-system and URL safe
// name. A trailing ".md" is dropped.
func NameSlug(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".md")
	slugged := goslug.Make(s)
	if slugged == "" {
		slugged = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	}
	return slugged
}

// BundleName derives the default package name for an export of the vault
// at root, falling back to "vault" when nothing usable remains.
func BundleName(root string) string {
	root = strings.TrimRight(strings.ReplaceAll(root, "\\", "/"), "/")
	if i := strings.LastIndex(root, "/"); i >= 0 {
		root = root[i+1:]
	}
	if name := NameSlug(root); name != "" {
		return name
	}
	return "vault"
}
