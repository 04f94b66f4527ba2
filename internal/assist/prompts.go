package assist

import (
	"fmt"
	"strings"
)

// MaxPromptFiles caps how many vault files a link prompt lists.
const MaxPromptFiles = 20

// FormatPrompt renders the provider prompt for a request.
func FormatPrompt(req Request) (Prompt, error) {
	var text string
	switch req.Type {
	case WikilinkResolution:
		text = wikilinkPrompt(req)
	case ComplexStructure:
		text = structurePrompt(req)
	case AmbiguousSyntax:
		text = ambiguousPrompt(req)
	default:
		return Prompt{}, fmt.Errorf("unknown request type: %q", req.Type)
	}
	return Prompt{Type: req.Type, Text: text}, nil
}

func wikilinkPrompt(req Request) string {
	files := stringList(req.Context["vault_files"])
	if len(files) > MaxPromptFiles {
		files = files[:MaxPromptFiles]
	}
	current := contextString(req.Context, "current_file")

	var list strings.Builder
	for _, f := range files {
		list.WriteString("- ")
		list.WriteString(f)
		list.WriteString("\n")
	}

	return fmt.Sprintf(`Help resolve this Obsidian wikilink to the best matching file.

Wikilink: %s
Current file: %s

Available files in vault:
%s
Find the best match based on:
1. Filename similarity
2. Path components
3. Common abbreviations or variations

Return only the filename that best matches, with your confidence level.`, req.Content, current, list.String())
}

func structurePrompt(req Request) string {
	return fmt.Sprintf(`Parse this complex markdown structure into a structured format.

Content:
%s

Parse type: %s

Return a JSON structure representing the parsed content with proper nesting.`,
		req.Content, contextString(req.Context, "parse_type"))
}

func ambiguousPrompt(req Request) string {
	return fmt.Sprintf(`Interpret this ambiguous markdown syntax.

Content: %s
Syntax type: %s

Determine the most likely intended syntax and return the corrected version.`,
		req.Content, contextString(req.Context, "syntax_type"))
}

func contextString(ctx map[string]any, key string) string {
	if v, ok := ctx[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
