// Package markdown handles the Obsidian-flavored markdown constructs a vault
// export has to normalize: YAML frontmatter, callouts, block references,
// code regions, and standard image references.
package markdown

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontmatterBounds returns the index of the closing '---' line.
// It only detects frontmatter when the first line is '---'. ok is false when
// there is no opening delimiter or the block is never closed.
func FrontmatterBounds(lines []string) (end int, ok bool) {
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != "---" {
		return -1, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == "---" {
			return i, true
		}
	}
	return -1, false
}

// ParseFrontmatter decodes a raw YAML block into a string-keyed map.
// An empty document yields an empty map. A document whose root is not a
// mapping is an error.
func ParseFrontmatter(raw string) (map[string]any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter as YAML: %w", err)
	}
	if node.Kind == 0 || len(node.Content) == 0 {
		return map[string]any{}, nil
	}
	if root := node.Content[0]; root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("frontmatter must be a mapping, got %s", kindName(root.Kind))
	}

	var data map[string]any
	if err := node.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode frontmatter: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	for k, v := range data {
		data[k] = normalizeValue(v)
	}
	return data, nil
}

// normalizeValue rewrites nested maps decoded with non-string keys, such as
// integer keys, into map[string]any so metadata stays JSON encodable.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			val[k] = normalizeValue(inner)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		for i, inner := range val {
			val[i] = normalizeValue(inner)
		}
		return val
	default:
		return v
	}
}

// ExtractFrontmatter splits text into body and metadata. It never fails: when
// the header is missing, unclosed, or not valid YAML, the whole text is the
// body and the metadata is empty.
func ExtractFrontmatter(text string) (string, map[string]any) {
	if !strings.HasPrefix(text, "---") {
		return text, map[string]any{}
	}
	lines := strings.SplitAfter(text, "\n")
	trimmed := make([]string, len(lines))
	for i, l := range lines {
		trimmed[i] = strings.TrimSuffix(l, "\n")
	}

	end, ok := FrontmatterBounds(trimmed)
	if !ok {
		return text, map[string]any{}
	}

	meta, err := ParseFrontmatter(strings.Join(trimmed[1:end], "\n"))
	if err != nil {
		return text, map[string]any{}
	}
	return strings.Join(lines[end+1:], ""), meta
}

// RenderFrontmatter emits metadata as a '---' delimited YAML header
// followed by body. Empty metadata returns body unchanged.
func RenderFrontmatter(meta map[string]any, body string) (string, error) {
	if len(meta) == 0 {
		return body, nil
	}
	out, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n")
	sb.WriteString(body)
	return sb.String(), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}
