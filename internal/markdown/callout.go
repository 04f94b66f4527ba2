package markdown

import (
	"regexp"
	"strings"
)

// calloutHeaderRe matches "> [!type]" headers with an optional fold marker
// and custom title.
var calloutHeaderRe = regexp.MustCompile(`(?i)^(> )\[!(\w+)\]([+-]?)(.*)$`)

type calloutStyle struct {
	emoji string
	label string
}

var calloutStyles = map[string]calloutStyle{
	"note": {"📝", "Note"},

	"abstract": {"📄", "Abstract"},
	"summary":  {"📄", "Summary"},
	"tldr":     {"📄", "TL;DR"},

	"info": {"ℹ️", "Info"},
	"todo": {"✅", "Todo"},

	"tip":       {"💡", "Tip"},
	"hint":      {"💡", "Hint"},
	"important": {"💡", "Important"},

	"success": {"✅", "Success"},
	"check":   {"✅", "Check"},
	"done":    {"✅", "Done"},

	"question": {"❓", "Question"},
	"help":     {"❓", "Help"},
	"faq":      {"❓", "FAQ"},

	"warning":   {"⚠️", "Warning"},
	"caution":   {"⚠️", "Caution"},
	"attention": {"⚠️", "Attention"},

	"failure": {"❌", "Failure"},
	"fail":    {"❌", "Fail"},
	"missing": {"❌", "Missing"},

	"danger": {"⚡", "Danger"},
	"error":  {"⚡", "Error"},

	"bug":     {"🐛", "Bug"},
	"example": {"📋", "Example"},

	"quote": {"💬", "Quote"},
	"cite":  {"💬", "Cite"},
}

// CalloutNormalizer rewrites Obsidian callout headers into a plain
// blockquote with an emoji and bold label. The callout body is untouched.
type CalloutNormalizer struct{}

// NewCalloutNormalizer returns a callout normalizer.
func NewCalloutNormalizer() *CalloutNormalizer {
	return &CalloutNormalizer{}
}

// Normalize rewrites every callout header outside fenced code.
func (CalloutNormalizer) Normalize(text string) string {
	if !strings.Contains(text, "[!") {
		return text
	}
	lines := strings.Split(text, "\n")
	var fence Fence
	for i, line := range lines {
		if fence.Step(line) || fence.Open() {
			continue
		}
		m := calloutHeaderRe.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
		if m == nil {
			continue
		}
		lines[i] = m[1] + CalloutPrefix(m[2], strings.TrimSpace(m[4]))
	}
	return strings.Join(lines, "\n")
}

// CalloutPrefix renders the header text for a callout type. A custom title
// replaces the default label but keeps the type's emoji.
func CalloutPrefix(kind, title string) string {
	kind = strings.ToLower(kind)
	style, known := calloutStyles[kind]
	switch {
	case title != "" && known:
		return style.emoji + " **" + title + ":**"
	case title != "":
		return "**" + title + ":**"
	case known:
		return style.emoji + " **" + style.label + ":**"
	default:
		return "**" + titleCase(kind) + ":**"
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if upper {
			sb.WriteString(strings.ToUpper(string(r)))
		} else {
			sb.WriteRune(r)
		}
		upper = r == '_'
	}
	return sb.String()
}
