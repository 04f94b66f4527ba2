package markdown

import "strings"

// Fence tracks whether a line-by-line scan is inside a fenced code block.
type Fence struct {
	open  bool
	char  byte
	width int
}

// Open reports whether the scan is currently inside a fence.
func (f *Fence) Open() bool {
	return f.open
}

// Step advances the fence state by one line and reports whether the line is
// itself a fence marker (opening or closing).
func (f *Fence) Step(line string) bool {
	ch, n, ok := fenceMarker(line)
	if !ok {
		return false
	}
	if !f.open {
		f.open, f.char, f.width = true, ch, n
		return true
	}
	if ch == f.char && n >= f.width {
		f.open, f.char, f.width = false, 0, 0
		return true
	}
	return false
}

// fenceMarker detects ``` or ~~~ runs, looking through indentation and
// blockquote prefixes so fences inside callouts are tracked too.
func fenceMarker(line string) (byte, int, bool) {
	s := strings.TrimLeft(line, " \t")
	for strings.HasPrefix(s, ">") {
		s = strings.TrimLeft(s[1:], " \t")
	}
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return 0, 0, false
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return s[0], n, true
}

// BlankInlineCode replaces inline code spans (including their backticks)
// with spaces. Byte offsets are preserved. Unterminated runs are left as-is.
func BlankInlineCode(line string) string {
	if strings.IndexByte(line, '`') < 0 {
		return line
	}
	b := []byte(line)
	i := 0
	for i < len(b) {
		if b[i] != '`' {
			i++
			continue
		}
		start := i
		for i < len(b) && b[i] == '`' {
			i++
		}
		open := i - start

		for j := i; j < len(b); {
			if b[j] != '`' {
				j++
				continue
			}
			k := j
			for k < len(b) && b[k] == '`' {
				k++
			}
			if k-j == open {
				for x := start; x < k; x++ {
					b[x] = ' '
				}
				i = k
				break
			}
			j = k
		}
	}
	return string(b)
}

// MaskCode returns text with fenced code lines and inline code spans
// replaced by spaces. Newlines and byte offsets are preserved, so matches
// found in the mask can be applied to the original text.
func MaskCode(text string) string {
	if !strings.ContainsAny(text, "`~") {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	var fence Fence
	var sb strings.Builder
	sb.Grow(len(text))
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := len(line) - len(body)
		if fence.Step(body) || fence.Open() {
			sb.WriteString(strings.Repeat(" ", len(body)))
		} else {
			sb.WriteString(BlankInlineCode(body))
		}
		if nl > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// isIndentedCode reports whether a line is an indented code line.
func isIndentedCode(line string) bool {
	return strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t")
}
