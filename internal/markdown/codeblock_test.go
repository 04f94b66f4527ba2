package markdown

import (
	"strings"
	"testing"
)

func TestFenceStep(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		wantOpen []bool
	}{
		{
			name:     "backtick fence",
			lines:    []string{"before", "```go", "x := 1", "```", "after"},
			wantOpen: []bool{false, true, true, false, false},
		},
		{
			name:     "tilde fence",
			lines:    []string{"~~~", "[[inside]]", "~~~"},
			wantOpen: []bool{true, true, false},
		},
		{
			name:     "shorter run does not close",
			lines:    []string{"````", "```", "still inside", "````", "out"},
			wantOpen: []bool{true, true, true, false, false},
		},
		{
			name:     "fence inside callout",
			lines:    []string{"> ```", "> code", "> ```", "plain"},
			wantOpen: []bool{true, true, false, false},
		},
		{
			name:     "two backticks are not a fence",
			lines:    []string{"``x``", "text"},
			wantOpen: []bool{false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Fence
			for i, line := range tt.lines {
				f.Step(line)
				if f.Open() != tt.wantOpen[i] {
					t.Errorf("line %d %q: open = %v, want %v", i, line, f.Open(), tt.wantOpen[i])
				}
			}
		})
	}
}

func TestBlankInlineCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"no code", "no code"},
		{"a `[[x]]` b", "a         b"},
		{"``a `b` c`` d", strings.Repeat(" ", 12) + "d"},
		{"unterminated `code", "unterminated `code"},
		{"`one` and `two`", strings.Repeat(" ", 6) + "and" + strings.Repeat(" ", 6)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := BlankInlineCode(tt.in)
			if got != tt.want {
				t.Errorf("BlankInlineCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if len(got) != len(tt.in) {
				t.Errorf("length changed: %d -> %d", len(tt.in), len(got))
			}
		})
	}
}

func TestMaskCode(t *testing.T) {
	in := "see [[A]]\n```\n[[B]]\n```\nand `[[C]]` [[D]]"
	got := MaskCode(in)
	if len(got) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(got))
	}
	want := "see [[A]]\n   \n     \n   \nand" + strings.Repeat(" ", 9) + "[[D]]"
	if got != want {
		t.Errorf("MaskCode() = %q, want %q", got, want)
	}
}
