package ui

import (
	"os"

	"github.com/charmbracelet/x/term"
)

// DefaultTermWidth is used when the output is not a terminal or its size
// cannot be read.
const DefaultTermWidth = 120

// minContentWidth keeps previews readable in very narrow terminals.
const minContentWidth = 40

// DisplayContext describes where output is going.
type DisplayContext struct {
	TermWidth int
	IsTTY     bool
}

// NewDisplayContext describes stdout.
func NewDisplayContext() *DisplayContext {
	return NewDisplayContextFor(os.Stdout)
}

// NewDisplayContextFor describes f.
func NewDisplayContextFor(f *os.File) *DisplayContext {
	d := &DisplayContext{TermWidth: DefaultTermWidth}
	if f == nil {
		return d
	}
	fd := f.Fd()
	d.IsTTY = term.IsTerminal(fd)
	if d.IsTTY {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			d.TermWidth = w
		}
	}
	return d
}

// NewDisplayContextWithWidth returns a terminal context of a fixed width.
func NewDisplayContextWithWidth(width int) *DisplayContext {
	return &DisplayContext{TermWidth: width, IsTTY: true}
}

// AvailableWidth is the width left after margin columns, never below
// minContentWidth.
func (d *DisplayContext) AvailableWidth(margin int) int {
	return max(d.TermWidth-margin, minContentWidth)
}
