package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a borderless, left-aligned table for summaries. Cells may
// carry ANSI styling; alignment uses the visible width.
type Table struct {
	cols int
	rows [][]string
}

// NewTable returns a table with cols columns. Extra cells are dropped.
func NewTable(cols int) *Table {
	return &Table{cols: cols}
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, t.cols)
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// AddField appends a muted label and its value.
func (t *Table) AddField(label, value string) {
	t.AddRow(Hint(label), value)
}

// String renders the table. Columns are separated by two spaces and
// the last column is never padded.
func (t *Table) String() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := make([]int, t.cols)
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var sb strings.Builder
	for _, row := range t.rows {
		for i, cell := range row {
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// List renders indented bullet items.
type List struct {
	items []string
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Add appends an item.
func (l *List) Add(item string) {
	l.items = append(l.items, item)
}

// String renders every item as "  • item".
func (l *List) String() string {
	var sb strings.Builder
	for _, item := range l.items {
		sb.WriteString("  " + SymbolBullet + " " + item + "\n")
	}
	return sb.String()
}
