package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ColumnDef describes one column of a ResultsTable. Columns with a zero
// Share are fixed at Width; the rest split the remaining terminal width
// by Share and are clamped to [Width, MaxWidth].
type ColumnDef struct {
	Name     string
	Share    float64
	Width    int
	MaxWidth int
	Align    lipgloss.Position
	Style    lipgloss.Style
}

// ResultRow is one listing entry. Num is rendered when the layout starts
// with ColNum.
type ResultRow struct {
	Num   int
	Cells []string
}

// ResultsTable renders report listings: link resolutions, broken links,
// and export runs.
type ResultsTable struct {
	display *DisplayContext
	columns []ColumnDef
	rows    []ResultRow
	headers bool
}

const columnGap = 2

var (
	ColNum     = ColumnDef{Name: "#", Width: 4, Align: lipgloss.Right, Style: Muted}
	ColSource  = ColumnDef{Name: "source", Share: 0.3, Width: 12, MaxWidth: 50, Style: Muted}
	ColLink    = ColumnDef{Name: "link", Share: 0.35, Width: 16, MaxWidth: 80}
	ColTarget  = ColumnDef{Name: "resolved", Share: 0.35, Width: 16, MaxWidth: 80, Style: Accent}
	ColMethod  = ColumnDef{Name: "method", Width: 20, Style: Muted}
	ColRunID   = ColumnDef{Name: "run", Width: 36, Style: Accent}
	ColStarted = ColumnDef{Name: "started", Width: 20}
)

func countColumn(name string) ColumnDef {
	return ColumnDef{Name: name, Width: 8, Align: lipgloss.Right, Style: Muted}
}

// Layouts for the report listings.
var (
	ResolutionLayout = []ColumnDef{ColNum, ColSource, ColLink, ColTarget, ColMethod}
	BrokenLinkLayout = []ColumnDef{ColNum, ColSource, ColLink}
	RunLayout        = []ColumnDef{ColRunID, ColStarted, countColumn("files"), countColumn("warnings"), countColumn("errors")}
)

// NewResultsTable returns an empty table for the given layout.
func NewResultsTable(display *DisplayContext, columns []ColumnDef) *ResultsTable {
	return &ResultsTable{display: display, columns: columns}
}

// WithHeaders renders a header row of column names.
func (t *ResultsTable) WithHeaders() *ResultsTable {
	t.headers = true
	return t
}

// AddRow appends a row.
func (t *ResultsTable) AddRow(row ResultRow) {
	t.rows = append(t.rows, row)
}

func (t *ResultsTable) widths() []int {
	widths := make([]int, len(t.columns))
	var shares float64
	used := columnGap * (len(t.columns) - 1)
	for i, c := range t.columns {
		if c.Share == 0 {
			widths[i] = c.Width
			used += c.Width
		}
		shares += c.Share
	}

	free := max(t.display.TermWidth-used-MarkdownRenderMargin, 0)
	for i, c := range t.columns {
		if c.Share == 0 {
			continue
		}
		w := max(int(float64(free)*c.Share/shares), c.Width)
		if c.MaxWidth > 0 {
			w = min(w, c.MaxWidth)
		}
		widths[i] = w
	}
	return widths
}

// Render draws the table, or returns "" when it has no rows.
func (t *ResultsTable) Render() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := t.widths()
	numbered := len(t.columns) > 0 && t.columns[0].Name == ColNum.Name
	rows := make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		cells := r.Cells
		if numbered {
			cells = append([]string{FormatRowNum(r.Num, len(t.rows))}, cells...)
		}
		row := make([]string, len(t.columns))
		for j := range row {
			if j < len(cells) {
				row[j] = TruncateWithEllipsis(cells[j], widths[j])
			}
		}
		rows = append(rows, row)
	}

	tbl := table.New().
		Border(lipgloss.Border{Middle: "─", Top: "─", Bottom: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderRow(true).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col >= len(t.columns) {
				return lipgloss.NewStyle()
			}
			c := t.columns[col]
			style := lipgloss.NewStyle().Inherit(c.Style)
			if row == table.HeaderRow {
				style = Bold
			}
			style = style.Width(widths[col]).Align(c.Align)
			if col < len(t.columns)-1 {
				style = style.PaddingRight(columnGap)
			}
			return style
		}).
		Rows(rows...)

	if t.headers {
		names := make([]string, len(t.columns))
		for i, c := range t.columns {
			names[i] = c.Name
		}
		tbl = tbl.Headers(names...)
	}
	return tbl.Render()
}

// TruncateWithEllipsis shortens s to at most maxLen runes, ending in
// "..." and preferring a word break in the second half.
func TruncateWithEllipsis(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}

	cut := string(r[:maxLen-3])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// FormatRowNum right-aligns num to the width of maxNum, at least two.
func FormatRowNum(num, maxNum int) string {
	width := max(len(strconv.Itoa(maxNum)), 2)
	s := strconv.Itoa(num)
	return strings.Repeat(" ", max(width-len(s), 0)) + s
}
