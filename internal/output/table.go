package output

import (
	"io"
	"strings"
	"unicode/utf8"
)

// Align is a column's alignment.
type Align int

// Column alignments.
const (
	AlignLeft Align = iota
	AlignRight
)

const ellipsis = "…"

type column struct {
	header string
	align  Align
	// maxWidth > 0 abbreviates longer cells in the middle
	maxWidth int
}

// Table renders rows as aligned columns separated by two spaces.
type Table struct {
	cols     []column
	rows     [][]string
	noHeader bool
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	t := &Table{}
	for _, h := range headers {
		t.cols = append(t.cols, column{header: h})
	}
	return t
}

// AlignRight right-aligns column i, e.g. amounts.
func (t *Table) AlignRight(i int) *Table {
	t.column(i).align = AlignRight
	return t
}

// Abbreviate shortens cells of column i wider than maxWidth to head…tail,
// which keeps hashes and addresses recognizable at both ends.
func (t *Table) Abbreviate(i, maxWidth int) *Table {
	t.column(i).maxWidth = maxWidth
	return t
}

// AddRow adds a row. Rows may be shorter or longer than the header.
func (t *Table) AddRow(cells ...string) {
	for len(t.cols) < len(cells) {
		t.cols = append(t.cols, column{})
	}
	t.rows = append(t.rows, cells)
}

// SetNoHeader suppresses the header row.
func (t *Table) SetNoHeader(noHeader bool) {
	t.noHeader = noHeader
}

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	if len(t.cols) == 0 {
		return nil
	}

	grid := make([][]string, 0, len(t.rows)+1)
	for _, row := range t.rows {
		cells := make([]string, len(t.cols))
		for i, c := range t.cols {
			if i < len(row) {
				cells[i] = abbreviate(row[i], c.maxWidth)
			}
		}
		grid = append(grid, cells)
	}

	widths := make([]int, len(t.cols))
	for i, c := range t.cols {
		if !t.noHeader {
			widths[i] = utf8.RuneCountInString(c.header)
		}
		for _, cells := range grid {
			widths[i] = max(widths[i], utf8.RuneCountInString(cells[i]))
		}
	}

	var sb strings.Builder
	if !t.noHeader {
		header := make([]string, len(t.cols))
		rule := make([]string, len(t.cols))
		for i, c := range t.cols {
			header[i] = c.header
			rule[i] = strings.Repeat("-", widths[i])
		}
		t.writeLine(&sb, header, widths)
		t.writeLine(&sb, rule, widths)
	}
	for _, cells := range grid {
		t.writeLine(&sb, cells, widths)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// String returns the rendered table.
func (t *Table) String() string {
	var sb strings.Builder
	_ = t.Render(&sb)
	return sb.String()
}

func (t *Table) column(i int) *column {
	for len(t.cols) <= i {
		t.cols = append(t.cols, column{})
	}
	return &t.cols[i]
}

func (t *Table) writeLine(sb *strings.Builder, cells []string, widths []int) {
	var line strings.Builder
	for i, cell := range cells {
		if i > 0 {
			line.WriteString("  ")
		}
		// Pad by runes so multi-byte cells stay aligned
		pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		if t.cols[i].align == AlignRight {
			line.WriteString(pad + cell)
		} else {
			line.WriteString(cell + pad)
		}
	}
	sb.WriteString(strings.TrimRight(line.String(), " "))
	sb.WriteByte('\n')
}

func abbreviate(s string, maxWidth int) string {
	n := utf8.RuneCountInString(s)
	if maxWidth < 5 || n <= maxWidth {
		return s
	}
	r := []rune(s)
	tail := (maxWidth - 1) / 2
	head := maxWidth - 1 - tail
	return string(r[:head]) + ellipsis + string(r[n-tail:])
}
