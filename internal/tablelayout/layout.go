// Package tablelayout sizes a grid of pre-measured table cells.
package tablelayout

import (
	"math"

	"github.com/dgallion1/markchunk/internal/style"
)

// Grid holds measured cell sizes. Header may be nil. Rows may be ragged;
// missing cells count as zero size.
type Grid struct {
	Header []style.Size
	Rows   [][]style.Size
}

// Config carries the style constants that shape the layout.
type Config struct {
	CellPadding    style.Insets
	MinCellWidth   float64
	MinCellHeight  float64
	RowGap         float64
	ContainerWidth float64
}

// ConfigFromStyle builds a Config from the table block of st.
func ConfigFromStyle(st *style.Style) Config {
	return Config{
		CellPadding:    st.Table.CellPadding,
		MinCellWidth:   st.Table.CellMinWidth,
		MinCellHeight:  st.Table.CellMinHeight,
		RowGap:         st.Table.RowGap,
		ContainerWidth: st.ContainerWidth,
	}
}

// Layout is the computed table geometry. RowHeights includes the header row
// first when the grid has one.
type Layout struct {
	ColumnWidths []float64 `json:"column_widths"`
	RowHeights   []float64 `json:"row_heights"`
	HeaderHeight float64   `json:"header_height"`
	Width        float64   `json:"width"`
	ContentWidth float64   `json:"content_width"`
	Height       float64   `json:"height"`
	Overflow     bool      `json:"overflow"`
}

// Empty reports whether the layout has no rows or columns.
func (l Layout) Empty() bool { return len(l.ColumnWidths) == 0 || len(l.RowHeights) == 0 }

// Columns returns the number of columns in g.
func (g Grid) Columns() int {
	n := len(g.Header)
	for _, r := range g.Rows {
		n = max(n, len(r))
	}
	return n
}

// allRows returns the header (if any) followed by the body rows.
func (g Grid) allRows() [][]style.Size {
	rows := make([][]style.Size, 0, len(g.Rows)+1)
	if g.Header != nil {
		rows = append(rows, g.Header)
	}
	return append(rows, g.Rows...)
}

// Compute returns the layout of g. Column widths are not reconciled with
// the container width; ContentWidth and Overflow report the mismatch so the
// caller can scroll.
func Compute(g Grid, cfg Config) Layout {
	cols := g.Columns()
	rows := g.allRows()
	if cols == 0 || len(rows) == 0 {
		return Layout{Width: cfg.ContainerWidth}
	}

	padW := cfg.CellPadding.Horizontal()
	padH := cfg.CellPadding.Vertical()

	widths := make([]float64, cols)
	for c := range widths {
		widths[c] = cfg.MinCellWidth
	}
	heights := make([]float64, len(rows))
	for r, row := range rows {
		h := cfg.MinCellHeight
		for c, cell := range row {
			if c >= cols {
				break
			}
			widths[c] = math.Max(widths[c], cell.Width+padW)
			h = math.Max(h, cell.Height+padH)
		}
		heights[r] = h
	}

	l := Layout{
		ColumnWidths: widths,
		RowHeights:   heights,
		Width:        cfg.ContainerWidth,
	}
	if g.Header != nil {
		l.HeaderHeight = heights[0]
	}
	for _, w := range widths {
		l.ContentWidth += w
	}
	for _, h := range heights {
		l.Height += h
	}
	l.Height += cfg.RowGap * float64(len(heights)-1)
	l.Overflow = l.ContentWidth > l.Width
	return l
}
