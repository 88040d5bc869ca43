package vterm

// Color is a 4-bit palette index.
type Color uint8

// Standard palette indices (0-7). Bright is OR'd on for indices 8-15.
const (
	Black Color = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White

	Bright Color = 8
)

// Attr packs a foreground and background palette index: (bg << 4) | fg.
type Attr uint8

// MakeAttr packs fg and bg into an attribute byte.
func MakeAttr(fg, bg Color) Attr {
	return Attr((bg&0x0F)<<4 | fg&0x0F)
}

// Fg returns the foreground palette index.
func (a Attr) Fg() Color {
	return Color(a & 0x0F)
}

// Bg returns the background palette index.
func (a Attr) Bg() Color {
	return Color(a>>4) & 0x0F
}

// WithFg returns a copy of a with the foreground replaced.
func (a Attr) WithFg(fg Color) Attr {
	return MakeAttr(fg, a.Bg())
}

// WithBg returns a copy of a with the background replaced.
func (a Attr) WithBg(bg Color) Attr {
	return MakeAttr(a.Fg(), bg)
}

// DefaultAttr is white on black.
const DefaultAttr Attr = Attr(Black<<4 | White)

// Cell represents a single character cell in a terminal grid.
type Cell struct {
	Ch   byte
	Attr Attr
}

// CellSize is the storage cost of one cell in bytes.
const CellSize = 2

// EmptyCell returns a blank cell with the default attribute.
func EmptyCell() Cell {
	return Cell{Ch: ' ', Attr: DefaultAttr}
}

// Grid is a row-major view over a cell slice of Rows*Cols cells.
// It does not own its storage; the slice may belong to either tier.
type Grid struct {
	Cells []Cell
	Rows  int
	Cols  int
}

// At returns the cell at (col, row). Out of range returns an empty cell.
func (g Grid) At(col, row int) Cell {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return EmptyCell()
	}
	return g.Cells[row*g.Cols+col]
}

// Set stores c at (col, row). Out of range is ignored.
func (g Grid) Set(col, row int, c Cell) {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return
	}
	g.Cells[row*g.Cols+col] = c
}

// Row returns the cells of one row, sharing storage with the grid.
func (g Grid) Row(row int) []Cell {
	if row < 0 || row >= g.Rows {
		return nil
	}
	return g.Cells[row*g.Cols : (row+1)*g.Cols]
}

// Clear fills the whole grid with blank default cells.
func (g Grid) Clear() {
	fill(g.Cells, EmptyCell())
}

// ClearRange fills cells [start, end) of a row with ch/attr blanks.
func (g Grid) ClearRange(row, start, end int, attr Attr) {
	if row < 0 || row >= g.Rows {
		return
	}
	if start < 0 {
		start = 0
	}
	if end > g.Cols {
		end = g.Cols
	}
	if start >= end {
		return
	}
	fill(g.Row(row)[start:end], Cell{Ch: ' ', Attr: attr})
}

// ClearRows fills rows [top, bottom] with blank default cells.
func (g Grid) ClearRows(top, bottom int) {
	if top < 0 {
		top = 0
	}
	if bottom >= g.Rows {
		bottom = g.Rows - 1
	}
	if top > bottom {
		return
	}
	fill(g.Cells[top*g.Cols:(bottom+1)*g.Cols], EmptyCell())
}

// ScrollUp shifts rows [top, bottom] up by n and clears the vacated bottom rows.
func (g Grid) ScrollUp(top, bottom, n int) {
	if n <= 0 || top < 0 || bottom >= g.Rows || top > bottom {
		return
	}
	if region := bottom - top + 1; n > region {
		n = region
	}
	copy(g.Cells[top*g.Cols:(bottom+1-n)*g.Cols], g.Cells[(top+n)*g.Cols:(bottom+1)*g.Cols])
	g.ClearRows(bottom-n+1, bottom)
}

// ScrollDown shifts rows [top, bottom] down by n and clears the vacated top rows.
func (g Grid) ScrollDown(top, bottom, n int) {
	if n <= 0 || top < 0 || bottom >= g.Rows || top > bottom {
		return
	}
	if region := bottom - top + 1; n > region {
		n = region
	}
	copy(g.Cells[(top+n)*g.Cols:(bottom+1)*g.Cols], g.Cells[top*g.Cols:(bottom+1-n)*g.Cols])
	g.ClearRows(top, top+n-1)
}

// Text returns the grid contents as lines joined by '\n'.
func (g Grid) Text() string {
	buf := make([]byte, 0, g.Rows*(g.Cols+1))
	for y := 0; y < g.Rows; y++ {
		for _, c := range g.Row(y) {
			buf = append(buf, c.Ch)
		}
		if y < g.Rows-1 {
			buf = append(buf, '\n')
		}
	}
	return string(buf)
}

func fill(cells []Cell, c Cell) {
	if len(cells) == 0 {
		return
	}
	cells[0] = c
	for i := 1; i < len(cells); i *= 2 {
		copy(cells[i:], cells[:i])
	}
}
