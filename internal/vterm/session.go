package vterm

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session represents one virtual terminal: a grid view, cursor, drawing
// attribute, input queue and escape-parser state.
type Session struct {
	id   int
	rows int
	cols int

	mu sync.Mutex

	// Storage: the shared fast grid and this session's own slow backing
	// grid. tier says which one currently holds this session's content.
	tier tier
	fast []Cell
	slow []Cell

	// Cursor position (0-indexed) and current drawing attribute
	x, y int
	attr Attr

	// wrapPending is set after a write into the last column. The cursor
	// stays on that cell and the next printable byte, tab or newline wraps
	// first.
	wrapPending bool

	parser parser
	dirty  bool

	input   chan byte
	dropped atomic.Uint64
}

func newSession(id, rows, cols int, fast, slow []Cell, queueSize int) *Session {
	s := &Session{
		id:    id,
		rows:  rows,
		cols:  cols,
		tier:  tierSlow,
		fast:  fast,
		slow:  slow,
		attr:  DefaultAttr,
		input: make(chan byte, queueSize),
	}
	s.clear(s.grid())
	s.dirty = false
	return s
}

// ID returns the session index.
func (s *Session) ID() int {
	return s.id
}

// cells returns the storage currently holding this session's content.
// Callers that mutate hold s.mu.
func (s *Session) cells() []Cell {
	if s.tier == tierFast {
		return s.fast
	}
	return s.slow
}

// grid resolves the session's current storage once; valid while s.mu is
// held, since a switch needs the same lock to move the content.
func (s *Session) grid() Grid {
	return Grid{Cells: s.cells(), Rows: s.rows, Cols: s.cols}
}

// write applies data to the grid under a single lock hold.
func (s *Session) write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.grid()
	for _, b := range data {
		s.parser.process(s, g, b)
	}
	s.dirty = true
}

func (s *Session) clearLocked() {
	s.clear(s.grid())
	s.parser.reset()
}

// clear blanks the grid, homes the cursor and resets the attribute.
func (s *Session) clear(g Grid) {
	g.Clear()
	s.x = 0
	s.y = 0
	s.attr = DefaultAttr
	s.wrapPending = false
	s.dirty = true
}

// put writes a printable byte and advances the cursor. A write into the
// last column defers the wrap until the next byte needs the space.
func (s *Session) put(g Grid, b byte) {
	s.wrap(g)
	g.Cells[s.y*s.cols+s.x] = Cell{Ch: b, Attr: s.attr}
	s.advance()
}

// advance moves one column right or marks the wrap pending at row end.
func (s *Session) advance() {
	if s.x >= s.cols-1 {
		s.wrapPending = true
		return
	}
	s.x++
}

// wrap performs a pending wrap: column 0 of the next row, scrolling at
// the bottom like '\n'.
func (s *Session) wrap(g Grid) {
	if !s.wrapPending {
		return
	}
	s.carriageReturn()
	s.lineFeed(g)
}

// newline handles '\n', completing a pending wrap first.
func (s *Session) newline(g Grid) {
	s.wrap(g)
	s.carriageReturn()
	s.lineFeed(g)
}

func (s *Session) carriageReturn() {
	s.x = 0
	s.wrapPending = false
}

// lineFeed moves the cursor down one row, scrolling at the bottom.
func (s *Session) lineFeed(g Grid) {
	s.wrapPending = false
	if s.y >= s.rows-1 {
		g.ScrollUp(0, s.rows-1, 1)
		s.y = s.rows - 1
		return
	}
	s.y++
}

// reverseLineFeed moves the cursor up one row, reverse scrolling at the top.
func (s *Session) reverseLineFeed(g Grid) {
	s.wrapPending = false
	if s.y <= 0 {
		g.ScrollDown(0, s.rows-1, 1)
		s.y = 0
		return
	}
	s.y--
}

// backspace moves left one column and blanks the cell there. With a wrap
// pending the logical cursor is past the last column, so the last cell is
// the one blanked.
func (s *Session) backspace(g Grid) {
	if s.wrapPending {
		s.wrapPending = false
	} else {
		if s.x == 0 {
			return
		}
		s.x--
	}
	g.Cells[s.y*s.cols+s.x] = Cell{Ch: ' ', Attr: s.attr}
}

// tab writes spaces through the next multiple-of-8 column.
func (s *Session) tab(g Grid) {
	s.wrap(g)
	for {
		g.Cells[s.y*s.cols+s.x] = Cell{Ch: ' ', Attr: s.attr}
		s.advance()
		if s.wrapPending || s.x%8 == 0 {
			return
		}
	}
}

// moveTo places the cursor at (x, y) clamped into the grid.
func (s *Session) moveTo(x, y int, g Grid) {
	s.wrapPending = false
	s.x = clamp(x, 0, g.Cols-1)
	s.y = clamp(y, 0, g.Rows-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// enqueue adds b to the input queue without blocking.
// A full queue drops the newest byte.
func (s *Session) enqueue(b byte) bool {
	select {
	case s.input <- b:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// dequeue waits up to timeout for an input byte.
// A negative timeout waits forever; zero polls.
func (s *Session) dequeue(timeout time.Duration) int {
	select {
	case b := <-s.input:
		return int(b)
	default:
	}

	if timeout == 0 {
		return NoInput
	}
	if timeout < 0 {
		return int(<-s.input)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b := <-s.input:
		return int(b)
	case <-timer.C:
		return NoInput
	}
}
