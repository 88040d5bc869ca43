package vterm

import (
	"fmt"
	"sync"
)

// tier tags which storage currently holds a session's cells.
type tier uint8

const (
	tierSlow tier = iota
	tierFast
)

// String returns the tier name.
func (t tier) String() string {
	if t == tierFast {
		return "fast"
	}
	return "slow"
}

// Arena hands out cell grids from a fixed byte budget. It models one
// memory region: the small fast region shared with the renderer or the
// larger, slower region holding inactive sessions.
type Arena struct {
	mu     sync.Mutex
	name   string
	budget int // bytes; <= 0 means unlimited
	used   int
}

// NewArena creates an arena with the given budget in bytes.
// A budget <= 0 is unlimited.
func NewArena(name string, budget int) *Arena {
	return &Arena{name: name, budget: budget}
}

// Alloc reserves a grid of n cells.
func (a *Arena) Alloc(n int) ([]Cell, error) {
	size := n * CellSize

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.budget > 0 && a.used+size > a.budget {
		return nil, fmt.Errorf("%w: %s tier needs %d bytes, %d of %d in use",
			ErrNoMemory, a.name, size, a.used, a.budget)
	}
	a.used += size
	return make([]Cell, n), nil
}

// Free returns the bytes of an n-cell grid to the budget.
func (a *Arena) Free(n int) {
	size := n * CellSize

	a.mu.Lock()
	defer a.mu.Unlock()

	a.used -= size
	if a.used < 0 {
		a.used = 0
	}
}

// Used returns the number of bytes handed out.
func (a *Arena) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Budget returns the arena budget in bytes (<= 0 is unlimited).
func (a *Arena) Budget() int {
	return a.budget
}
