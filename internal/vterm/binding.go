package vterm

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TaskID identifies an execution context (a goroutine or group of
// goroutines acting as one producer/consumer). The zero value is no task.
type TaskID = uuid.UUID

// NewTaskID returns a fresh task identifier.
func NewTaskID() TaskID {
	return uuid.New()
}

type taskKey struct{}

// WithTask returns a context carrying task.
func WithTask(ctx context.Context, task TaskID) context.Context {
	return context.WithValue(ctx, taskKey{}, task)
}

// TaskFromContext returns the task carried by ctx, if any.
func TaskFromContext(ctx context.Context) (TaskID, bool) {
	task, ok := ctx.Value(taskKey{}).(TaskID)
	return task, ok && task != uuid.Nil
}

type bindingEntry struct {
	task    TaskID
	session int
}

// bindingTable maps tasks to sessions in a fixed number of slots.
// It has its own lock so lookups never wait on terminal I/O.
type bindingTable struct {
	mu      sync.Mutex
	entries []bindingEntry
}

func newBindingTable(capacity int) *bindingTable {
	return &bindingTable{entries: make([]bindingEntry, capacity)}
}

// bind upserts task -> session. It returns false when the table is full.
func (t *bindingTable) bind(task TaskID, session int) bool {
	if task == uuid.Nil {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	free := -1
	for i := range t.entries {
		if t.entries[i].task == task {
			t.entries[i].session = session
			return true
		}
		if free < 0 && t.entries[i].task == uuid.Nil {
			free = i
		}
	}
	if free < 0 {
		return false
	}
	t.entries[free] = bindingEntry{task: task, session: session}
	return true
}

func (t *bindingTable) unbind(task TaskID) {
	if task == uuid.Nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].task == task {
			t.entries[i] = bindingEntry{}
			return
		}
	}
}

// lookup returns the bound session or -1.
func (t *bindingTable) lookup(task TaskID) int {
	if task == uuid.Nil {
		return -1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		if e.task == task {
			return e.session
		}
	}
	return -1
}

func (t *bindingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.task != uuid.Nil {
			n++
		}
	}
	return n
}
