package vterm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"zero rows", func(c *Config) { c.Rows = 0 }, ErrInvalidSize},
		{"negative cols", func(c *Config) { c.Cols = -1 }, ErrInvalidSize},
		{"no sessions", func(c *Config) { c.Count = 0 }, ErrInvalidCount},
		{"no queue", func(c *Config) { c.QueueSize = 0 }, ErrInvalidQueue},
		{"no bindings", func(c *Config) { c.MaxBindings = 0 }, ErrInvalidQueue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			m, err := New(cfg)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, m)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	fast := NewArena("fast", 0)
	slow := NewArena("slow", 0)
	m, err := New(DefaultConfig(), WithArenas(fast, slow))
	require.NoError(t, err)

	rows, cols := m.Size()
	assert.Equal(t, 37, rows)
	assert.Equal(t, 128, cols)
	assert.Equal(t, 4, m.Count())
	assert.Equal(t, 0, m.Active())
	assert.Equal(t, "[VT0]", m.StatusLabel())
	assert.Equal(t, DefaultPalette, m.Palette())

	gridBytes := 37 * 128 * CellSize
	assert.Equal(t, gridBytes, fast.Used())
	assert.Equal(t, 4*gridBytes, slow.Used())

	for id := 0; id < m.Count(); id++ {
		g := m.Grid(id)
		for _, c := range g.Cells {
			require.Equal(t, EmptyCell(), c)
		}
		assert.Equal(t, [2]int{0, 0}, cursorOf(m, id))
		assert.False(t, m.Dirty(id))
	}
}

func TestNewFailsOnFastBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FastTierBytes = cfg.GridBytes() - 1

	m, err := New(cfg)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Nil(t, m)
}

func TestNewFailsOnSlowBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SlowTierBytes = 3 * cfg.GridBytes()

	m, err := New(cfg)
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Contains(t, err.Error(), "session 3")
	assert.Nil(t, m)
}

func TestNewFailureReleasesArenas(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows, cfg.Cols = 2, 4
	grid := cfg.GridBytes()

	fast := NewArena("fast", grid)
	slow := NewArena("slow", 3*grid)

	m, err := New(cfg, WithArenas(fast, slow))
	assert.ErrorIs(t, err, ErrNoMemory)
	assert.Nil(t, m)
	assert.Equal(t, 0, fast.Used())
	assert.Equal(t, 0, slow.Used())

	cfg.Count = 3
	m, err = New(cfg, WithArenas(fast, slow))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, grid, fast.Used())
	assert.Equal(t, 3*grid, slow.Used())
}

func TestSmallProfile(t *testing.T) {
	m := newTestManager(t, 20, 53)
	m.WriteString(0, "\x1b[99;99HZ")

	assert.Equal(t, byte('Z'), m.Grid(0).At(52, 19).Ch)
	assert.Equal(t, byte(' '), m.Grid(0).At(52, 18).Ch)
	assert.Equal(t, [2]int{52, 19}, cursorOf(m, 0))
}

func TestSwitchScenario(t *testing.T) {
	m := newTestManager(t, 4, 8)

	m.WriteString(0, "AB")
	m.Switch(1)
	m.WriteString(1, "CD")
	m.Switch(0)

	g := m.Grid(0)
	assert.Equal(t, byte('A'), g.At(0, 0).Ch)
	assert.Equal(t, byte('B'), g.At(1, 0).Ch)
	assert.Equal(t, [2]int{2, 0}, cursorOf(m, 0))

	m.Switch(1)
	g = m.Grid(1)
	assert.Equal(t, byte('C'), g.At(0, 0).Ch)
	assert.Equal(t, byte('D'), g.At(1, 0).Ch)
	assert.Equal(t, "[VT1]", m.StatusLabel())
}

func TestSwitchRoundTripIsLossless(t *testing.T) {
	m := newTestManager(t, 3, 6)

	m.WriteString(0, "\x1b[31mred\n")
	m.WriteString(1, "\x1b[44mblue")
	before0 := m.Grid(0)
	before1 := m.Grid(1)

	m.Switch(1)
	m.Switch(0)
	assert.Equal(t, before0, m.Grid(0))
	assert.Equal(t, before1, m.Grid(1))

	m.WriteString(0, "more")
	assert.Equal(t, "red   \nmore  \n      ", m.Grid(0).Text())
	assert.Equal(t, before1, m.Grid(1))
}

func TestSwitchMovesContentBetweenTiers(t *testing.T) {
	m := newTestManager(t, 2, 4)

	m.WriteString(0, "zero")
	m.WriteString(2, "two")

	assert.Equal(t, byte('z'), m.FastBuffer()[0].Ch)

	m.Switch(2)
	assert.Equal(t, byte('t'), m.FastBuffer()[0].Ch)
	assert.Equal(t, m.FastBuffer(), m.Cells(2))
	assert.Equal(t, byte('z'), m.Cells(0)[0].Ch)

	// Writes to the inactive session never touch the fast grid.
	m.WriteString(0, "\x1b[2;1Hx")
	assert.Equal(t, byte('t'), m.FastBuffer()[0].Ch)
	assert.Equal(t, byte(' '), m.FastBuffer()[4].Ch)
	assert.Equal(t, byte('x'), m.Cells(0)[4].Ch)
}

func TestSwitchNoOps(t *testing.T) {
	var switches []int
	m := newTestManager(t, 2, 4, WithSwitchObserver(SwitchFunc(func(id int) {
		switches = append(switches, id)
	})))

	m.Switch(0)
	m.Switch(-1)
	m.Switch(4)

	assert.Empty(t, switches)
	assert.Equal(t, 0, m.Active())
}

func TestSwitchNotifiesObservers(t *testing.T) {
	var events []string
	m := newTestManager(t, 2, 4,
		WithSwitchObserver(SwitchFunc(func(id int) {
			events = append(events, fmt.Sprintf("switch %d", id))
		})),
		WithRenderObserver(RenderFunc(func(id int) {
			events = append(events, fmt.Sprintf("render %d", id))
		})),
	)
	m.AddSwitchObserver(SwitchFunc(func(id int) {
		events = append(events, fmt.Sprintf("late switch %d", id))
	}))
	m.AddSwitchObserver(nil)

	m.Switch(3)

	assert.Equal(t, []string{"switch 3", "late switch 3", "render 3"}, events)
	assert.True(t, m.Dirty(3))
}

func TestObserversMayCallBack(t *testing.T) {
	var m *Manager
	var seen []string
	m = newTestManager(t, 2, 4, WithSwitchObserver(SwitchFunc(func(id int) {
		seen = append(seen, m.StatusLabel())
		m.WriteString(id, "!")
	})))

	m.Switch(1)
	assert.Equal(t, []string{"[VT1]"}, seen)
	assert.Equal(t, byte('!'), m.Grid(1).At(0, 0).Ch)
}

func TestWriteNotifiesOncePerCall(t *testing.T) {
	var renders []int
	m := newTestManager(t, 2, 8, WithRenderObserver(RenderFunc(func(id int) {
		renders = append(renders, id)
	})))

	m.WriteString(2, "hello")
	m.PutChar(1, 'x')
	m.Write(1, nil)
	m.Write(9, []byte("x"))

	assert.Equal(t, []int{2, 1}, renders)
}

func TestWriter(t *testing.T) {
	m := newTestManager(t, 2, 16)

	n, err := fmt.Fprintf(m.Writer(1), "pid %d", 42)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "pid 42          ", rowText(m, 1, 0))
}

func TestClear(t *testing.T) {
	var renders []int
	m := newTestManager(t, 2, 8, WithRenderObserver(RenderFunc(func(id int) {
		renders = append(renders, id)
	})))

	m.WriteString(1, "\x1b[32mabc\nde")
	renders = nil
	m.Clear(1)

	for _, c := range m.Grid(1).Cells {
		require.Equal(t, EmptyCell(), c)
	}
	assert.Equal(t, [2]int{0, 0}, cursorOf(m, 1))
	assert.Equal(t, []int{1}, renders)

	m.WriteString(1, "x")
	assert.Equal(t, DefaultAttr, m.Grid(1).At(0, 0).Attr)

	m.Clear(7)
}

func TestClearResetsParser(t *testing.T) {
	m := newTestManager(t, 2, 8)

	m.WriteString(0, "\x1b[3")
	m.Clear(0)
	m.WriteString(0, "1mA")

	assert.Equal(t, "1mA     ", rowText(m, 0, 0))
}

func TestRefreshAndDirty(t *testing.T) {
	var renders []int
	m := newTestManager(t, 2, 8, WithRenderObserver(RenderFunc(func(id int) {
		renders = append(renders, id)
	})))

	m.WriteString(0, "x")
	m.WriteString(1, "y")
	assert.True(t, m.Dirty(0))
	assert.True(t, m.Dirty(1))

	renders = nil
	m.Refresh()
	assert.False(t, m.Dirty(0))
	assert.True(t, m.Dirty(1))
	assert.Equal(t, []int{0}, renders)
	assert.False(t, m.Dirty(-1))
}

func TestGetCharTimeouts(t *testing.T) {
	m := newTestManager(t, 2, 8)

	start := time.Now()
	assert.Equal(t, NoInput, m.GetChar(0, 0))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	assert.Equal(t, NoInput, m.GetChar(0, 15*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	m.SendInput(0, 'a')
	assert.Equal(t, int('a'), m.GetChar(0, 0))

	m.SendInput(0, 'b')
	assert.Equal(t, int('b'), m.GetChar(0, time.Hour))

	m.SendInput(0, 'c')
	assert.Equal(t, int('c'), m.GetChar(0, Forever))

	assert.Equal(t, NoInput, m.GetChar(5, time.Hour))
}

func TestGetCharBlocksUntilInput(t *testing.T) {
	m := newTestManager(t, 2, 8)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		m.SendInput(2, 0)
	}()

	assert.Equal(t, 0, m.GetChar(2, Forever))
	wg.Wait()
}

func TestInputQueueDropsNewest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows, cfg.Cols = 2, 8
	cfg.QueueSize = 4
	m, err := New(cfg)
	require.NoError(t, err)

	for _, b := range []byte("abcdef") {
		m.SendInput(1, b)
	}

	assert.True(t, m.InputAvailable(1))
	assert.False(t, m.InputAvailable(0))
	assert.Equal(t, uint64(2), m.Dropped(1))
	assert.Equal(t, "abcd", string(drain(m, 1)))
	assert.False(t, m.InputAvailable(1))

	m.SendInput(-1, 'x')
	assert.Equal(t, uint64(0), m.Dropped(-1))
}

func TestRenderAccessors(t *testing.T) {
	m := newTestManager(t, 2, 4)
	m.WriteString(1, "hi")

	dst := make([]Cell, 8)
	assert.Equal(t, 8, m.Snapshot(1, dst))
	assert.Equal(t, byte('h'), dst[0].Ch)

	short := make([]Cell, 3)
	assert.Equal(t, 3, m.Snapshot(1, short))

	assert.Equal(t, 0, m.Snapshot(4, dst))
	assert.Nil(t, m.Cells(4))
	assert.Len(t, m.Cells(1), 8)
	assert.Len(t, m.FastBuffer(), 8)
}

func TestPaletteAccess(t *testing.T) {
	custom := DefaultPalette
	custom[3] = RGB565(1, 2, 3)
	cfg := DefaultConfig()
	cfg.Palette = &custom

	m, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, custom, m.Palette())

	m.SetPaletteColor(1, 0xF800)
	assert.Equal(t, uint16(0xF800), m.PaletteColor(1))

	m.SetPaletteColor(16, 0xFFFF)
	m.SetPaletteColor(-1, 0xFFFF)
	assert.Equal(t, uint16(0), m.PaletteColor(16))
	assert.Equal(t, uint16(0), m.PaletteColor(-1))

	var all [PaletteSize]uint16
	for i := range all {
		all[i] = uint16(i)
	}
	m.SetPalette(all)
	assert.Equal(t, all, m.Palette())
}

func TestBindings(t *testing.T) {
	m := newTestManager(t, 2, 4)
	shell := NewTaskID()
	other := NewTaskID()

	assert.Equal(t, -1, m.TaskSession(shell))
	assert.Equal(t, 0, m.CurrentSession(shell))

	m.Bind(shell, 2)
	assert.Equal(t, 2, m.TaskSession(shell))
	assert.Equal(t, 2, m.CurrentSession(shell))

	m.Bind(shell, 3)
	assert.Equal(t, 3, m.TaskSession(shell))

	m.Bind(other, 9)
	assert.Equal(t, -1, m.TaskSession(other))

	m.Switch(1)
	assert.Equal(t, 1, m.CurrentSession(other))

	m.Unbind(shell)
	assert.Equal(t, -1, m.TaskSession(shell))
	assert.Equal(t, 1, m.CurrentSession(shell))
}

func TestBindingTableFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rows, cfg.Cols = 2, 4
	cfg.MaxBindings = 2
	m, err := New(cfg)
	require.NoError(t, err)

	a, b, c := NewTaskID(), NewTaskID(), NewTaskID()
	m.Bind(a, 1)
	m.Bind(b, 2)
	m.Bind(c, 3)

	assert.Equal(t, -1, m.TaskSession(c))

	m.Unbind(a)
	m.Bind(c, 3)
	assert.Equal(t, 3, m.TaskSession(c))
	assert.Equal(t, 2, m.TaskSession(b))
}

func TestSessionFor(t *testing.T) {
	m := newTestManager(t, 2, 4)
	task := NewTaskID()
	m.Bind(task, 2)

	assert.Equal(t, 2, m.SessionFor(WithTask(context.Background(), task)))
	assert.Equal(t, 0, m.SessionFor(context.Background()))
	assert.Equal(t, 0, m.SessionFor(WithTask(context.Background(), TaskID{})))
}

func TestFeedInputHotkey(t *testing.T) {
	m := newTestManager(t, 2, 4)
	m.Switch(2)

	var switched bool
	for _, b := range []byte("\x1b[11~") {
		switched = m.FeedInput(b)
	}

	assert.True(t, switched)
	assert.Equal(t, 0, m.Active())
	assert.False(t, m.InputAvailable(0))
	assert.False(t, m.InputAvailable(2))
}

func TestFeedInputNonHotkeyDeliveredInOrder(t *testing.T) {
	m := newTestManager(t, 2, 4)
	m.Switch(1)

	for _, b := range []byte("\x1b[11xq") {
		assert.False(t, m.FeedInput(b))
	}

	assert.Equal(t, 1, m.Active())
	assert.Equal(t, "\x1b[11xq", string(drain(m, 1)))
}

func TestFlushStaleInput(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 2, 4, WithClock(clock.now))

	m.FeedInput(0x1B)
	assert.False(t, m.FlushStaleInput())
	assert.False(t, m.InputAvailable(0))

	clock.advance(25 * time.Millisecond)
	assert.True(t, m.FlushStaleInput())
	assert.Equal(t, []byte{0x1B}, drain(m, 0))
	assert.False(t, m.FlushStaleInput())
}

func TestConcurrentWritesAndSwitches(t *testing.T) {
	const perSession = 150
	m := newTestManager(t, 10, 20)

	var wg sync.WaitGroup
	for id := 0; id < m.Count(); id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ch := byte('a' + id)
			for i := 0; i < perSession; i++ {
				m.PutChar(id, ch)
			}
		}(id)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			m.Switch(i % m.Count())
			_ = m.Snapshot(i%m.Count(), make([]Cell, 8))
		}
	}()
	wg.Wait()

	for id := 0; id < m.Count(); id++ {
		want := byte('a' + id)
		count := 0
		for _, c := range m.Grid(id).Cells {
			switch c.Ch {
			case want:
				count++
			case ' ':
			default:
				t.Fatalf("session %d holds foreign byte %q", id, c.Ch)
			}
		}
		assert.Equal(t, perSession, count, "session %d", id)
	}
}

func TestConcurrentInput(t *testing.T) {
	m := newTestManager(t, 2, 4)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 32; i++ {
			m.SendInput(3, byte(i))
		}
	}()

	got := make([]int, 0, 32)
	go func() {
		defer wg.Done()
		for len(got) < 32 {
			got = append(got, m.GetChar(3, time.Second))
		}
	}()
	wg.Wait()

	for i, b := range got {
		assert.Equal(t, i, b)
	}
}
