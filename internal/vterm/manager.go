package vterm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/vtmux/internal/logging"
)

// Default configuration values.
const (
	DefaultRows        = 37
	DefaultCols        = 128
	DefaultCount       = 4
	DefaultQueueSize   = 64
	DefaultMaxBindings = 8
)

// NoInput is returned by GetChar when no byte arrived before the timeout.
const NoInput = -1

// Forever makes GetChar wait without a deadline.
const Forever time.Duration = -1

// Config configures a Manager.
type Config struct {
	// Rows and Cols are the fixed grid dimensions.
	Rows int
	Cols int

	// Count is the number of sessions.
	Count int

	// QueueSize is the per-session input queue capacity in bytes.
	QueueSize int

	// MaxBindings is the task binding table capacity.
	MaxBindings int

	// HotkeyTimeout bounds how long a partial hotkey sequence is held.
	HotkeyTimeout time.Duration

	// FastTierBytes is the fast region budget. Zero means exactly one grid.
	FastTierBytes int

	// SlowTierBytes is the slow region budget. Zero means unlimited.
	SlowTierBytes int

	// Palette is the initial palette. Nil means DefaultPalette.
	Palette *[PaletteSize]uint16
}

// DefaultConfig returns the default 4 x 37x128 configuration.
func DefaultConfig() Config {
	return Config{
		Rows:          DefaultRows,
		Cols:          DefaultCols,
		Count:         DefaultCount,
		QueueSize:     DefaultQueueSize,
		MaxBindings:   DefaultMaxBindings,
		HotkeyTimeout: DefaultHotkeyTimeout,
	}
}

// GridBytes returns the storage cost of one grid.
func (c Config) GridBytes() int {
	return c.Rows * c.Cols * CellSize
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rows < 1 || c.Cols < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Rows, c.Cols)
	}
	if c.Count < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, c.Count)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size %d", ErrInvalidQueue, c.QueueSize)
	}
	if c.MaxBindings < 1 {
		return fmt.Errorf("%w: max bindings %d", ErrInvalidQueue, c.MaxBindings)
	}
	return nil
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSwitchObserver registers a switch observer.
func WithSwitchObserver(o SwitchObserver) Option {
	return func(m *Manager) {
		if o != nil {
			m.switchObs = append(m.switchObs, o)
		}
	}
}

// WithRenderObserver registers a render observer.
func WithRenderObserver(o RenderObserver) Option {
	return func(m *Manager) {
		if o != nil {
			m.renderObs = append(m.renderObs, o)
		}
	}
}

// WithArenas supplies the fast and slow storage regions.
func WithArenas(fast, slow *Arena) Option {
	return func(m *Manager) {
		if fast != nil {
			m.fastArena = fast
		}
		if slow != nil {
			m.slowArena = slow
		}
	}
}

// WithClock sets the time source used by the hotkey detector.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns all sessions, the shared fast grid, the palette, the task
// binding table and the hotkey detector.
type Manager struct {
	cfg      Config
	sessions []*Session
	fast     []Cell

	active   atomic.Int32
	switchMu sync.Mutex

	bindings *bindingTable
	hotkeys  *hotkeyDetector
	palette  palette

	obsMu     sync.RWMutex
	switchObs []SwitchObserver
	renderObs []RenderObserver

	fastArena *Arena
	slowArena *Arena
	now       func() time.Time
	logger    logrus.FieldLogger
}

// New allocates the session pool. Session 0 starts active. Either every
// grid, queue and lock is set up or an error is returned.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.HotkeyTimeout <= 0 {
		cfg.HotkeyTimeout = DefaultHotkeyTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:    cfg,
		now:    time.Now,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fastArena == nil {
		budget := cfg.FastTierBytes
		if budget <= 0 {
			budget = cfg.GridBytes()
		}
		m.fastArena = NewArena("fast", budget)
	}
	if m.slowArena == nil {
		m.slowArena = NewArena("slow", cfg.SlowTierBytes)
	}

	n := cfg.Rows * cfg.Cols
	fast, err := m.fastArena.Alloc(n)
	if err != nil {
		return nil, fmt.Errorf("allocate fast grid: %w", err)
	}
	m.fast = fast

	m.sessions = make([]*Session, cfg.Count)
	for i := range m.sessions {
		slow, err := m.slowArena.Alloc(n)
		if err != nil {
			// Hand back what was reserved so shared arenas stay usable.
			m.fastArena.Free(n)
			for j := 0; j < i; j++ {
				m.slowArena.Free(n)
			}
			return nil, fmt.Errorf("allocate session %d grid: %w", i, err)
		}
		s := newSession(i, cfg.Rows, cfg.Cols, fast, slow, cfg.QueueSize)
		s.parser.respond = m.respond
		m.sessions[i] = s
	}

	first := m.sessions[0]
	first.tier = tierFast
	first.grid().Clear()

	m.bindings = newBindingTable(cfg.MaxBindings)
	m.hotkeys = &hotkeyDetector{
		timeout: cfg.HotkeyTimeout,
		now:     m.now,
		deliver: m.deliverActive,
		logger:  m.logger,
	}
	if cfg.Palette != nil {
		m.palette.setAll(*cfg.Palette)
	} else {
		m.palette.setAll(DefaultPalette)
	}

	m.logger.WithFields(logrus.Fields{
		"sessions":  cfg.Count,
		"rows":      cfg.Rows,
		"cols":      cfg.Cols,
		"fast_used": m.fastArena.Used(),
		"slow_used": m.slowArena.Used(),
	}).Debug("session pool initialized")

	return m, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() Config {
	return m.cfg
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	return len(m.sessions)
}

// Size returns the grid dimensions.
func (m *Manager) Size() (rows, cols int) {
	return m.cfg.Rows, m.cfg.Cols
}

// Active returns the active session index.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// StatusLabel returns a short indicator of the active session, e.g. "[VT0]".
func (m *Manager) StatusLabel() string {
	return fmt.Sprintf("[VT%d]", m.Active())
}

func (m *Manager) session(id int) *Session {
	if id < 0 || id >= len(m.sessions) {
		return nil
	}
	return m.sessions[id]
}

// Switch makes id the active session. It is a no-op if id is already
// active or out of range. The fast grid is copied out to the outgoing
// session's backing grid and the incoming session's backing grid is copied
// in, with both session locks held (outgoing first).
func (m *Manager) Switch(id int) {
	in := m.session(id)
	if in == nil {
		return
	}

	m.switchMu.Lock()
	cur := int(m.active.Load())
	if cur == id {
		m.switchMu.Unlock()
		return
	}
	out := m.sessions[cur]

	out.mu.Lock()
	in.mu.Lock()

	copy(out.slow, m.fast)
	copy(m.fast, in.slow)
	out.tier = tierSlow
	in.tier = tierFast
	in.dirty = true
	m.active.Store(int32(id))

	in.mu.Unlock()
	out.mu.Unlock()
	m.switchMu.Unlock()

	m.logger.WithFields(logrus.Fields{"from": cur, "to": id}).Debug("session switched")

	m.notifySwitch(id)
	m.notifyRender(id)
}

// PutChar writes one byte to session id.
func (m *Manager) PutChar(id int, b byte) {
	m.Write(id, []byte{b})
}

// Write applies data to session id's grid, interpreting escape sequences.
// Render observers are notified once per call.
func (m *Manager) Write(id int, data []byte) {
	s := m.session(id)
	if s == nil || len(data) == 0 {
		return
	}
	s.write(data)
	m.notifyRender(id)
}

// WriteString writes a string to session id.
func (m *Manager) WriteString(id int, str string) {
	m.Write(id, []byte(str))
}

// Writer returns an io.Writer for session id.
func (m *Manager) Writer(id int) *SessionWriter {
	return &SessionWriter{m: m, id: id}
}

// SessionWriter adapts a session to io.Writer. Writes never fail.
type SessionWriter struct {
	m  *Manager
	id int
}

// Write implements io.Writer.
func (w *SessionWriter) Write(p []byte) (int, error) {
	w.m.Write(w.id, p)
	return len(p), nil
}

// GetChar reads one input byte from session id, waiting up to timeout.
// A negative timeout (Forever) waits indefinitely; zero never waits.
// It returns NoInput on timeout or for an invalid id.
func (m *Manager) GetChar(id int, timeout time.Duration) int {
	s := m.session(id)
	if s == nil {
		return NoInput
	}
	return s.dequeue(timeout)
}

// SendInput enqueues b to session id, bypassing hotkey detection.
// A full queue drops b.
func (m *Manager) SendInput(id int, b byte) {
	s := m.session(id)
	if s == nil {
		return
	}
	if !s.enqueue(b) {
		m.logger.WithField("session", id).Debug("input queue full, byte dropped")
	}
}

// InputAvailable reports whether session id has queued input.
func (m *Manager) InputAvailable(id int) bool {
	s := m.session(id)
	return s != nil && len(s.input) > 0
}

// Dropped returns how many input bytes session id has dropped.
func (m *Manager) Dropped(id int) uint64 {
	s := m.session(id)
	if s == nil {
		return 0
	}
	return s.dropped.Load()
}

func (m *Manager) deliverActive(b byte) {
	m.SendInput(m.Active(), b)
}

// respond pushes a synthesized reply into the active session's queue.
func (m *Manager) respond(reply []byte) {
	for _, b := range reply {
		m.deliverActive(b)
	}
}

// FeedInput passes one raw keyboard byte through the hotkey detector.
// It returns true when the byte completed a switch hotkey.
func (m *Manager) FeedInput(b byte) bool {
	k := m.hotkeys.feed(b)
	if k < 0 {
		return false
	}
	m.Switch(k)
	return true
}

// FlushStaleInput delivers a partial hotkey sequence that has waited past
// the timeout. Input loops call it when idle so a lone ESC is not held
// until the next key.
func (m *Manager) FlushStaleInput() bool {
	return m.hotkeys.expire()
}

// Bind attaches task to session id. Invalid ids are ignored; a full table
// drops the binding.
func (m *Manager) Bind(task TaskID, id int) {
	if m.session(id) == nil {
		return
	}
	if !m.bindings.bind(task, id) {
		m.logger.WithFields(logrus.Fields{
			"task":    task.String(),
			"session": id,
		}).Debug("binding table full, binding dropped")
	}
}

// Unbind detaches task.
func (m *Manager) Unbind(task TaskID) {
	m.bindings.unbind(task)
}

// TaskSession returns the session task is bound to, or -1.
func (m *Manager) TaskSession(task TaskID) int {
	return m.bindings.lookup(task)
}

// CurrentSession returns the session task is bound to, or the active
// session when unbound.
func (m *Manager) CurrentSession(task TaskID) int {
	if id := m.bindings.lookup(task); id >= 0 {
		return id
	}
	return m.Active()
}

// SessionFor resolves the session for the task carried by ctx.
func (m *Manager) SessionFor(ctx context.Context) int {
	if task, ok := TaskFromContext(ctx); ok {
		return m.CurrentSession(task)
	}
	return m.Active()
}

// Clear blanks session id and homes its cursor.
func (m *Manager) Clear(id int) {
	s := m.session(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()

	m.notifyRender(id)
}

// Refresh clears the active session's dirty flag and forces a render
// notification.
func (m *Manager) Refresh() {
	id := m.Active()
	s := m.sessions[id]
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	m.notifyRender(id)
}

// Dirty reports whether session id changed since the last Refresh.
func (m *Manager) Dirty(id int) bool {
	s := m.session(id)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Cursor returns session id's cursor position.
func (m *Manager) Cursor(id int) (col, row int) {
	s := m.session(id)
	if s == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

// Cells returns session id's cells through its current tier without
// holding the lock while the caller reads. A concurrent write or switch
// may show a torn frame; use Snapshot for a consistent copy.
func (m *Manager) Cells(id int) []Cell {
	s := m.session(id)
	if s == nil {
		return nil
	}
	s.mu.Lock()
	cells := s.cells()
	s.mu.Unlock()
	return cells
}

// FastBuffer returns the shared fast grid, which always holds the active
// session. Reads are unsynchronized.
func (m *Manager) FastBuffer() []Cell {
	return m.fast
}

// Snapshot copies session id's cells into dst under the session lock and
// returns the number of cells copied.
func (m *Manager) Snapshot(id int, dst []Cell) int {
	s := m.session(id)
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copy(dst, s.cells())
}

// Grid returns a consistent copy of session id's grid.
func (m *Manager) Grid(id int) Grid {
	cells := make([]Cell, m.cfg.Rows*m.cfg.Cols)
	m.Snapshot(id, cells)
	return Grid{Cells: cells, Rows: m.cfg.Rows, Cols: m.cfg.Cols}
}

// Palette returns a copy of the palette.
func (m *Manager) Palette() [PaletteSize]uint16 {
	return m.palette.all()
}

// SetPalette replaces the whole palette.
func (m *Manager) SetPalette(colors [PaletteSize]uint16) {
	m.palette.setAll(colors)
}

// PaletteColor returns palette entry i, or 0 if out of range.
func (m *Manager) PaletteColor(i int) uint16 {
	return m.palette.get(i)
}

// SetPaletteColor sets palette entry i. Out of range is ignored.
func (m *Manager) SetPaletteColor(i int, c uint16) {
	m.palette.set(i, c)
}

// AddSwitchObserver registers a switch observer at run time.
func (m *Manager) AddSwitchObserver(o SwitchObserver) {
	if o == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.switchObs = append(m.switchObs, o)
}

// AddRenderObserver registers a render observer at run time.
func (m *Manager) AddRenderObserver(o RenderObserver) {
	if o == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.renderObs = append(m.renderObs, o)
}

func (m *Manager) notifySwitch(id int) {
	m.obsMu.RLock()
	obs := append([]SwitchObserver(nil), m.switchObs...)
	m.obsMu.RUnlock()

	for _, o := range obs {
		o.OnSwitch(id)
	}
}

func (m *Manager) notifyRender(id int) {
	m.obsMu.RLock()
	obs := append([]RenderObserver(nil), m.renderObs...)
	m.obsMu.RUnlock()

	for _, o := range obs {
		o.OnRender(id)
	}
}
