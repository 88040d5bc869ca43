// Package display draws the active session onto a tcell screen and turns
// tcell key events back into raw terminal input bytes.
package display

import (
	"context"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dshills/vtmux/internal/logging"
	"github.com/dshills/vtmux/internal/vterm"
)

// Source is the part of the session manager the renderer reads.
type Source interface {
	Active() int
	Size() (rows, cols int)
	Snapshot(id int, dst []vterm.Cell) int
	Cursor(id int) (col, row int)
	Palette() [vterm.PaletteSize]uint16
	StatusLabel() string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithMaxFPS caps redraws per second. Zero or less disables the cap.
func WithMaxFPS(fps int) Option {
	return func(r *Renderer) {
		r.limiter.SetLimit(fpsLimit(fps))
	}
}

// WithStatusLine draws the active session label in the top-right corner.
func WithStatusLine(on bool) Option {
	return func(r *Renderer) {
		r.status = on
	}
}

// WithLogger sets the renderer logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// Renderer is a switch and render observer that redraws the active
// session. Notifications only schedule a frame; Run draws them, so the
// manager never waits on the screen.
type Renderer struct {
	screen tcell.Screen
	src    Source

	mu     sync.Mutex
	frame  []vterm.Cell
	status bool

	pending chan struct{}
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

// NewRenderer creates a renderer drawing src onto screen.
func NewRenderer(screen tcell.Screen, src Source, opts ...Option) *Renderer {
	rows, cols := src.Size()
	r := &Renderer{
		screen:  screen,
		src:     src,
		frame:   make([]vterm.Cell, rows*cols),
		pending: make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func fpsLimit(fps int) rate.Limit {
	if fps <= 0 {
		return rate.Inf
	}
	return rate.Limit(fps)
}

// SetMaxFPS changes the frame cap at run time.
func (r *Renderer) SetMaxFPS(fps int) {
	r.limiter.SetLimit(fpsLimit(fps))
}

// SetStatusLine toggles the status label at run time.
func (r *Renderer) SetStatusLine(on bool) {
	r.mu.Lock()
	r.status = on
	r.mu.Unlock()
	r.Invalidate()
}

// OnSwitch implements vterm.SwitchObserver.
func (r *Renderer) OnSwitch(int) {
	r.Invalidate()
}

// OnRender implements vterm.RenderObserver. Changes to inactive sessions
// are ignored.
func (r *Renderer) OnRender(id int) {
	if id == r.src.Active() {
		r.Invalidate()
	}
}

// Invalidate schedules a redraw. Requests made before the next frame
// coalesce into one.
func (r *Renderer) Invalidate() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run draws a frame for every batch of invalidations, no faster than the
// frame cap, until ctx is done.
func (r *Renderer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.pending:
		}
		if err := r.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		r.Draw()
	}
}

// Draw copies the active session and paints it immediately.
func (r *Renderer) Draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.src.Active()
	rows, cols := r.src.Size()
	r.src.Snapshot(id, r.frame)

	styles := paletteStyles(r.src.Palette())
	for y := 0; y < rows; y++ {
		row := r.frame[y*cols : (y+1)*cols]
		for x, c := range row {
			ch := rune(c.Ch)
			if ch < 0x20 || ch > 0x7E {
				ch = ' '
			}
			r.screen.SetContent(x, y, ch, nil, styles.of(c.Attr))
		}
	}

	if r.status {
		r.drawStatus(cols, styles)
	}

	x, y := r.src.Cursor(id)
	r.screen.ShowCursor(x, y)
	r.screen.Show()

	r.logger.WithField("session", id).Trace("frame drawn")
}

func (r *Renderer) drawStatus(cols int, styles styleTable) {
	label := r.src.StatusLabel()
	start := cols - len(label)
	if start < 0 {
		start = 0
	}
	style := styles.of(vterm.DefaultAttr).Reverse(true)
	for i := 0; i < len(label) && start+i < cols; i++ {
		r.screen.SetContent(start+i, 0, rune(label[i]), nil, style)
	}
}

// styleTable maps palette indices to tcell colors for one frame.
type styleTable [vterm.PaletteSize]tcell.Color

func paletteStyles(p [vterm.PaletteSize]uint16) styleTable {
	var t styleTable
	for i, c := range p {
		t[i] = Color(c)
	}
	return t
}

func (t styleTable) of(a vterm.Attr) tcell.Style {
	return tcell.StyleDefault.Foreground(t[a.Fg()]).Background(t[a.Bg()])
}

// Color converts an RGB565 palette entry to a tcell true color.
func Color(c uint16) tcell.Color {
	r, g, b := vterm.RGB888(c)
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
