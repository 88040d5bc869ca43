// Package console is a minimal line-oriented shell that runs on one
// session. It stands in for a real command layer: it reads keyboard bytes
// from its session's input queue, echoes them, and runs a few built-in
// commands.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/vtmux/internal/logging"
	"github.com/dshills/vtmux/internal/vterm"
)

// maxLine bounds the edit buffer.
const maxLine = 120

// pollInterval is how long one read waits before checking for shutdown.
const pollInterval = 50 * time.Millisecond

// Terminal is the session manager surface a console uses.
type Terminal interface {
	Write(id int, p []byte)
	GetChar(id int, timeout time.Duration) int
	Clear(id int)
	Bind(task vterm.TaskID, id int)
	Unbind(task vterm.TaskID)
	SessionFor(ctx context.Context) int
	Palette() [vterm.PaletteSize]uint16
}

// Option configures a Console.
type Option func(*Console)

// WithQuit sets the function the "quit" command calls.
func WithQuit(fn func()) Option {
	return func(c *Console) {
		c.quit = fn
	}
}

// WithLogger sets the console logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Console) {
		if l != nil {
			c.logger = l
		}
	}
}

// Console is a shell bound to one session.
type Console struct {
	term    Terminal
	session int
	task    vterm.TaskID

	line     []byte
	escaping bool

	quit   func()
	logger logrus.FieldLogger
}

// New creates a console for session id.
func New(term Terminal, id int, opts ...Option) *Console {
	c := &Console{
		term:    term,
		session: id,
		task:    vterm.NewTaskID(),
		line:    make([]byte, 0, maxLine),
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Task returns the console's task identifier.
func (c *Console) Task() vterm.TaskID {
	return c.task
}

// Run binds the console's task to its session and serves input until ctx
// is done.
func (c *Console) Run(ctx context.Context) error {
	c.term.Bind(c.task, c.session)
	defer c.term.Unbind(c.task)
	ctx = vterm.WithTask(ctx, c.task)

	c.printf(ctx, "vtmux console on session %d. Type 'help'.\r\n", c.session)
	c.prompt(ctx)

	for {
		if ctx.Err() != nil {
			return nil
		}
		b := c.term.GetChar(c.term.SessionFor(ctx), pollInterval)
		if b == vterm.NoInput {
			continue
		}
		c.handle(ctx, byte(b))
	}
}

func (c *Console) handle(ctx context.Context, b byte) {
	if c.escaping {
		// Swallow cursor and function keys up to their final byte.
		if b >= '@' && b <= '~' && b != '[' && b != 'O' {
			c.escaping = false
		}
		return
	}

	switch {
	case b == 0x1B:
		c.escaping = true
	case b == '\r' || b == '\n':
		c.printf(ctx, "\r\n")
		cmd := string(c.line)
		c.line = c.line[:0]
		c.exec(ctx, cmd)
		c.prompt(ctx)
	case b == 0x7F || b == '\b':
		if len(c.line) > 0 {
			c.line = c.line[:len(c.line)-1]
			c.printf(ctx, "\b")
		}
	case b == 0x03: // Ctrl+C
		c.line = c.line[:0]
		c.printf(ctx, "^C\r\n")
		c.prompt(ctx)
	case b == 0x0C: // Ctrl+L
		c.exec(ctx, "clear")
		c.prompt(ctx)
		c.printf(ctx, "%s", c.line)
	case b >= 0x20 && b < 0x7F:
		if len(c.line) < maxLine {
			c.line = append(c.line, b)
			c.term.Write(c.term.SessionFor(ctx), []byte{b})
		}
	}
}

func (c *Console) exec(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	c.logger.WithFields(logrus.Fields{
		"session": c.session,
		"command": fields[0],
	}).Debug("console command")

	switch fields[0] {
	case "help":
		c.printf(ctx, "commands: help clear echo who colors quit\r\n")
		c.printf(ctx, "F1-F4 or Ctrl+F1-F4 switch sessions\r\n")
	case "clear":
		c.term.Clear(c.term.SessionFor(ctx))
	case "echo":
		c.printf(ctx, "%s\r\n", strings.Join(fields[1:], " "))
	case "who":
		c.printf(ctx, "session %d task %s\r\n", c.term.SessionFor(ctx), c.task)
	case "colors":
		for i := 0; i < 8; i++ {
			c.printf(ctx, "\x1b[%dm  ", 40+i)
		}
		c.printf(ctx, "\x1b[0m\r\n")
		for i := 0; i < 8; i++ {
			c.printf(ctx, "\x1b[%dm  ", 100+i)
		}
		c.printf(ctx, "\x1b[0m\r\n")
		p := c.term.Palette()
		c.printf(ctx, "palette[1] = #%04X\r\n", p[1])
	case "quit", "exit":
		if c.quit != nil {
			c.quit()
		}
	default:
		c.printf(ctx, "unknown command: %s\r\n", fields[0])
	}
}

func (c *Console) prompt(ctx context.Context) {
	c.printf(ctx, "vt%d$ ", c.session)
}

func (c *Console) printf(ctx context.Context, format string, args ...any) {
	c.term.Write(c.term.SessionFor(ctx), []byte(fmt.Sprintf(format, args...)))
}
