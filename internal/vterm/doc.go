// Package vterm implements the multi-session virtual terminal core for vtmux.
//
// The package keeps a fixed number of independent terminal sessions, each
// with its own character grid, cursor, drawing attribute, input queue and
// escape-sequence parser state. It provides:
//
//   - A byte-at-a-time ANSI/VT100 interpreter (CSI, SGR, index/reverse index)
//   - Two-tier grid storage: the active session lives in a single shared
//     fast grid, every other session in its own slow backing grid
//   - Per-session bounded input queues with blocking, timed reads
//   - A task binding table routing execution contexts to sessions
//   - A hotkey detector that switches sessions from raw keyboard input
//   - A 16-entry RGB565 palette shared with the renderer
//
// # Architecture
//
// The package is organized around these core types:
//
//   - Manager: owns all sessions, the fast grid, the palette and observers
//   - Session: one terminal (grid view, cursor, attribute, queue, parser)
//   - Grid: a row-major view over a cell slice with clear/scroll primitives
//   - Cell: one character and a packed 4-bit fg / 4-bit bg attribute
//
// # Usage
//
//	mgr, err := vterm.New(vterm.DefaultConfig(),
//	    vterm.WithRenderObserver(vterm.RenderFunc(func(id int) {
//	        // redraw if id is the active session
//	    })),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mgr.Write(0, []byte("\x1b[31mhello\x1b[0m\n"))
//	mgr.FeedInput(0x1b) // keyboard bytes go through the hotkey detector
//	c := mgr.GetChar(0, 100*time.Millisecond)
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. GetChar is the only
// method that blocks. Cells and FastBuffer return unlocked views that may
// show a torn frame while a writer is active; use Snapshot when a
// consistent frame is required.
package vterm
