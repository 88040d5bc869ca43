package display

import (
	"context"

	"github.com/gdamore/tcell/v2"
)

// functionKeys holds the xterm encodings of F1-F12. F1-F4 use SS3 so
// they reach the hotkey detector in the form it matches.
var functionKeys = map[tcell.Key]string{
	tcell.KeyF1:  "\x1bOP",
	tcell.KeyF2:  "\x1bOQ",
	tcell.KeyF3:  "\x1bOR",
	tcell.KeyF4:  "\x1bOS",
	tcell.KeyF5:  "\x1b[15~",
	tcell.KeyF6:  "\x1b[17~",
	tcell.KeyF7:  "\x1b[18~",
	tcell.KeyF8:  "\x1b[19~",
	tcell.KeyF9:  "\x1b[20~",
	tcell.KeyF10: "\x1b[21~",
	tcell.KeyF11: "\x1b[23~",
	tcell.KeyF12: "\x1b[24~",
}

var cursorKeys = map[tcell.Key]string{
	tcell.KeyUp:     "\x1b[A",
	tcell.KeyDown:   "\x1b[B",
	tcell.KeyRight:  "\x1b[C",
	tcell.KeyLeft:   "\x1b[D",
	tcell.KeyHome:   "\x1b[H",
	tcell.KeyEnd:    "\x1b[F",
	tcell.KeyInsert: "\x1b[2~",
	tcell.KeyDelete: "\x1b[3~",
	tcell.KeyPgUp:   "\x1b[5~",
	tcell.KeyPgDn:   "\x1b[6~",
}

// EncodeKey turns a key event into the bytes a VT100-style terminal would
// send. Runes outside ASCII have no encoding and yield nil.
func EncodeKey(ev *tcell.EventKey) []byte {
	key, mod := ev.Key(), ev.Modifiers()

	switch {
	case key == tcell.KeyRune:
		ch := ev.Rune()
		if ch < 0x20 || ch > 0x7E {
			return nil
		}
		if mod&tcell.ModCtrl != 0 && ch >= '@' {
			return []byte{byte(ch) & 0x1F}
		}
		if mod&tcell.ModAlt != 0 {
			return []byte{0x1B, byte(ch)}
		}
		return []byte{byte(ch)}

	case key == tcell.KeyBackspace || key == tcell.KeyBackspace2:
		// tcell folds DEL into Backspace; terminals send DEL for it.
		return []byte{0x7F}

	case key >= tcell.KeyCtrlSpace && key <= tcell.KeyCtrlUnderscore:
		// Ctrl+letter arrives as KeyCtrlA.. whatever the modifier bits say.
		return []byte{byte(key) & 0x1F}

	case key < 0x20:
		// Enter, Tab and Escape are their ASCII code.
		return []byte{byte(key)}
	}

	if seq, ok := functionKeys[key]; ok {
		if mod&tcell.ModCtrl != 0 && key <= tcell.KeyF4 {
			// Ctrl+F1-F4 in xterm form: ESC [ 1 ; 5 P-S
			return []byte{0x1B, '[', '1', ';', '5', seq[2]}
		}
		return []byte(seq)
	}
	if seq, ok := cursorKeys[key]; ok {
		return []byte(seq)
	}
	return nil
}

// InputSink receives raw keyboard bytes.
type InputSink interface {
	FeedInput(b byte) bool
}

// Pump reads screen events until the screen is finalized or ctx is done,
// feeding encoded keys to sink. Resize events invalidate r when non-nil.
// PollEvent blocks, so callers stop Pump by finalizing the screen.
func Pump(ctx context.Context, screen tcell.Screen, sink InputSink, r *Renderer) error {
	for {
		ev := screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}

		switch e := ev.(type) {
		case *tcell.EventKey:
			for _, b := range EncodeKey(e) {
				sink.FeedInput(b)
			}
		case *tcell.EventResize:
			screen.Sync()
			if r != nil {
				r.Invalidate()
			}
		}
	}
}
