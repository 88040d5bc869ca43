package vterm

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// hotkeyBufSize bounds the scratch buffer for a candidate sequence.
	hotkeyBufSize = 16

	// maxHotkeyLen is the longest sequence still considered a candidate.
	maxHotkeyLen = 10

	// DefaultHotkeyTimeout is how long a partial sequence may wait for its
	// next byte before it is delivered as ordinary input.
	DefaultHotkeyTimeout = 20 * time.Millisecond
)

// hotkeyDetector watches the raw keyboard stream for session-switch
// sequences. It is global, not per session.
//
// Recognized encodings, K in 0..3:
//
//	ESC O P/Q/R/S          F1-F4
//	ESC O 5 P/Q/R/S        Ctrl+F1-F4 (alternate)
//	ESC [ 1 ; 5 P/Q/R/S    Ctrl+F1-F4 (xterm)
//	ESC [ 11..14 ~         F1-F4 (vt), optionally ESC [ 11..14 ; m ~
//	ESC [ 49..52 ; 5 u     Ctrl+1-4 (CSI u)
type hotkeyDetector struct {
	mu    sync.Mutex
	buf   [hotkeyBufSize]byte
	n     int // bytes stored
	seen  int // bytes received, including dropped overflow
	start time.Time

	timeout time.Duration
	now     func() time.Time

	// deliver enqueues one byte to the active session.
	deliver func(b byte)
	logger  logrus.FieldLogger
}

// feed consumes one raw input byte. It returns the session to switch to
// when b completes a hotkey, or -1.
func (d *hotkeyDetector) feed(b byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen > 0 && d.now().Sub(d.start) > d.timeout {
		d.flush("timeout")
	}

	if d.seen == 0 {
		if b == 0x1B {
			d.begin(b)
		} else {
			d.deliver(b)
		}
		return -1
	}

	d.append(b)
	complete := d.seen == d.n
	if complete {
		if k := matchHotkey(d.buf[:d.n]); k >= 0 {
			d.n = 0
			d.seen = 0
			return k
		}
		if couldBeHotkey(d.buf[:d.n]) {
			return -1
		}
	}

	// A failing ESC starts the next candidate after the flush.
	if b == 0x1B && complete {
		d.n--
		d.seen--
		d.flush("mismatch")
		d.begin(b)
		return -1
	}
	d.flush("mismatch")
	return -1
}

// expire flushes a partial sequence older than the timeout.
func (d *hotkeyDetector) expire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.seen == 0 || d.now().Sub(d.start) <= d.timeout {
		return false
	}
	d.flush("timeout")
	return true
}

// pending returns the number of buffered bytes.
func (d *hotkeyDetector) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

func (d *hotkeyDetector) begin(b byte) {
	d.buf[0] = b
	d.n = 1
	d.seen = 1
	d.start = d.now()
}

func (d *hotkeyDetector) append(b byte) {
	if d.n < len(d.buf) {
		d.buf[d.n] = b
		d.n++
	}
	d.seen++
}

// flush delivers the buffered bytes in arrival order.
func (d *hotkeyDetector) flush(reason string) {
	for _, b := range d.buf[:d.n] {
		d.deliver(b)
	}
	if d.logger != nil {
		d.logger.WithFields(logrus.Fields{
			"reason":  reason,
			"bytes":   d.n,
			"dropped": d.seen - d.n,
		}).Debug("hotkey candidate flushed")
	}
	d.n = 0
	d.seen = 0
}

// fkeyIndex maps P/Q/R/S to 0..3.
func fkeyIndex(c byte) int {
	if c >= 'P' && c <= 'S' {
		return int(c - 'P')
	}
	return -1
}

// matchHotkey returns the target session for a complete hotkey, or -1.
func matchHotkey(buf []byte) int {
	if len(buf) < 3 || buf[0] != 0x1B {
		return -1
	}

	switch buf[1] {
	case 'O':
		if len(buf) == 3 {
			return fkeyIndex(buf[2])
		}
		if len(buf) == 4 && buf[2] == '5' {
			return fkeyIndex(buf[3])
		}
		return -1

	case '[':
		body := buf[2 : len(buf)-1]
		switch final := buf[len(buf)-1]; final {
		case 'P', 'Q', 'R', 'S':
			if string(body) == "1;5" {
				return fkeyIndex(final)
			}
		case '~':
			num, _, ok := parseKeyParams(body)
			if ok && num >= 11 && num <= 14 {
				return num - 11
			}
		case 'u':
			code, mod, ok := parseKeyParams(body)
			if ok && mod == 5 && code >= 49 && code <= 52 {
				return code - 49
			}
		}
	}
	return -1
}

// parseKeyParams parses "<num>" or "<num>;<mod>" with nothing left over.
func parseKeyParams(body []byte) (num, mod int, ok bool) {
	i := 0
	for i < len(body) && isDigit(body[i]) {
		num = num*10 + int(body[i]-'0')
		i++
	}
	if i == 0 {
		return 0, 0, false
	}
	if i < len(body) && body[i] == ';' {
		i++
		for i < len(body) && isDigit(body[i]) {
			mod = mod*10 + int(body[i]-'0')
			i++
		}
	}
	return num, mod, i == len(body)
}

// couldBeHotkey reports whether buf is a proper prefix of some hotkey.
func couldBeHotkey(buf []byte) bool {
	n := len(buf)
	if n == 0 || buf[0] != 0x1B {
		return false
	}
	if n == 1 {
		return true
	}
	if n > maxHotkeyLen {
		return false
	}

	switch buf[1] {
	case 'O':
		return n == 2 || (n == 3 && buf[2] == '5')
	case '[':
		for _, c := range buf[2:] {
			if !isDigit(c) && c != ';' {
				return false
			}
		}
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
