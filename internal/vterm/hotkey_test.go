package vterm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type detectorHarness struct {
	d         *hotkeyDetector
	clock     *fakeClock
	delivered []byte
}

func newDetectorHarness() *detectorHarness {
	h := &detectorHarness{clock: newFakeClock()}
	h.d = &hotkeyDetector{
		timeout: DefaultHotkeyTimeout,
		now:     h.clock.now,
		deliver: func(b byte) { h.delivered = append(h.delivered, b) },
	}
	return h
}

// feed returns the last non-negative switch target, or -1.
func (h *detectorHarness) feed(s string) int {
	target := -1
	for i := 0; i < len(s); i++ {
		if k := h.d.feed(s[i]); k >= 0 {
			target = k
		}
	}
	return target
}

func TestHotkeyEncodings(t *testing.T) {
	tests := []struct {
		seq  string
		want int
	}{
		{"\x1bOP", 0},
		{"\x1bOQ", 1},
		{"\x1bOR", 2},
		{"\x1bOS", 3},
		{"\x1bO5P", 0},
		{"\x1bO5S", 3},
		{"\x1b[1;5P", 0},
		{"\x1b[1;5Q", 1},
		{"\x1b[1;5S", 3},
		{"\x1b[11~", 0},
		{"\x1b[12~", 1},
		{"\x1b[13~", 2},
		{"\x1b[14~", 3},
		{"\x1b[11;2~", 0},
		{"\x1b[14;5~", 3},
		{"\x1b[49;5u", 0},
		{"\x1b[52;5u", 3},
	}

	for _, tt := range tests {
		t.Run(tt.seq[1:], func(t *testing.T) {
			h := newDetectorHarness()
			assert.Equal(t, tt.want, h.feed(tt.seq))
			assert.Empty(t, h.delivered)
			assert.Equal(t, 0, h.d.pending())
		})
	}
}

func TestHotkeyNonMatchesDelivered(t *testing.T) {
	tests := []string{
		"\x1b[11x",
		"\x1b[15~",
		"\x1b[1~",
		"\x1b[49;3u",
		"\x1b[53;5u",
		"\x1b[1;2P",
		"\x1bOT",
		"\x1bO6P",
		"\x1bx",
		"\x1b[A",
		"\x1b[1234567890",
	}

	for _, seq := range tests {
		t.Run(seq[1:], func(t *testing.T) {
			h := newDetectorHarness()
			assert.Equal(t, -1, h.feed(seq))
			assert.Equal(t, seq, string(h.delivered))
			assert.Equal(t, 0, h.d.pending())
		})
	}
}

func TestHotkeyPlainBytesPassThrough(t *testing.T) {
	h := newDetectorHarness()

	assert.Equal(t, -1, h.feed("ls -l\r"))
	assert.Equal(t, "ls -l\r", string(h.delivered))
}

func TestHotkeyPrefixHeld(t *testing.T) {
	h := newDetectorHarness()

	h.feed("\x1b[1;5")
	assert.Empty(t, h.delivered)
	assert.Equal(t, 5, h.d.pending())
}

func TestHotkeyTimeoutFlushesOnNextByte(t *testing.T) {
	h := newDetectorHarness()

	h.feed("\x1b[1")
	h.clock.advance(DefaultHotkeyTimeout + time.Millisecond)
	assert.Equal(t, -1, h.feed("1~"))

	assert.Equal(t, "\x1b[11~", string(h.delivered))
}

func TestHotkeyWithinTimeout(t *testing.T) {
	h := newDetectorHarness()

	h.feed("\x1b[1")
	h.clock.advance(DefaultHotkeyTimeout)
	assert.Equal(t, 0, h.feed("1~"))
	assert.Empty(t, h.delivered)
}

func TestHotkeyTimeoutThenNewEscape(t *testing.T) {
	h := newDetectorHarness()

	h.feed("\x1b")
	h.clock.advance(time.Second)
	assert.Equal(t, 2, h.feed("\x1bOR"))
	assert.Equal(t, []byte{0x1B}, h.delivered)
}

func TestHotkeyFailingEscapeRestarts(t *testing.T) {
	h := newDetectorHarness()

	assert.Equal(t, 0, h.feed("\x1b[1\x1bOP"))
	assert.Equal(t, "\x1b[1", string(h.delivered))
}

func TestHotkeyDoubleEscape(t *testing.T) {
	h := newDetectorHarness()

	h.feed("\x1b\x1b")
	assert.Equal(t, []byte{0x1B}, h.delivered)
	assert.Equal(t, 1, h.d.pending())
}

func TestHotkeyExpire(t *testing.T) {
	h := newDetectorHarness()

	assert.False(t, h.d.expire())

	h.feed("\x1bO")
	assert.False(t, h.d.expire())

	h.clock.advance(DefaultHotkeyTimeout + time.Millisecond)
	assert.True(t, h.d.expire())
	assert.Equal(t, "\x1bO", string(h.delivered))
	assert.Equal(t, 0, h.d.pending())
}

func TestMatchHotkey(t *testing.T) {
	assert.Equal(t, -1, matchHotkey(nil))
	assert.Equal(t, -1, matchHotkey([]byte("OP")))
	assert.Equal(t, -1, matchHotkey([]byte("\x1b[~")))
	assert.Equal(t, 1, matchHotkey([]byte("\x1bOQ")))
}

func TestCouldBeHotkey(t *testing.T) {
	assert.True(t, couldBeHotkey([]byte("\x1b")))
	assert.True(t, couldBeHotkey([]byte("\x1bO")))
	assert.True(t, couldBeHotkey([]byte("\x1bO5")))
	assert.True(t, couldBeHotkey([]byte("\x1b[")))
	assert.True(t, couldBeHotkey([]byte("\x1b[52;5")))

	assert.False(t, couldBeHotkey(nil))
	assert.False(t, couldBeHotkey([]byte("a")))
	assert.False(t, couldBeHotkey([]byte("\x1bO6")))
	assert.False(t, couldBeHotkey([]byte("\x1b[1x")))
	assert.False(t, couldBeHotkey([]byte("\x1b[123456789")))
}
