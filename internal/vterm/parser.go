package vterm

import "strconv"

// escapeBufSize bounds the CSI parameter scratch buffer.
const escapeBufSize = 32

// maxParams bounds the number of numeric CSI parameters kept.
const maxParams = 16

type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateCSI
)

// parser is the resumable escape-sequence state for one session.
// Input arrives in arbitrary chunks, so all state lives here rather than
// on the call stack.
type parser struct {
	state parserState
	buf   [escapeBufSize]byte
	n     int

	// respond receives synthesized replies (DSR).
	respond func(reply []byte)
}

// reset returns the parser to ground state.
func (p *parser) reset() {
	p.state = stateGround
	p.n = 0
}

// process consumes one byte for session s drawing into g.
// The caller holds s.mu.
func (p *parser) process(s *Session, g Grid, b byte) {
	switch p.state {
	case stateGround:
		p.processGround(s, g, b)
	case stateEscape:
		p.processEscape(s, g, b)
	case stateCSI:
		p.processCSI(s, g, b)
	}
}

func (p *parser) processGround(s *Session, g Grid, b byte) {
	switch {
	case b == 0x1B: // ESC
		p.state = stateEscape
		p.n = 0
	case b == '\n':
		s.newline(g)
	case b == '\r':
		s.carriageReturn()
	case b == '\b':
		s.backspace(g)
	case b == '\t':
		s.tab(g)
	case b >= 0x20 && b < 0x7F:
		s.put(g, b)
	default:
		// Remaining C0 controls and 8-bit bytes have no effect.
	}
}

func (p *parser) processEscape(s *Session, g Grid, b byte) {
	switch {
	case b == '[': // CSI
		p.state = stateCSI
		p.n = 0
		return
	case b == 0x1B: // ESC ESC restarts
		p.n = 0
		return
	case b == 'D': // IND - Index
		s.lineFeed(g)
	case b == 'M': // RI - Reverse index
		s.reverseLineFeed(g)
	case b == 'E': // NEL - Next line
		s.carriageReturn()
		s.lineFeed(g)
	case b < 0x20:
		// A control byte ends the escape and is executed normally.
		p.state = stateGround
		p.processGround(s, g, b)
		return
	}
	p.state = stateGround
}

func (p *parser) processCSI(s *Session, g Grid, b byte) {
	switch {
	case b == 0x18, b == 0x1A: // CAN, SUB abort
		p.state = stateGround
		p.n = 0
	case b == 0x1B:
		p.state = stateEscape
		p.n = 0
	case b >= 0x40 && b <= 0x7E: // Final
		p.state = stateGround
		p.dispatch(s, g, b)
		p.n = 0
	case b >= 0x20 && b <= 0x3F: // Parameter and intermediate bytes
		if p.n < len(p.buf) {
			p.buf[p.n] = b
			p.n++
		}
	default:
		// Other controls inside a sequence are ignored.
	}
}

// private reports whether the collected sequence carries a DEC private
// or other private-use marker.
func (p *parser) private() bool {
	if p.n == 0 {
		return false
	}
	switch p.buf[0] {
	case '?', '<', '=', '>':
		return true
	}
	return false
}

// params splits the collected bytes into semicolon-separated integers.
// Empty fields are 0. Non-digit, non-';' bytes end parsing.
func (p *parser) params(out *[maxParams]int) int {
	if p.n == 0 {
		return 0
	}
	count := 0
	cur := 0
	for i := 0; i < p.n; i++ {
		c := p.buf[i]
		switch {
		case c >= '0' && c <= '9':
			if cur < 100000 {
				cur = cur*10 + int(c-'0')
			}
		case c == ';':
			if count < maxParams {
				out[count] = cur
				count++
			}
			cur = 0
		default:
			if count < maxParams {
				out[count] = cur
				count++
			}
			return count
		}
	}
	if count < maxParams {
		out[count] = cur
		count++
	}
	return count
}

// param returns params[i], or def when missing or zero.
func param(params []int, i, def int) int {
	if i < len(params) && params[i] > 0 {
		return params[i]
	}
	return def
}

func (p *parser) dispatch(s *Session, g Grid, final byte) {
	if p.private() {
		// DEC private modes are recognized and discarded.
		return
	}

	var arr [maxParams]int
	params := arr[:p.params(&arr)]

	switch final {
	case 'm': // SGR
		p.sgr(s, params)

	case 'J': // ED - only whole-screen variants are honored
		if len(params) == 0 || (len(params) == 1 && params[0] == 2) {
			s.clear(g)
		}

	case 'H', 'f': // CUP/HVP
		s.moveTo(param(params, 1, 1)-1, param(params, 0, 1)-1, g)

	case 'A': // CUU
		s.moveTo(s.x, s.y-param(params, 0, 1), g)

	case 'B': // CUD
		s.moveTo(s.x, s.y+param(params, 0, 1), g)

	case 'C': // CUF
		s.moveTo(s.x+param(params, 0, 1), s.y, g)

	case 'D': // CUB
		s.moveTo(s.x-param(params, 0, 1), s.y, g)

	case 'K': // EL
		mode := 0
		if len(params) > 0 {
			mode = params[0]
		}
		switch mode {
		case 0:
			g.ClearRange(s.y, s.x, g.Cols, s.attr)
		case 1:
			g.ClearRange(s.y, 0, s.x+1, s.attr)
		case 2:
			g.ClearRange(s.y, 0, g.Cols, s.attr)
		}

	case 'X': // ECH
		n := param(params, 0, 1)
		g.ClearRange(s.y, s.x, s.x+n, s.attr)

	case 'L': // IL
		g.ScrollDown(s.y, g.Rows-1, param(params, 0, 1))

	case 'M': // DL
		g.ScrollUp(s.y, g.Rows-1, param(params, 0, 1))

	case 'n': // DSR
		if len(params) != 1 || p.respond == nil {
			return
		}
		switch params[0] {
		case 6: // CPR, 1-based
			reply := make([]byte, 0, 16)
			reply = append(reply, 0x1B, '[')
			reply = strconv.AppendInt(reply, int64(s.y+1), 10)
			reply = append(reply, ';')
			reply = strconv.AppendInt(reply, int64(s.x+1), 10)
			reply = append(reply, 'R')
			p.respond(reply)
		case 5: // Operating status: OK
			p.respond([]byte("\x1b[0n"))
		}

	default:
		// Unsupported final: sequence is dropped.
	}
}

// sgr applies Select Graphic Rendition codes left to right. Bold only
// brightens colors set later in the same sequence; the attribute itself
// carries the brightness forward.
func (p *parser) sgr(s *Session, params []int) {
	if len(params) == 0 {
		s.attr = DefaultAttr
		return
	}

	var bright Color
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			s.attr = DefaultAttr
			bright = 0
		case code == 1:
			bright = Bright
			s.attr = s.attr.WithFg(s.attr.Fg() | Bright)
		case code == 22:
			bright = 0
			s.attr = s.attr.WithFg(s.attr.Fg() &^ Bright)
		case code >= 30 && code <= 37:
			fg := Color(code-30) | bright
			s.attr = s.attr.WithFg(fg)
		case code == 38, code == 48:
			// Extended colors are consumed so their arguments are not
			// read as separate codes; only the 16-color palette exists.
			i = skipExtendedColor(params, i)
		case code == 39:
			s.attr = s.attr.WithFg(DefaultAttr.Fg())
		case code >= 40 && code <= 47:
			s.attr = s.attr.WithBg(Color(code - 40))
		case code == 49:
			s.attr = s.attr.WithBg(DefaultAttr.Bg())
		case code >= 90 && code <= 97:
			s.attr = s.attr.WithFg(Color(code-90) | Bright)
		case code >= 100 && code <= 107:
			s.attr = s.attr.WithBg(Color(code-100) | Bright)
		}
	}
}

// skipExtendedColor returns the index of the last parameter belonging to
// the 38/48 sequence starting at i.
func skipExtendedColor(params []int, i int) int {
	if i+1 >= len(params) {
		return i
	}
	switch params[i+1] {
	case 5: // 256-color: 5;N
		if i+2 < len(params) {
			return i + 2
		}
		return len(params) - 1
	case 2: // RGB: 2;R;G;B
		if i+4 < len(params) {
			return i + 4
		}
		return len(params) - 1
	}
	return i
}
