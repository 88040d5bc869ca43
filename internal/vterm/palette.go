package vterm

import "sync"

// PaletteSize is the number of palette entries.
const PaletteSize = 16

// RGB565 packs 8-bit channels into a 16-bit 5:6:5 color.
func RGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// RGB888 expands a 5:6:5 color back to 8-bit channels.
func RGB888(c uint16) (r, g, b uint8) {
	r5 := uint8(c>>11) & 0x1F
	g6 := uint8(c>>5) & 0x3F
	b5 := uint8(c) & 0x1F
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// DefaultPalette is the xterm-style 16-color palette in RGB565.
var DefaultPalette = [PaletteSize]uint16{
	RGB565(0, 0, 0),       // black
	RGB565(205, 0, 0),     // red
	RGB565(0, 205, 0),     // green
	RGB565(205, 205, 0),   // yellow
	RGB565(0, 0, 238),     // blue
	RGB565(205, 0, 205),   // magenta
	RGB565(0, 205, 205),   // cyan
	RGB565(229, 229, 229), // white
	RGB565(127, 127, 127), // bright black
	RGB565(255, 0, 0),     // bright red
	RGB565(0, 255, 0),     // bright green
	RGB565(255, 255, 0),   // bright yellow
	RGB565(92, 92, 255),   // bright blue
	RGB565(255, 0, 255),   // bright magenta
	RGB565(0, 255, 255),   // bright cyan
	RGB565(255, 255, 255), // bright white
}

// palette is the mutable color table read by the renderer.
type palette struct {
	mu     sync.RWMutex
	colors [PaletteSize]uint16
}

func (p *palette) get(i int) uint16 {
	if i < 0 || i >= PaletteSize {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.colors[i]
}

func (p *palette) set(i int, c uint16) bool {
	if i < 0 || i >= PaletteSize {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors[i] = c
	return true
}

func (p *palette) all() [PaletteSize]uint16 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.colors
}

func (p *palette) setAll(colors [PaletteSize]uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.colors = colors
}
