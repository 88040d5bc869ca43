package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/vtmux/internal/logging"
	"github.com/dshills/vtmux/internal/vterm"
)

// Config is the complete vtmux configuration.
type Config struct {
	// Palette holds 16 "#RRGGBB" colors. Empty means the built-in palette.
	Palette []string `toml:"palette" yaml:"palette"`

	Terminal TerminalConfig `toml:"terminal" yaml:"terminal"`
	Memory   MemoryConfig   `toml:"memory" yaml:"memory"`
	Display  DisplayConfig  `toml:"display" yaml:"display"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// TerminalConfig sizes the session pool.
type TerminalConfig struct {
	Rows            int `toml:"rows" yaml:"rows"`
	Cols            int `toml:"cols" yaml:"cols"`
	Sessions        int `toml:"sessions" yaml:"sessions"`
	QueueSize       int `toml:"queue_size" yaml:"queue_size"`
	MaxBindings     int `toml:"max_bindings" yaml:"max_bindings"`
	HotkeyTimeoutMS int `toml:"hotkey_timeout_ms" yaml:"hotkey_timeout_ms"`
}

// MemoryConfig sets the storage tier budgets in bytes. Zero picks the
// manager's defaults.
type MemoryConfig struct {
	FastBytes int `toml:"fast_bytes" yaml:"fast_bytes"`
	SlowBytes int `toml:"slow_bytes" yaml:"slow_bytes"`
}

// DisplayConfig controls the terminal renderer.
type DisplayConfig struct {
	// MaxFPS caps redraws per second. Zero disables the cap.
	MaxFPS int `toml:"max_fps" yaml:"max_fps"`
	// StatusLine draws the "[VTn]" indicator in the top-right corner.
	StatusLine bool `toml:"status_line" yaml:"status_line"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// Default returns the built-in configuration.
func Default() *Config {
	lc := logging.DefaultConfig()
	return &Config{
		Terminal: TerminalConfig{
			Rows:            vterm.DefaultRows,
			Cols:            vterm.DefaultCols,
			Sessions:        vterm.DefaultCount,
			QueueSize:       vterm.DefaultQueueSize,
			MaxBindings:     vterm.DefaultMaxBindings,
			HotkeyTimeoutMS: int(vterm.DefaultHotkeyTimeout / time.Millisecond),
		},
		Display: DisplayConfig{
			MaxFPS:     60,
			StatusLine: true,
		},
		Log: LogConfig{
			Level:      lc.Level,
			MaxSizeMB:  lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAgeDays: lc.MaxAgeDays,
		},
	}
}

var logLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks every setting and reports all failures at once.
func (c *Config) Validate() error {
	verr := &ValidationError{}
	t := c.Terminal

	if t.Rows < 1 {
		verr.add("terminal.rows", "must be at least 1", t.Rows)
	}
	if t.Cols < 1 {
		verr.add("terminal.cols", "must be at least 1", t.Cols)
	}
	if t.Sessions < 1 {
		verr.add("terminal.sessions", "must be at least 1", t.Sessions)
	}
	if t.QueueSize < 1 {
		verr.add("terminal.queue_size", "must be at least 1", t.QueueSize)
	}
	if t.MaxBindings < 1 {
		verr.add("terminal.max_bindings", "must be at least 1", t.MaxBindings)
	}
	if t.HotkeyTimeoutMS < 1 {
		verr.add("terminal.hotkey_timeout_ms", "must be at least 1", t.HotkeyTimeoutMS)
	}

	if c.Memory.FastBytes < 0 {
		verr.add("memory.fast_bytes", "must not be negative", c.Memory.FastBytes)
	}
	if c.Memory.SlowBytes < 0 {
		verr.add("memory.slow_bytes", "must not be negative", c.Memory.SlowBytes)
	}

	if n := len(c.Palette); n != 0 && n != vterm.PaletteSize {
		verr.add("palette", fmt.Sprintf("must have %d entries", vterm.PaletteSize), n)
	}
	for i, s := range c.Palette {
		if _, err := ParseColor(s); err != nil {
			verr.add(fmt.Sprintf("palette[%d]", i), err.Error(), s)
		}
	}

	if c.Display.MaxFPS < 0 {
		verr.add("display.max_fps", "must not be negative", c.Display.MaxFPS)
	}
	if !logLevels[strings.ToLower(c.Log.Level)] {
		verr.add("log.level", "must be debug, info, warn or error", c.Log.Level)
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ParseColor converts "#RRGGBB" (the '#' is optional) to RGB565.
func ParseColor(s string) (uint16, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("color %q is not #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q is not #RRGGBB", s)
	}
	return vterm.RGB565(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

// FormatColor renders an RGB565 color as "#RRGGBB".
func FormatColor(c uint16) string {
	r, g, b := vterm.RGB888(c)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// PaletteColors returns the configured palette, or the built-in one.
func (c *Config) PaletteColors() ([vterm.PaletteSize]uint16, error) {
	if len(c.Palette) == 0 {
		return vterm.DefaultPalette, nil
	}
	var out [vterm.PaletteSize]uint16
	if len(c.Palette) != vterm.PaletteSize {
		return out, fmt.Errorf("palette has %d entries, want %d", len(c.Palette), vterm.PaletteSize)
	}
	for i, s := range c.Palette {
		v, err := ParseColor(s)
		if err != nil {
			return out, fmt.Errorf("palette[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// VTerm converts the configuration into manager settings.
func (c *Config) VTerm() (vterm.Config, error) {
	colors, err := c.PaletteColors()
	if err != nil {
		return vterm.Config{}, err
	}
	t := c.Terminal
	return vterm.Config{
		Rows:          t.Rows,
		Cols:          t.Cols,
		Count:         t.Sessions,
		QueueSize:     t.QueueSize,
		MaxBindings:   t.MaxBindings,
		HotkeyTimeout: time.Duration(t.HotkeyTimeoutMS) * time.Millisecond,
		FastTierBytes: c.Memory.FastBytes,
		SlowTierBytes: c.Memory.SlowBytes,
		Palette:       &colors,
	}, nil
}

// Logging converts the log section into logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
