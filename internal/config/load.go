package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a config file encoding.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. No extension is TOML.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", "":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads path over the defaults, applies VTMUX_* environment overrides
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			format, ferr := FormatFor(path)
			if ferr != nil {
				return nil, ferr
			}
			if err := decode(cfg, path, data, format); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// File doesn't exist, not an error
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates it. It does not
// consult the environment.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	if err := decode(cfg, "<"+string(format)+">", data, format); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(cfg *Config, source string, data []byte, format Format) error {
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, cfg); err != nil {
			perr := &ParseError{Path: source, Message: err.Error(), Err: err}
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				perr.Line, perr.Column = derr.Position()
			}
			return perr
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return nil
}

// envInts maps integer environment variables to their settings.
func (c *Config) envInts() map[string]*int {
	return map[string]*int{
		"VTMUX_ROWS":              &c.Terminal.Rows,
		"VTMUX_COLS":              &c.Terminal.Cols,
		"VTMUX_SESSIONS":          &c.Terminal.Sessions,
		"VTMUX_QUEUE_SIZE":        &c.Terminal.QueueSize,
		"VTMUX_HOTKEY_TIMEOUT_MS": &c.Terminal.HotkeyTimeoutMS,
		"VTMUX_MAX_FPS":           &c.Display.MaxFPS,
	}
}

// ApplyEnv overrides settings from VTMUX_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for name, dst := range c.envInts() {
		val, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return &ParseError{Path: "env " + name, Message: "not an integer: " + val, Err: err}
		}
		*dst = n
	}
	if val, ok := lookup("VTMUX_LOG_LEVEL"); ok {
		c.Log.Level = val
	}
	if val, ok := lookup("VTMUX_LOG_FILE"); ok {
		c.Log.File = val
	}
	return nil
}
