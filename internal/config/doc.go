// Package config provides configuration loading for vtmux.
//
// Configuration comes from three sources, later ones overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file (Load)
//  3. VTMUX_* environment variables (ApplyEnv)
//
// A missing file is not an error; the defaults are used. The loaded
// configuration converts into the core manager's settings with VTerm and
// into logger settings with Logging.
//
// # Example File
//
//	palette = ["#000000", "#CD0000", ...]
//
//	[terminal]
//	rows = 37
//	cols = 128
//	sessions = 4
//	hotkey_timeout_ms = 20
//
//	[memory]
//	fast_bytes = 9472
//
// # Live Reload
//
// Watch observes the file with fsnotify and hands every successfully or
// unsuccessfully reloaded configuration to a callback. Only settings that
// can change at run time (the palette, display rate, log level) are
// expected to be reapplied by callers.
package config
