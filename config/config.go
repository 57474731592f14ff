// Package config reads the TOML configuration file shared by the REPL and
// the other subcommands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds user settings. Zero values in a file are kept; keys absent
// from the file keep their defaults.
type Config struct {
	Prompt             string `toml:"prompt"`
	ContinuationPrompt string `toml:"continuation_prompt"`
	// HistoryFile is where the REPL keeps line history. Empty disables
	// history.
	HistoryFile  string `toml:"history_file"`
	ShowIR       bool   `toml:"show_ir"`
	LogFile      string `toml:"log_file"`
	MaxCallDepth int    `toml:"max_call_depth"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".kaleido_history")
	}
	return Config{
		Prompt:             "ready> ",
		ContinuationPrompt: "...> ",
		HistoryFile:        history,
		MaxCallDepth:       10000,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/kaleido/config.toml, or the
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kaleido", "config.toml"), nil
}

// Load decodes the file at path over the defaults. A missing file is not
// an error. Unknown keys are.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.HistoryFile = expandHome(cfg.HistoryFile)
	cfg.LogFile = expandHome(cfg.LogFile)
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.MaxCallDepth < 1 {
		return fmt.Errorf("max_call_depth must be positive, got %d", c.MaxCallDepth)
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
