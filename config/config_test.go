package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	be.Err(t, os.WriteFile(path, []byte(content), 0644), nil)
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	be.Err(t, err, nil)
	be.Equal(t, cfg, Default())
	be.Equal(t, cfg.Prompt, "ready> ")
	be.Equal(t, cfg.MaxCallDepth, 10000)
}

func TestLoad_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeConfig(t, `
prompt = "kal> "
show_ir = true
max_call_depth = 500
`)
	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.Prompt, "kal> ")
	be.Equal(t, cfg.ContinuationPrompt, "...> ")
	be.True(t, cfg.ShowIR)
	be.Equal(t, cfg.MaxCallDepth, 500)
}

func TestLoad_ExpandsHome(t *testing.T) {
	t.Setenv("HOME", "/home/kal")
	path := writeConfig(t, `
history_file = "~/.hist"
log_file = "/tmp/kal.log"
`)
	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.HistoryFile, "/home/kal/.hist")
	be.Equal(t, cfg.LogFile, "/tmp/kal.log")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{"syntax", "prompt = ", "config "},
		{"unknown key", "colour = true\n", "unknown keys: colour"},
		{"wrong type", "show_ir = \"yes\"\n", "config "},
		{"bad depth", "max_call_depth = 0\n", "max_call_depth must be positive"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.content))
			be.Err(t, err, test.err)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	path, err := DefaultPath()
	be.Err(t, err, nil)
	be.Equal(t, path, "/xdg/kaleido/config.toml")
}
