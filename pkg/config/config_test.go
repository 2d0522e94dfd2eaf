package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	content := `
[interpreter]
max_call_depth = 256
log_level = "debug"
cache_size = -1
modules = ["core", "numbers", "exceptions"]
metrics_addr = ":9100"
parse_workers = 4

[repl]
prompt = "kt> "
`
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Interpreter.MaxCallDepth)
	assert.Equal(t, -1, cfg.Interpreter.CacheSize)
	assert.Equal(t, []string{"core", "numbers", "exceptions"}, cfg.Interpreter.Modules)
	assert.Equal(t, ":9100", cfg.Interpreter.MetricsAddr)
	assert.Equal(t, 4, cfg.Interpreter.ParseWorkers)
	assert.Equal(t, "kt> ", cfg.Repl.Prompt)
	assert.Equal(t, ".kotlite_history", cfg.Repl.HistoryFile)

	level, err := ParseLevel(cfg.Interpreter.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Interpreter.LogLevel)
	assert.Equal(t, 0, cfg.Interpreter.MaxCallDepth)
	assert.Len(t, cfg.Interpreter.Modules, 6)
	assert.Equal(t, ">>> ", cfg.Repl.Prompt)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"negative depth", "[interpreter]\nmax_call_depth = -3", "max_call_depth"},
		{"negative workers", "[interpreter]\nparse_workers = -1", "parse_workers"},
		{"bad level", "[interpreter]\nlog_level = \"loud\"", "log_level"},
		{"duplicate module", "[interpreter]\nmodules = [\"core\", \"core\"]", "twice"},
		{"unknown key", "[interpreter]\ncolour = true", "unknown config key"},
		{"syntax", "[interpreter", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
