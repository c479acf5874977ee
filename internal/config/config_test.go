package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.Format)
}

func TestConfig_SlogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"DEBUG":   slog.LevelDebug,
	}
	for in, want := range tests {
		cfg := Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty", cfg: Config{}},
		{name: "full", cfg: Config{Schemas: dir, Journal: filepath.Join(dir, "j.db"), LogLevel: "debug", Format: "json"}},
		{name: "memory journal", cfg: Config{Journal: ":memory:"}},
		{name: "bad level", cfg: Config{LogLevel: "loud"}, wantErr: "Config.LogLevel must be one of: debug info warn warning error"},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: "Config.Format must be one of: text json"},
		{name: "missing schemas dir", cfg: Config{Schemas: filepath.Join(dir, "nope")}, wantErr: "Config.Schemas must be an existing directory"},
		{name: "journal is dir", cfg: Config{Journal: dir}, wantErr: "Config.Journal must be a database file path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	schemas := filepath.Join(dir, "schemas")
	require.NoError(t, os.Mkdir(schemas, 0o755))

	path := filepath.Join(dir, "normware.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schemas: "+schemas+"\nlog_level: info\nformat: json\n"), 0o644))

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, schemas, cfg.Schemas)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Format)
	assert.Empty(t, cfg.Journal)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "normware.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	t.Setenv("NORMWARE_LOG_LEVEL", "debug")
	t.Setenv("NORMWARE_JOURNAL", filepath.Join(dir, "actions.db"))

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "actions.db"), cfg.Journal)
}

func TestLoad_NoFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(NewViper(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultFormat, cfg.Format)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(NewViper(filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normware.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: xml\n"), 0o644))

	_, err := Load(NewViper(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestFindConfigFileInPaths(t *testing.T) {
	t.Parallel()
	a, b := t.TempDir(), t.TempDir()
	want := filepath.Join(b, "normware.yml")
	require.NoError(t, os.WriteFile(want, nil, 0o644))

	assert.Equal(t, want, findConfigFileInPaths([]string{a, b}))
	assert.Empty(t, findConfigFileInPaths([]string{a}))
}
