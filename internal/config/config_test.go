package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, filepath.Join(dir, "tracedb.sqlite"), cfg.DatabasePath(dir))
}

func TestLoadFromWorkDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
database = "out/trace.db"
pattern = "*.time.json"
jobs = 4
follow_symlinks = true
log_level = "debug"
log_format = "json"

[report]
limit = 5
output = "csv"

[compare]
threshold = 2500
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "*.time.json", cfg.Pattern)
	assert.Equal(t, 4, cfg.Jobs)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5, cfg.Report.Limit)
	assert.Equal(t, "csv", cfg.Report.Output)
	assert.Equal(t, int64(2500), cfg.Compare.Threshold)
	assert.Equal(t, filepath.Join(dir, "out", "trace.db"), cfg.DatabasePath(dir))
	assert.NotEmpty(t, cfg.Source)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `jobs = 2`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Jobs)
	assert.Equal(t, "*.json", cfg.Pattern)
	assert.Equal(t, DefaultLimit, cfg.Report.Limit)
	assert.Equal(t, int64(DefaultThreshold), cfg.Compare.Threshold)
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", `jobs = `},
		{"unknown key", `colour = "red"`},
		{"zero jobs", `jobs = 0`},
		{"bad pattern", `pattern = "[a"`},
		{"bad log format", `log_format = "xml"`},
		{"bad output", "[report]\noutput = \"yaml\""},
		{"negative threshold", "[compare]\nthreshold = -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := Load(dir, "")
			assert.Error(t, err)
		})
	}
}

func TestDatabasePathAbsolute(t *testing.T) {
	cfg := Default()
	cfg.Database = "/tmp/x.sqlite"
	assert.Equal(t, "/tmp/x.sqlite", cfg.DatabasePath("/work"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "traces"), ExpandPath("~/traces"))
	assert.True(t, filepath.IsAbs(ExpandPath("relative")))
}
