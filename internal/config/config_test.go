package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "docuchat", cfg.App.Name)
	assert.Equal(t, 8000, cfg.App.Port)
	assert.Equal(t, 4, cfg.Retriever.TopK)
	assert.Equal(t, 30, cfg.Retriever.FetchK)
	assert.Equal(t, 1000, cfg.Retriever.ChunkSize)
	assert.Equal(t, 200, cfg.Retriever.ChunkOverlap)
	assert.Equal(t, "sessions", cfg.Store.SessionsDir)
	assert.Equal(t, "document.ingest", cfg.RabbitMQ.IngestQueue)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[app]
port = 9000

[store]
sessions_dir = "/var/lib/docuchat/sessions"

[retriever]
top_k = 8
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "/var/lib/docuchat/sessions", cfg.Store.SessionsDir)
	assert.Equal(t, 8, cfg.Retriever.TopK)
	// Untouched sections keep their defaults.
	assert.Equal(t, "docuchat", cfg.App.Name)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app]\nport = 9000\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9100")
	t.Setenv("SESSIONS_DIR", "/tmp/docuchat-sessions")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "/tmp/docuchat-sessions", cfg.Store.SessionsDir)
}

func TestHTTPAddrAndDSN(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
	assert.Contains(t, cfg.MySQLDSN(), "tcp(127.0.0.1:3306)/docuchat")
}

func TestLoadBadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not toml ==="), 0o644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
