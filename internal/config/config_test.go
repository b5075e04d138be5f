package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxdesk.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "inboxdesk.db", cfg.Database.Path)
	assert.Equal(t, int64(10<<20), cfg.Uploads.MaxBytes)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFillsPartialConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":8080"
  cors_origins:
    - https://desk.example.com
cron:
  secret: hunter2
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"https://desk.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "hunter2", cfg.Cron.Secret)
	// Unset sections fall back to defaults.
	assert.Equal(t, "inboxdesk.db", cfg.Database.Path)
	assert.Equal(t, "uploads", cfg.Uploads.Dir)
	assert.Equal(t, float64(5), cfg.RateLimit.PerSecond)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
uploads:
  max_bytes: -1
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")
	_, err := Load(path)
	assert.Error(t, err)
}
