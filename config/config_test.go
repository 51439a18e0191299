package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	c := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))

	assert.Equal(t, "8000", c.AppPort)
	assert.Equal(t, "mysql", c.DBDriver)
	assert.Equal(t, 60, c.CacheTTLSeconds)
	assert.Equal(t, 50, c.MaxUploadMB)
	assert.Equal(t, 480, c.ThumbnailWidth)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
}

func TestLoadFromReadsSections(t *testing.T) {
	path := writeConfig(t, `{
  "app": {"AppPort": "9090", "AllowedOrigins": ["https://a.example"], "SeedOnStart": true},
  "database": {"Driver": "sqlite", "DatabaseURI": "file::memory:"},
  "redis": {"CacheEnabled": true, "CacheTTLSeconds": 5},
  "uploads": {"Dir": "/tmp/up", "ThumbnailWidth": 320},
  "accounts": [
    {"Username": "admin", "PasswordHash": "$2a$10$abc", "Role": "admin"}
  ]
}`)

	c := LoadFrom(path)
	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	assert.True(t, c.SeedOnStart)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.True(t, c.CacheEnabled)
	assert.Equal(t, 5, c.CacheTTLSeconds)
	assert.Equal(t, "/tmp/up", c.UploadDir)
	assert.Equal(t, 320, c.ThumbnailWidth)
	require.Len(t, c.Accounts, 1)
	assert.Equal(t, "admin", c.Accounts[0].Username)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"app": {"AppPort": "9090"}}`)
	t.Setenv("APP_PORT", "7000")
	t.Setenv("MONGODB_URI", "legacy-dsn")
	t.Setenv("ACCOUNTS", "root:superadmin:$2a$10$x, bad-entry ,kim:user:$2a$10$y")

	c := LoadFrom(path)
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, "legacy-dsn", c.DatabaseURI)
	require.Len(t, c.Accounts, 2)
	assert.Equal(t, AccountConfig{Username: "root", Role: "superadmin", PasswordHash: "$2a$10$x"}, c.Accounts[0])
	assert.Equal(t, "kim", c.Accounts[1].Username)
}
