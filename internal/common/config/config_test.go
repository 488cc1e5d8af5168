package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PORT", "ENV", "LOG_LEVEL", "READ_TIMEOUT", "WRITE_TIMEOUT",
		"MAP_DB_PATH", "MAP_MIGRATIONS", "MAP_IMAGE", "EDITOR_IDLE_TTL",
		"MAP_URL", "AUTH_URL", "DOCS_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.Map.EditorIdleTTL)
	assert.Equal(t, "migrations/002_init_map.sql", cfg.Map.Migrations)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "http://localhost:3003", cfg.Gateway.MapURL)
	assert.Equal(t, "docs/openapi.yaml", cfg.Gateway.DocsPath)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
port: "4000"
env: production
log_level: debug
map:
  image: /srv/plan.svg
  editor_idle_ttl: 5m
gateway:
  cors_origins: ["https://map.example.com"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	clearEnv(t)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "4100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "4100", cfg.Port, "env overrides file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/plan.svg", cfg.Map.Image)
	assert.Equal(t, 5*time.Minute, cfg.Map.EditorIdleTTL)
	assert.Equal(t, []string{"https://map.example.com"}, cfg.Gateway.CORSOrigins)
	assert.Equal(t, "data/db/map.db", cfg.Map.DBPath, "unset keys keep defaults")
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing file", env: map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
		{name: "bad timeout", env: map[string]string{"READ_TIMEOUT": "soon"}},
		{name: "bad ttl", env: map[string]string{"EDITOR_IDLE_TTL": "forever"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
