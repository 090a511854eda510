package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/prompt-library/internal/category"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewManager_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cm, err := NewManager("", quietLogger())
	require.NoError(t, err)

	cfg := cm.Get()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/prompts.db", cfg.Database.Path)
	assert.Equal(t, "", cfg.Search.IndexPath)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.Auth.GitHub.CallbackURL)
	assert.False(t, cfg.Auth.GitHub.Enabled())
	assert.Equal(t, "glm-4.5-flash", cfg.Optimizer.Model)
	assert.Equal(t, uint(3), cfg.Optimizer.Attempts)
	assert.False(t, cfg.Versioning.StrictPointerUpdates)
	assert.Equal(t, category.DefaultTable(), cfg.Categories)
	assert.Equal(t, "", cm.ConfigFile())
}

func TestNewManager_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
server:
  port: 9000
  base_url: https://prompts.example.com/
auth:
  jwt_secret: from-file
  token_ttl: 2h
  github:
    client_id: id
    client_secret: secret
versioning:
  strict_pointer_updates: true
log:
  level: debug
  format: json
categories:
  - name: cooking
    keywords: [recipe, 菜谱]
`)

	cm, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	cfg := cm.Get()

	assert.Equal(t, path, cm.ConfigFile())
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.GitHub.Enabled())
	assert.Equal(t, "https://prompts.example.com/auth/github/callback", cfg.Auth.GitHub.CallbackURL)
	assert.True(t, cfg.Versioning.StrictPointerUpdates)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, []category.Category{{Name: "cooking", Keywords: []string{"recipe", "菜谱"}}}, cfg.Categories)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "data/prompts.db", cfg.Database.Path)
}

func TestNewManager_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server:\n  port: 9000\n")
	t.Setenv("PROMPTLIB_SERVER_PORT", "9100")
	t.Setenv("PROMPTLIB_AUTH_JWT_SECRET", "from-env")
	t.Setenv("PROMPTLIB_OPTIMIZER_API_KEY", "sk-test")
	t.Setenv("PROMPTLIB_VERSIONING_STRICT_POINTER_UPDATES", "true")

	cm, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	cfg := cm.Get()

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "sk-test", cfg.Optimizer.APIKey)
	assert.True(t, cfg.Versioning.StrictPointerUpdates)
}

func TestNewManager_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "server: [unclosed\n")

	_, err := NewManager(path, quietLogger())
	assert.Error(t, err)
}

func TestReload_NotifiesCallbacks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "categories:\n  - name: a\n    keywords: [x]\n")

	cm, err := NewManager(path, quietLogger())
	require.NoError(t, err)

	var calls atomic.Int32
	var seen *Config
	cm.OnChange(func(c *Config) {
		calls.Add(1)
		seen = c
	})

	writeFile(t, path, "categories:\n  - name: b\n    keywords: [y]\n")
	require.NoError(t, cm.v.ReadInConfig())
	cm.reload(path)

	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, seen)
	assert.Equal(t, "b", seen.Categories[0].Name)
	assert.Same(t, seen, cm.Get())
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cm, err := NewManager(path, quietLogger())
	require.NoError(t, err)
	cfg := cm.Get()

	want := DefaultConfig()
	assert.Equal(t, want.Server, cfg.Server)
	assert.Equal(t, want.Auth.TokenTTL, cfg.Auth.TokenTTL)
	assert.Equal(t, want.Optimizer, cfg.Optimizer)
	assert.Equal(t, want.Categories, cfg.Categories)
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		c := &Config{Log: LogConfig{Level: in}}
		assert.Equal(t, want, c.SlogLevel(), "level %q", in)
	}
}
