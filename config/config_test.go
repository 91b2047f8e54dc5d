package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/weavesync/fetcher"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, defaultServer, cfg.Server)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, fetcher.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, int64(fetcher.DefaultMaxBodySize), cfg.MaxBodySize)
	assert.Equal(t, defaultCacheName, filepath.Base(cfg.CachePath))
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WEAVESYNC_ACCOUNT", "johndoe@example.com")
	t.Setenv("WEAVESYNC_PASSWORD", "hunter2")
	t.Setenv("WEAVESYNC_SYNC_KEY", "a-bcdef-ghijk-mnpqr-stuvw-xyz23")
	t.Setenv("WEAVESYNC_TIMEOUT", "5s")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "johndoe@example.com", cfg.Account)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, "a-bcdef-ghijk-mnpqr-stuvw-xyz23", cfg.SyncKey)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.HasSecrets())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// godotenv does not override variables that are already set.
	t.Setenv("WEAVESYNC_LOG_LEVEL", "")
	os.Unsetenv("WEAVESYNC_LOG_LEVEL")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("WEAVESYNC_LOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "weavesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"server: https://sync.example.com/\naccount: jane@example.com\nlog_format: json\nmax_body_size: 1024\n"), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com/", cfg.Server)
	assert.Equal(t, "jane@example.com", cfg.Account)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, int64(1024), cfg.MaxBodySize)
	assert.False(t, cfg.HasSecrets())
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(New(), "does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:      defaultServer,
			Account:     "johndoe@example.com",
			LogFormat:   "text",
			Timeout:     time.Second,
			MaxBodySize: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		missing bool
		wantErr bool
	}{
		{"valid", func(*Config) {}, false, false},
		{"no server", func(c *Config) { c.Server = "" }, true, true},
		{"no account", func(c *Config) { c.Account = "" }, true, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false, true},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissing))
		})
	}
}
