// Package config loads weavesync CLI settings from flags, the environment,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmcleod/weavesync/fetcher"
)

const (
	EnvPrefix = "WEAVESYNC"

	defaultServer    = "https://auth.services.mozilla.com/"
	defaultLogLevel  = "warn"
	defaultLogFormat = "text"
	defaultCacheName = "cache.db"
	defaultConfigDir = ".weavesync"
)

// Keys understood by Load. Each can be set as WEAVESYNC_<KEY>.
const (
	KeyServer      = "server"
	KeyAccount     = "account"
	KeyPassword    = "password"
	KeySyncKey     = "sync_key"
	KeyLogLevel    = "log_level"
	KeyLogFormat   = "log_format"
	KeyCachePath   = "cache_path"
	KeyTimeout     = "timeout"
	KeyMaxBodySize = "max_body_size"
)

var ErrMissing = errors.New("missing configuration value")

type Config struct {
	Server      string        `mapstructure:"server"`
	Account     string        `mapstructure:"account"`
	Password    string        `mapstructure:"password"`
	SyncKey     string        `mapstructure:"sync_key"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFormat   string        `mapstructure:"log_format"`
	CachePath   string        `mapstructure:"cache_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int64         `mapstructure:"max_body_size"`
}

// New returns a viper instance with defaults and environment binding applied.
// Callers bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyServer, defaultServer)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyLogFormat, defaultLogFormat)
	v.SetDefault(KeyCachePath, defaultCachePath())
	v.SetDefault(KeyTimeout, fetcher.DefaultTimeout)
	v.SetDefault(KeyMaxBodySize, int64(fetcher.DefaultMaxBodySize))

	// Env-only keys must be bound so Unmarshal sees them.
	for _, k := range []string{KeyAccount, KeyPassword, KeySyncKey} {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the .env file in the working directory if present, then the
// config file at path if one is given, and decodes the result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values every bootstrap needs. Password and sync key
// are checked separately because they may come from the keyring.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("%w: %s", ErrMissing, KeyServer)
	}
	if c.Account == "" {
		return fmt.Errorf("%w: %s", ErrMissing, KeyAccount)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid %s %q", KeyLogFormat, c.LogFormat)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid %s %s", KeyTimeout, c.Timeout)
	}
	if c.MaxBodySize <= 0 {
		return fmt.Errorf("invalid %s %d", KeyMaxBodySize, c.MaxBodySize)
	}
	return nil
}

// HasSecrets reports whether both password and sync key are present.
func (c *Config) HasSecrets() bool {
	return c.Password != "" && c.SyncKey != ""
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, defaultConfigDir, defaultCacheName)
}
