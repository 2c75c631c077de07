// Package config materializes the application configuration from an optional
// TOML file layered with environment variables. Environment values always
// win over file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Blob      BlobConfig      `toml:"blob"`
	Auth      AuthConfig      `toml:"auth"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig selects the persistent store backend.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// BlobConfig selects the photo blob store backend.
type BlobConfig struct {
	Driver         string `toml:"driver"`
	FSRoot         string `toml:"fs_root"`
	S3Bucket       string `toml:"s3_bucket"`
	S3Region       string `toml:"s3_region"`
	S3Endpoint     string `toml:"s3_endpoint"`
	S3AccessKeyID  string `toml:"s3_access_key_id"`
	S3SecretKey    string `toml:"s3_secret_access_key"`
	S3UsePathStyle bool   `toml:"s3_use_path_style"`
}

// AuthConfig maps static bearer tokens to usernames.
type AuthConfig struct {
	Tokens map[string]string `toml:"tokens"`
}

// AnalyticsConfig holds dashboard tuning values.
type AnalyticsConfig struct {
	CalfValue float64 `toml:"calf_value"`
}

// SchedulerConfig holds the metric snapshot schedule.
type SchedulerConfig struct {
	Enabled     bool   `toml:"enabled"`
	MetricsCron string `toml:"metrics_cron"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `toml:"level"`
}

// Load reads the optional TOML file and environment variables (optionally
// from a .env file) and materializes a Config.
func Load(path string) (*Config, error) {
	// Missing .env files are acceptable when configuration comes from the
	// environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Storage:   StorageConfig{Driver: "sqlite", SQLitePath: "ranchcore.db"},
		Blob:      BlobConfig{Driver: "fs", FSRoot: "photos"},
		Analytics: AnalyticsConfig{CalfValue: 320},
		Scheduler: SchedulerConfig{Enabled: true, MetricsCron: "0 2 * * *"},
		Log:       LogConfig{Level: "info"},
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("decode config file %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "RANCHCORE_ADDR")
	setString(&cfg.Storage.Driver, "RANCHCORE_STORAGE_DRIVER")
	setString(&cfg.Storage.SQLitePath, "RANCHCORE_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "RANCHCORE_POSTGRES_DSN")
	setString(&cfg.Blob.Driver, "RANCHCORE_BLOB_DRIVER")
	setString(&cfg.Blob.FSRoot, "RANCHCORE_BLOB_FS_ROOT")
	setString(&cfg.Blob.S3Bucket, "RANCHCORE_S3_BUCKET")
	setString(&cfg.Blob.S3Region, "RANCHCORE_S3_REGION")
	setString(&cfg.Blob.S3Endpoint, "RANCHCORE_S3_ENDPOINT")
	setString(&cfg.Blob.S3AccessKeyID, "RANCHCORE_S3_ACCESS_KEY_ID")
	setString(&cfg.Blob.S3SecretKey, "RANCHCORE_S3_SECRET_ACCESS_KEY")
	setBool(&cfg.Blob.S3UsePathStyle, "RANCHCORE_S3_USE_PATH_STYLE")
	setFloat(&cfg.Analytics.CalfValue, "RANCHCORE_CALF_VALUE")
	setBool(&cfg.Scheduler.Enabled, "RANCHCORE_SCHEDULER_ENABLED")
	setString(&cfg.Scheduler.MetricsCron, "RANCHCORE_METRICS_CRON")
	setString(&cfg.Log.Level, "RANCHCORE_LOG_LEVEL")

	// RANCHCORE_AUTH_TOKENS holds comma-separated token=username pairs.
	if raw := os.Getenv("RANCHCORE_AUTH_TOKENS"); raw != "" {
		if cfg.Auth.Tokens == nil {
			cfg.Auth.Tokens = make(map[string]string)
		}
		for _, pair := range strings.Split(raw, ",") {
			token, username, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && token != "" && username != "" {
				cfg.Auth.Tokens[token] = username
			}
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

// Validate ensures the configuration names known backends.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return errors.New("s3 blob driver requires a bucket")
	}
	if c.Server.Addr == "" {
		return errors.New("server addr must not be empty")
	}
	return nil
}
