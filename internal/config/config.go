// Package config loads the service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration. Zero values fall back to the
// defaults documented on each field.
type Config struct {
	// Listen is the HTTP listen address. Default ":8080".
	Listen string `yaml:"listen"`
	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `yaml:"log_level"`

	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Redis   RedisConfig   `yaml:"redis"`
	Worker  WorkerConfig  `yaml:"worker"`
}

// StorageConfig selects the persistent store backend.
type StorageConfig struct {
	// Driver is memory, sqlite, or postgres. Default sqlite.
	Driver string `yaml:"driver"`
	// SQLitePath is the sqlite database file. Default ./biograph.db.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is the connection string when Driver is postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the blob store backend.
type BlobConfig struct {
	// Driver is fs, s3, or memory. Default fs.
	Driver string `yaml:"driver"`
	// FSRoot is the directory root when Driver is fs. Default ./blobdata.
	FSRoot string `yaml:"fs_root"`
}

// RedisConfig locates the task queue.
type RedisConfig struct {
	// Address is host:port. Empty selects the in-process queue.
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// QueueKey overrides the task list key.
	QueueKey string `yaml:"queue_key"`
}

// WorkerConfig tunes the background worker.
type WorkerConfig struct {
	// SettleDelay is waited between dequeue and handling. Default 2s.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Listen, "BIOGRAPH_LISTEN")
	overrideString(&c.LogLevel, "BIOGRAPH_LOG_LEVEL")
	overrideString(&c.Storage.Driver, "BIOGRAPH_STORAGE_DRIVER")
	overrideString(&c.Storage.SQLitePath, "BIOGRAPH_SQLITE_PATH")
	overrideString(&c.Storage.PostgresDSN, "BIOGRAPH_POSTGRES_DSN")
	overrideString(&c.Blob.Driver, "BIOGRAPH_BLOB_DRIVER")
	overrideString(&c.Blob.FSRoot, "BIOGRAPH_BLOB_FS_ROOT")
	overrideString(&c.Redis.Address, "BIOGRAPH_REDIS_ADDRESS")
	overrideString(&c.Redis.Password, "BIOGRAPH_REDIS_PASSWORD")
	overrideString(&c.Redis.QueueKey, "BIOGRAPH_REDIS_QUEUE_KEY")
	if raw := os.Getenv("BIOGRAPH_REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			c.Redis.DB = db
		}
	}
	if raw := os.Getenv("BIOGRAPH_WORKER_SETTLE_DELAY"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			c.Worker.SettleDelay = d
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Blob.Driver == "" {
		c.Blob.Driver = "fs"
	}
	if c.Worker.SettleDelay == 0 {
		c.Worker.SettleDelay = 2 * time.Second
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
