package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/nodesync/internal/errors"
	"github.com/vango-dev/nodesync/pkg/filter"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "nodesync.yaml"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultIdleTimeout is how long a UI may idle before it is closed.
	DefaultIdleTimeout = 10 * time.Minute

	// DefaultMetricsNamespace prefixes every exported metric.
	DefaultMetricsNamespace = "nodesync"
)

// Snapshot backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Config represents nodesync.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Filter is a CEL expression over key deciding which properties of the
	// demo form the client may write.
	Filter string `yaml:"filter,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address        string        `yaml:"address"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxUIs         int           `yaml:"max_uis,omitempty"`
	MaxMessageSize int64         `yaml:"max_message_size,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig contains prometheus settings.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// SnapshotConfig selects where closed UIs are saved.
type SnapshotConfig struct {
	// Backend is one of none, memory, redis, s3.
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis,omitempty"`
	S3      S3Config    `yaml:"s3,omitempty"`
}

// RedisConfig contains redis snapshot store settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// S3Config contains S3 snapshot store settings.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, e.g. for MinIO.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// New returns a Config with defaults applied.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads nodesync.yaml from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a configuration file, applies defaults and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("N101").WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("N101").Wrap(err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("N102").Wrap(err)
	}
	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("N104").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("N104").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the file the config was loaded from or saved to.
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = BackendMemory
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.New("N103").WithDetail(fmt.Sprintf(format, args...))
	}

	if c.Server.IdleTimeout < 0 {
		return invalid("server.idle_timeout must not be negative, got %v", c.Server.IdleTimeout)
	}
	if c.Server.MaxUIs < 0 {
		return invalid("server.max_uis must not be negative, got %d", c.Server.MaxUIs)
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return invalid("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Snapshot.Backend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.Snapshot.Redis.Addr == "" {
			return invalid("snapshot.redis.addr is required for the redis backend")
		}
	case BackendS3:
		if c.Snapshot.S3.Bucket == "" {
			return invalid("snapshot.s3.bucket is required for the s3 backend")
		}
	default:
		return invalid("snapshot.backend must be one of none, memory, redis, s3; got %q", c.Snapshot.Backend)
	}

	if c.Filter != "" {
		if _, err := filter.Compile(c.Filter); err != nil {
			return errors.New("N302").Wrap(err)
		}
	}
	return nil
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := levels[strings.ToLower(c.Log.Level)]; ok {
		return l
	}
	return slog.LevelInfo
}
