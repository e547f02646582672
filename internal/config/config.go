// Package config loads habitrun settings from config.yaml, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianstephens/habitrun/internal/constants"
	"github.com/julianstephens/habitrun/internal/utils"
)

type Config struct {
	// Database is a SQLite path or a PostgreSQL connection string.
	Database string         `yaml:"database"`
	User     string         `yaml:"user"`
	Timezone string         `yaml:"timezone"`
	Debug    bool           `yaml:"debug"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

type RedisConfig struct {
	// Addr enables the Redis roster when set.
	Addr string `yaml:"addr"`
}

type DispatchConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type AlertsConfig struct {
	Desktop bool `yaml:"desktop"`
}

// Overrides carries flag values; empty fields leave the config alone.
type Overrides struct {
	Database string
	User     string
	Timezone string
	Debug    bool
}

func Default() *Config {
	return &Config{
		Database: constants.DefaultConfigPath,
		User:     constants.DefaultUser,
		Timezone: constants.DefaultTimezone,
		Dispatch: DispatchConfig{
			Interval:    constants.DefaultDispatchInterval,
			BatchSize:   constants.DefaultDispatchBatchSize,
			MaxAttempts: constants.DefaultDispatchMaxAttempts,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", resolved, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", resolved, err)
	}
	return cfg, nil
}

// ApplyEnv applies HABITRUN_* and REDIS_ADDR overrides.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(constants.EnvDatabase)); v != "" {
		c.Database = v
	}
	if v := strings.TrimSpace(getenv(constants.EnvUser)); v != "" {
		c.User = v
	}
	if v := strings.TrimSpace(getenv(constants.EnvTimezone)); v != "" {
		c.Timezone = v
	}
	if v := strings.TrimSpace(getenv(constants.EnvRedis)); v != "" {
		c.Redis.Addr = v
	}
	if v := strings.TrimSpace(getenv(constants.EnvDebug)); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", constants.EnvDebug, v, err)
		}
		c.Debug = debug
	}
	return nil
}

func (c *Config) Apply(o Overrides) {
	if o.Database != "" {
		c.Database = o.Database
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	if o.Debug {
		c.Debug = true
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database must not be empty")
	}
	if strings.TrimSpace(c.User) == "" {
		return errors.New("user must not be empty")
	}
	if !utils.ValidateTimezone(c.Timezone) {
		return fmt.Errorf("invalid timezone %q", c.Timezone)
	}
	if c.Dispatch.Interval <= 0 {
		return fmt.Errorf("dispatch.interval must be positive, got %s", c.Dispatch.Interval)
	}
	if c.Dispatch.BatchSize <= 0 {
		return fmt.Errorf("dispatch.batch_size must be positive, got %d", c.Dispatch.BatchSize)
	}
	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch.max_attempts must be positive, got %d", c.Dispatch.MaxAttempts)
	}
	return nil
}

// Location returns the configured calendar.
func (c *Config) Location() (*time.Location, error) {
	return utils.LoadLocation(c.Timezone)
}

// ConfigDir is where logs and the default database live.
func (c *Config) ConfigDir() string {
	dir, err := ExpandPath(constants.DefaultConfigDir)
	if err != nil {
		return filepath.Join(os.TempDir(), constants.AppName)
	}
	return dir
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	resolved, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(resolved, data, 0o644)
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
