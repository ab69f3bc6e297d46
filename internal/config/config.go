// Package config loads the groupdex API configuration from YAML files with
// ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the groupdex API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Relational RelationalConfig `yaml:"relational"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Cache      CacheConfig      `yaml:"cache"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RelationalConfig holds the group-store connection settings.
type RelationalConfig struct {
	Driver string `yaml:"driver"` // postgres, sqlite (default: postgres)
	DSN    string `yaml:"dsn"`
}

// ClickHouseConfig holds the event-store connection settings.
type ClickHouseConfig struct {
	Addrs          []string `yaml:"addrs"`
	Database       string   `yaml:"database"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Table          string   `yaml:"table"`
	TimeColumn     string   `yaml:"time_column"` // default: timestamp
	Dialect        string   `yaml:"dialect"`     // events, groups (default: events)
	DialTimeoutSec int      `yaml:"dial_timeout_sec"`
}

// CacheConfig holds the optional hit-estimate cache settings.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLSec   int      `yaml:"ttl_sec"`
}

// SearchConfig holds executor tuning knobs and pagination limits.
type SearchConfig struct {
	MaxCandidates   int     `yaml:"max_candidates"`
	ChunkGrowth     float64 `yaml:"chunk_growth"`
	MaxChunkSize    int     `yaml:"max_chunk_size"`
	MaxTimeSec      int     `yaml:"max_time_sec"`
	SampleSize      int     `yaml:"sample_size"`
	DefaultPageSize int     `yaml:"default_page_size"`
	MaxPageSize     int     `yaml:"max_page_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Relational.Driver == "" {
		c.Relational.Driver = "postgres"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "events"
	}
	if c.ClickHouse.TimeColumn == "" {
		c.ClickHouse.TimeColumn = "timestamp"
	}
	if c.ClickHouse.Dialect == "" {
		c.ClickHouse.Dialect = "events"
	}
	if c.ClickHouse.DialTimeoutSec <= 0 {
		c.ClickHouse.DialTimeoutSec = 5
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 240
	}
	if c.Search.MaxCandidates <= 0 {
		c.Search.MaxCandidates = 1000
	}
	if c.Search.ChunkGrowth < 1 {
		c.Search.ChunkGrowth = 1.5
	}
	if c.Search.MaxChunkSize <= 0 {
		c.Search.MaxChunkSize = 10000
	}
	if c.Search.MaxTimeSec <= 0 {
		c.Search.MaxTimeSec = 10
	}
	if c.Search.SampleSize <= 0 {
		c.Search.SampleSize = 100
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 25
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Relational.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("relational.driver must be \"postgres\" or \"sqlite\", got %q", c.Relational.Driver)
	}
	if c.Relational.DSN == "" {
		return fmt.Errorf("relational.dsn is required")
	}
	if len(c.ClickHouse.Addrs) == 0 {
		return fmt.Errorf("clickhouse.addrs is required")
	}
	switch c.ClickHouse.Dialect {
	case "events", "groups":
	default:
		return fmt.Errorf("clickhouse.dialect must be \"events\" or \"groups\", got %q", c.ClickHouse.Dialect)
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return fmt.Errorf("cache.addrs is required when cache.enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
