package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Mirrors    MirrorsConfig    `toml:"mirrors"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Cache      CacheConfig      `toml:"cache"`
	Database   DatabaseConfig   `toml:"database"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// MirrorsConfig lists the candidate API hosts and how they are ranked.
type MirrorsConfig struct {
	Hosts        []string `toml:"hosts"`
	Relay        string   `toml:"relay"`
	RankingTTL   Duration `toml:"ranking_ttl"`
	ProbeTimeout Duration `toml:"probe_timeout"`
}

// DispatcherConfig tunes retries against the ranked hosts.
type DispatcherConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	BackoffBase    Duration `toml:"backoff_base"`
	RateLimit429   string   `toml:"rate_limit_429"` // "abort" or "skip-host"
	RateLimit      float64  `toml:"rate_limit"`     // requests per second, 0 disables pacing
	RequestTimeout Duration `toml:"request_timeout"`
}

// CacheConfig selects the durable tier and the response cache bounds.
type CacheConfig struct {
	Backend          string   `toml:"backend"` // sqlite, leveldb or none
	Path             string   `toml:"path"`
	TTL              Duration `toml:"ttl"`
	MaxEntries       int      `toml:"max_entries"`
	SweepInterval    Duration `toml:"sweep_interval"`
	StreamMaxEntries int      `toml:"stream_max_entries"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig controls the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] decoded from strings such as "5m" or "200ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler] for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Addr returns the host:port the HTTP API listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the dispatcher and caches cannot work with.
func (c *Config) Validate() error {
	if c.Dispatcher.MaxAttempts < 1 {
		return fmt.Errorf("%w: dispatcher.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("%w: cache.max_entries must be at least 1", ErrInvalidConfig)
	}
	if c.Cache.StreamMaxEntries < 1 {
		return fmt.Errorf("%w: cache.stream_max_entries must be at least 1", ErrInvalidConfig)
	}
	switch c.Cache.Backend {
	case "sqlite", "leveldb", "none":
	default:
		return fmt.Errorf("%w: unknown cache.backend %q", ErrInvalidConfig, c.Cache.Backend)
	}
	switch c.Dispatcher.RateLimit429 {
	case "abort", "skip-host":
	default:
		return fmt.Errorf("%w: unknown dispatcher.rate_limit_429 %q", ErrInvalidConfig, c.Dispatcher.RateLimit429)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
