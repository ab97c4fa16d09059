// Package config provides configuration loading and management.
//
// Configuration is layered: built-in defaults, then an optional YAML
// profile, then environment variable overrides. Environment variables
// mirror the dotted option keys uppercased with underscores
// (oracle.url -> ORACLE_URL, pool.max_size -> POOL_MAX_SIZE).
package config

import (
	"fmt"
	"time"

	"github.com/orahub/oracle-mcp/internal/secret"
)

// Edition gates which tool categories register.
type Edition string

const (
	EditionEnhanced   Edition = "enhanced"
	EditionEnterprise Edition = "enterprise"
)

// Exposure is the tools/list and tools/call visibility filter.
type Exposure string

const (
	ExposurePublic Exposure = "public"
	ExposureAll    Exposure = "all"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Oracle   OracleConfig   `yaml:"oracle"`
	Edition  Edition        `yaml:"edition"`
	Tools    ToolsConfig    `yaml:"tools"`
	Pool     PoolConfig     `yaml:"pool"`
	Query    QueryConfig    `yaml:"query"`
	Features FeaturesConfig `yaml:"features"`
	Security SecurityConfig `yaml:"security"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// OracleConfig carries the connection target and credentials.
type OracleConfig struct {
	// URL is a JDBC-style Oracle URL: oracle://host:port/service,
	// host:port/service, or host:port:sid. TCPS is supported via the
	// tcps:// scheme prefix.
	URL      string          `yaml:"url"`
	User     string          `yaml:"user"`
	Password secret.Password `yaml:"password"`
}

// ToolsConfig controls catalog visibility.
type ToolsConfig struct {
	Exposure Exposure `yaml:"exposure"`
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxSize          int `yaml:"max_size"`
	MinIdle          int `yaml:"min_idle"`
	AcquireTimeoutMs int `yaml:"acquire_timeout_ms"`
	MaxLifetimeMs    int `yaml:"max_lifetime_ms"`
	IdleTimeoutMs    int `yaml:"idle_timeout_ms"`
	LeakThresholdMs  int `yaml:"leak_threshold_ms"`
}

func (p PoolConfig) AcquireTimeout() time.Duration { return time.Duration(p.AcquireTimeoutMs) * time.Millisecond }
func (p PoolConfig) MaxLifetime() time.Duration    { return time.Duration(p.MaxLifetimeMs) * time.Millisecond }
func (p PoolConfig) IdleTimeout() time.Duration    { return time.Duration(p.IdleTimeoutMs) * time.Millisecond }
func (p PoolConfig) LeakThreshold() time.Duration  { return time.Duration(p.LeakThresholdMs) * time.Millisecond }

// QueryConfig tunes the execution engine defaults.
type QueryConfig struct {
	DefaultFetchSize int `yaml:"default_fetch_size"`
	MaxRows          int `yaml:"max_rows"`
	TimeoutMs        int `yaml:"timeout_ms"`
	LobPreviewBytes  int `yaml:"lob_preview_bytes"`
}

func (q QueryConfig) Timeout() time.Duration { return time.Duration(q.TimeoutMs) * time.Millisecond }

// FeaturesConfig tunes capability detection.
type FeaturesConfig struct {
	Detect DetectConfig `yaml:"detect"`
}

// DetectConfig holds the capability cache TTL.
type DetectConfig struct {
	TTLMs int `yaml:"ttl_ms"`
}

func (d DetectConfig) TTL() time.Duration { return time.Duration(d.TTLMs) * time.Millisecond }

// SecurityConfig controls the system-object guards.
type SecurityConfig struct {
	BlockSystemUsers bool `yaml:"block_system_users"`
	// ExtraDenylist is appended to the built-in system-user denylist.
	ExtraDenylist []string `yaml:"extra_denylist"`
}

// ServerConfig tunes the dispatcher.
type ServerConfig struct {
	// Workers bounds concurrent tool executions. Zero means derive from
	// pool.max_size.
	Workers        int `yaml:"workers"`
	DrainTimeoutMs int `yaml:"drain_timeout_ms"`
	CancelGraceMs  int `yaml:"cancel_grace_ms"`
}

func (s ServerConfig) DrainTimeout() time.Duration { return time.Duration(s.DrainTimeoutMs) * time.Millisecond }
func (s ServerConfig) CancelGrace() time.Duration  { return time.Duration(s.CancelGraceMs) * time.Millisecond }

// LoggingConfig controls the stderr diagnostic output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration defaults.
func Default() *Config {
	return &Config{
		Edition: EditionEnhanced,
		Tools:   ToolsConfig{Exposure: ExposurePublic},
		Pool: PoolConfig{
			MaxSize:          10,
			MinIdle:          1,
			AcquireTimeoutMs: 30_000,
			MaxLifetimeMs:    1_800_000,
			IdleTimeoutMs:    600_000,
			LeakThresholdMs:  60_000,
		},
		Query: QueryConfig{
			DefaultFetchSize: 1000,
			MaxRows:          10_000,
			TimeoutMs:        300_000,
			LobPreviewBytes:  64 * 1024,
		},
		Features: FeaturesConfig{Detect: DetectConfig{TTLMs: 3_600_000}},
		Security: SecurityConfig{BlockSystemUsers: true},
		Server: ServerConfig{
			Workers:        0,
			DrainTimeoutMs: 10_000,
			CancelGraceMs:  5_000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Validate checks the loaded configuration. Failures here are fatal and
// map to exit code 1.
func (c *Config) Validate() error {
	if c.Oracle.URL == "" {
		return fmt.Errorf("oracle.url is required")
	}
	if c.Oracle.User == "" {
		return fmt.Errorf("oracle.user is required")
	}
	if c.Oracle.Password.IsZero() {
		return fmt.Errorf("oracle.password is required")
	}
	switch c.Edition {
	case EditionEnhanced, EditionEnterprise:
	default:
		return fmt.Errorf("edition must be %q or %q, got %q", EditionEnhanced, EditionEnterprise, c.Edition)
	}
	switch c.Tools.Exposure {
	case ExposurePublic, ExposureAll:
	default:
		return fmt.Errorf("tools.exposure must be %q or %q, got %q", ExposurePublic, ExposureAll, c.Tools.Exposure)
	}
	if c.Pool.MaxSize <= 0 {
		return fmt.Errorf("pool.max_size must be positive, got %d", c.Pool.MaxSize)
	}
	if c.Pool.MinIdle < 0 || c.Pool.MinIdle > c.Pool.MaxSize {
		return fmt.Errorf("pool.min_idle must be between 0 and pool.max_size")
	}
	if c.Query.DefaultFetchSize <= 0 {
		return fmt.Errorf("query.default_fetch_size must be positive")
	}
	if c.Query.MaxRows <= 0 {
		return fmt.Errorf("query.max_rows must be positive")
	}
	return nil
}

// WorkerCount resolves the dispatcher worker bound.
func (c *Config) WorkerCount() int {
	if c.Server.Workers > 0 && c.Server.Workers < c.Pool.MaxSize {
		return c.Server.Workers
	}
	return c.Pool.MaxSize
}
