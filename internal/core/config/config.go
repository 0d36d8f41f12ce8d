package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. TOPN_SERVER__PORT.
const EnvPrefix = "TOPN_"

// Segment source types.
const (
	SourceFileSystem = "filesystem"
	SourcePostgres   = "postgres"
)

// Config represents the top-level application config.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Segments SegmentsConfig `koanf:"segments"`
	Database DatabaseConfig `koanf:"database"`
	Engine   EngineConfig   `koanf:"engine"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type SegmentsConfig struct {
	SourceType      string `koanf:"source_type"` // filesystem | postgres
	Path            string `koanf:"path"`
	RefreshInterval string `koanf:"refresh_interval"` // parsed and validated on startup; "0" disables refresh
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type EngineConfig struct {
	ValuesPerPass         int    `koanf:"values_per_pass"`
	MaxThreshold          int    `koanf:"max_threshold"`
	MaxConcurrentSegments int    `koanf:"max_concurrent_segments"`
	ResultCacheTTL        string `koanf:"result_cache_ttl"` // "0" disables the cache
	ResultCacheCapacity   int    `koanf:"result_cache_capacity"`
}

// RefreshEvery returns the parsed segment refresh interval. Zero disables refresh.
func (c SegmentsConfig) RefreshEvery() time.Duration {
	d, _ := time.ParseDuration(c.RefreshInterval)
	return d
}

// CacheTTL returns the parsed result cache TTL. Zero disables the cache.
func (c EngineConfig) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.ResultCacheTTL)
	return d
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		add("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		add("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		add("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	switch c.Segments.SourceType {
	case SourceFileSystem:
		if strings.TrimSpace(c.Segments.Path) == "" {
			add("segments.path is required")
		} else if _, err := os.Stat(c.Segments.Path); err != nil {
			add("segments.path %q is not accessible: %w", c.Segments.Path, err)
		}
	case SourcePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			add("database.dsn is required")
		}
		if c.Database.MaxOpenConns <= 0 {
			add("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			add("database.max_idle_conns must be > 0")
		}
	default:
		add("unsupported segments.source_type %q", c.Segments.SourceType)
	}
	if d, err := time.ParseDuration(c.Segments.RefreshInterval); err != nil {
		add("invalid segments.refresh_interval %q: %w", c.Segments.RefreshInterval, err)
	} else if d < 0 {
		add("segments.refresh_interval must be >= 0")
	}

	if c.Engine.ValuesPerPass < 0 {
		add("engine.values_per_pass must be >= 0")
	}
	if c.Engine.MaxThreshold <= 0 {
		add("engine.max_threshold must be > 0")
	}
	if c.Engine.MaxConcurrentSegments <= 0 {
		add("engine.max_concurrent_segments must be > 0")
	}
	if d, err := time.ParseDuration(c.Engine.ResultCacheTTL); err != nil {
		add("invalid engine.result_cache_ttl %q: %w", c.Engine.ResultCacheTTL, err)
	} else if d < 0 {
		add("engine.result_cache_ttl must be >= 0")
	}
	if c.Engine.ResultCacheCapacity < 0 {
		add("engine.result_cache_capacity must be >= 0")
	}

	return errs.ErrorOrNil()
}

// Load parses config from defaults, file and env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.max_body_size_mb":        1,
		"server.mode":                    "release",
		"log.level":                      "info",
		"log.format":                     "text",
		"segments.source_type":           SourceFileSystem,
		"segments.path":                  "./segments",
		"segments.refresh_interval":      "1m",
		"database.dsn":                   "",
		"database.max_open_conns":        25,
		"database.max_idle_conns":        25,
		"database.auto_migrate":          true,
		"engine.values_per_pass":         0,
		"engine.max_threshold":           1000,
		"engine.max_concurrent_segments": 4,
		"engine.result_cache_ttl":        "5m",
		"engine.result_cache_capacity":   1024,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
