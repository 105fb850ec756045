// Package config loads server configuration: built-in defaults, overlaid by an
// optional TOML file, overlaid by EMOJIFED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	pstrings "emojifed/pkg/platform/strings"
)

// ConfigPathEnv names the environment variable pointing at the TOML file.
const ConfigPathEnv = "EMOJIFED_CONFIG"

// Storage backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the full server configuration.
type Config struct {
	Server     Server         `toml:"server"`
	Federation Federation     `toml:"federation"`
	Storage    Storage        `toml:"storage"`
	Redis      RedisConfig    `toml:"redis"`
	Postgres   PostgresConfig `toml:"postgres"`
	Log        LogConfig      `toml:"log"`
	Tracing    TracingConfig  `toml:"tracing"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	IdleTimeout     time.Duration `toml:"idle_timeout"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// Federation tunes parsing, discovery and neighbour queries.
type Federation struct {
	// SelfURL is where discovery starts when a caller names no site.
	SelfURL         string        `toml:"self_url"`
	Marker          string        `toml:"marker"`
	MaxHops         int           `toml:"max_hops"`
	QueryTimeout    time.Duration `toml:"query_timeout"`
	NeighborhoodTTL time.Duration `toml:"neighborhood_ttl"`
	Neighbors       []string      `toml:"neighbors"`
	BreakerFailures int           `toml:"breaker_failures"`
	BreakerCooldown time.Duration `toml:"breaker_cooldown"`
}

// Storage selects the registry persistence backend.
type Storage struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// RedisConfig configures the Redis client used by the redis backend.
type RedisConfig struct {
	URL          string        `toml:"url"`
	Key          string        `toml:"key"`
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

// PostgresConfig configures the database used by the postgres backend.
type PostgresConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TracingConfig enables span export. Exporter is "none" or "stdout".
type TracingConfig struct {
	Exporter    string  `toml:"exporter"`
	ServiceName string  `toml:"service_name"`
	SampleRate  float64 `toml:"sample_rate"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Federation: Federation{
			SelfURL:         "http://localhost:3000",
			Marker:          "\U0001F49A",
			MaxHops:         3,
			QueryTimeout:    3 * time.Second,
			NeighborhoodTTL: 5 * time.Minute,
			BreakerFailures: 3,
			BreakerCooldown: 30 * time.Second,
		},
		Storage: Storage{
			Backend: BackendFile,
			Path:    "data/federation-locations.json",
		},
		Redis: RedisConfig{
			Key:          "emojifed:federation:locations",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "emojifed",
			SampleRate:  1.0,
		},
	}
}

// FromEnv loads the file named by EMOJIFED_CONFIG, if any, then applies the
// environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

// Load builds a configuration from defaults, the TOML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Config{}, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("EMOJIFED_ADDR", &cfg.Server.Addr)
	dur("EMOJIFED_REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	str("EMOJIFED_SELF_URL", &cfg.Federation.SelfURL)
	str("EMOJIFED_MARKER", &cfg.Federation.Marker)
	num("EMOJIFED_MAX_HOPS", &cfg.Federation.MaxHops)
	dur("EMOJIFED_QUERY_TIMEOUT", &cfg.Federation.QueryTimeout)
	dur("EMOJIFED_NEIGHBORHOOD_TTL", &cfg.Federation.NeighborhoodTTL)
	if v := getenv("EMOJIFED_NEIGHBORS"); v != "" {
		cfg.Federation.Neighbors = pstrings.SplitList(v)
	}

	str("EMOJIFED_STORAGE", &cfg.Storage.Backend)
	str("EMOJIFED_DATA_PATH", &cfg.Storage.Path)
	str("EMOJIFED_REDIS_URL", &cfg.Redis.URL)
	str("EMOJIFED_REDIS_KEY", &cfg.Redis.Key)
	str("EMOJIFED_POSTGRES_DSN", &cfg.Postgres.DSN)

	str("EMOJIFED_LOG_LEVEL", &cfg.Log.Level)
	str("EMOJIFED_LOG_FORMAT", &cfg.Log.Format)
	str("EMOJIFED_TRACING", &cfg.Tracing.Exporter)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if u, err := url.Parse(c.Federation.SelfURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("federation.self_url must be an absolute URL, got %q", c.Federation.SelfURL))
	}
	if c.Federation.Marker == "" {
		errs = append(errs, errors.New("federation.marker is required"))
	}
	if c.Federation.MaxHops < 0 {
		errs = append(errs, errors.New("federation.max_hops must not be negative"))
	}
	if c.Federation.QueryTimeout <= 0 {
		errs = append(errs, errors.New("federation.query_timeout must be positive"))
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the file backend"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis backend"))
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of file, redis, postgres, memory", c.Storage.Backend))
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of none, stdout", c.Tracing.Exporter))
	}
	return errors.Join(errs...)
}
