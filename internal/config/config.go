// Package config exposes the typed application configuration loaded from YAML
// and overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"candle-learning-lab/internal/cache"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
	BackendRedis      = "redis"
)

// App captures process-wide settings.
type App struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json | pretty
	AutoStart bool   `yaml:"auto_start"` // start the engine at boot
}

// Engine configures the learning loop.
type Engine struct {
	BatchSize         int           `yaml:"batch_size"`
	CycleInterval     time.Duration `yaml:"cycle_interval"`
	MaxConcurrency    int           `yaml:"max_concurrency"`    // 0 = one goroutine per symbol
	SerializePatterns bool          `yaml:"serialize_patterns"` // per-pattern mutex in the ledger
	UniverseFile      string        `yaml:"universe_file"`      // optional, one symbol per line
	Seed              uint64        `yaml:"seed"`               // 0 = nondeterministic candles
}

// Storage selects and connects persistence backends.
type Storage struct {
	StrategiesBackend string `yaml:"strategies_backend"` // memory | postgres
	TradesBackend     string `yaml:"trades_backend"`     // memory | postgres | clickhouse
	PostgresDSN       string `yaml:"postgres_dsn"`
	ClickhouseDSN     string `yaml:"clickhouse_dsn"`
	PostgresMaxConns  int32  `yaml:"postgres_max_conns"`
	RunMigrations     bool   `yaml:"run_migrations"`
}

// Cache configures the stats snapshot cache.
type Cache struct {
	Backend   string        `yaml:"backend"` // memory | redis
	Enabled   bool          `yaml:"enabled"`
	TTL       time.Duration `yaml:"ttl"`
	MaxSize   int           `yaml:"max_size"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// Provider describes an upstream market-data provider advertised by the
// scalability config. Nothing in the process calls these providers.
type Provider struct {
	Name      string `yaml:"name" json:"name"`
	BaseURL   string `yaml:"base_url" json:"baseUrl"`
	RateLimit int    `yaml:"rate_limit" json:"rateLimit"`
	APIKeyEnv string `yaml:"api_key_env" json:"-"`
	APIKey    string `yaml:"-" json:"apiKey,omitempty"`
}

// Scalability is the static capacity plan returned by the scalability endpoint.
type Scalability struct {
	MaxConcurrentPairs int        `yaml:"max_concurrent_pairs"`
	Providers          []Provider `yaml:"providers"`
	Cache              CachePlan  `yaml:"cache"`
}

// CachePlan is the advertised cache sizing, in seconds and entries.
type CachePlan struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	TTLSeconds int  `yaml:"ttl_seconds" json:"ttl"`
	MaxSize    int  `yaml:"max_size" json:"maxSize"`
}

// Config collects every configuration leaf.
type Config struct {
	App         App         `yaml:"app"`
	Engine      Engine      `yaml:"engine"`
	Storage     Storage     `yaml:"storage"`
	Cache       Cache       `yaml:"cache"`
	Scalability Scalability `yaml:"scalability"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		App: App{
			Name:      "candle-learning-lab",
			Env:       "development",
			HTTPAddr:  ":8080",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Engine: Engine{
			BatchSize:     100,
			CycleInterval: 2000 * time.Millisecond,
		},
		Storage: Storage{
			StrategiesBackend: BackendMemory,
			TradesBackend:     BackendMemory,
			PostgresMaxConns:  20,
			RunMigrations:     true,
		},
		Cache: Cache{
			Backend:   BackendMemory,
			Enabled:   true,
			TTL:       5 * time.Second,
			MaxSize:   1000,
			KeyPrefix: "candle-lab:cache:",
		},
		Scalability: Scalability{
			MaxConcurrentPairs: 1000,
			Providers: []Provider{
				{Name: "BINANCE", BaseURL: "https://api.binance.com", RateLimit: 1200},
				{Name: "ALPHA_VANTAGE", BaseURL: "https://alpha-vantage.p.rapidapi.com", RateLimit: 5, APIKeyEnv: "ALPHA_VANTAGE_API_KEY"},
				{Name: "COINGECKO", BaseURL: "https://coingecko.p.rapidapi.com", RateLimit: 10, APIKeyEnv: "COINGECKO_API_KEY"},
			},
			Cache: CachePlan{Enabled: true, TTLSeconds: 300, MaxSize: 1000},
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides and validates.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.resolveProviderKeys(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists a Config to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("CANDLE_LAB_HTTP_ADDR", &c.App.HTTPAddr)
	str("CANDLE_LAB_LOG_LEVEL", &c.App.LogLevel)
	str("CANDLE_LAB_LOG_FORMAT", &c.App.LogFormat)
	boolean("CANDLE_LAB_AUTO_START", &c.App.AutoStart)

	integer("CANDLE_LAB_BATCH_SIZE", &c.Engine.BatchSize)
	duration("CANDLE_LAB_CYCLE_INTERVAL", &c.Engine.CycleInterval)
	integer("CANDLE_LAB_MAX_CONCURRENCY", &c.Engine.MaxConcurrency)
	boolean("CANDLE_LAB_SERIALIZE_PATTERNS", &c.Engine.SerializePatterns)
	str("CANDLE_LAB_UNIVERSE_FILE", &c.Engine.UniverseFile)

	str("CANDLE_LAB_STRATEGIES_BACKEND", &c.Storage.StrategiesBackend)
	str("CANDLE_LAB_TRADES_BACKEND", &c.Storage.TradesBackend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Storage.ClickhouseDSN)

	str("CANDLE_LAB_CACHE_BACKEND", &c.Cache.Backend)
	boolean("CANDLE_LAB_CACHE_ENABLED", &c.Cache.Enabled)
	duration("CANDLE_LAB_CACHE_TTL", &c.Cache.TTL)
	integer("CANDLE_LAB_CACHE_MAX_SIZE", &c.Cache.MaxSize)
	str("REDIS_ADDR", &c.Cache.RedisAddr)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("2s") or bare milliseconds ("2000").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func (c *Config) resolveProviderKeys(getenv func(string) string) {
	for i := range c.Scalability.Providers {
		p := &c.Scalability.Providers[i]
		if p.APIKeyEnv != "" {
			p.APIKey = getenv(p.APIKeyEnv)
		}
	}
}

// Validate checks value ranges and backend requirements.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Engine.BatchSize <= 0 {
		add("engine.batch_size must be positive, got %d", c.Engine.BatchSize)
	}
	if c.Engine.CycleInterval <= 0 {
		add("engine.cycle_interval must be positive, got %s", c.Engine.CycleInterval)
	}
	if c.Engine.MaxConcurrency < 0 {
		add("engine.max_concurrency must not be negative, got %d", c.Engine.MaxConcurrency)
	}

	switch c.Storage.StrategiesBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			add("storage.postgres_dsn is required for the postgres strategies backend")
		}
	default:
		add("unknown strategies backend %q", c.Storage.StrategiesBackend)
	}

	switch c.Storage.TradesBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			add("storage.postgres_dsn is required for the postgres trades backend")
		}
	case BackendClickhouse:
		if c.Storage.ClickhouseDSN == "" {
			add("storage.clickhouse_dsn is required for the clickhouse trades backend")
		}
	default:
		add("unknown trades backend %q", c.Storage.TradesBackend)
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			add("cache.redis_addr is required for the redis cache backend")
		}
	default:
		add("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		add("cache.ttl must be positive when the cache is enabled")
	}
	if c.Cache.MaxSize < 0 {
		add("cache.max_size must not be negative")
	}

	switch strings.ToLower(c.App.LogFormat) {
	case "json", "pretty", "":
	default:
		add("unknown log format %q", c.App.LogFormat)
	}

	return errors.Join(errs...)
}

// CacheConfig converts the cache section for the cache package.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Enabled: c.Cache.Enabled,
		TTL:     c.Cache.TTL,
		MaxSize: c.Cache.MaxSize,
	}
}

// UsesPostgres reports whether any store needs a Postgres pool.
func (c *Config) UsesPostgres() bool {
	return c.Storage.StrategiesBackend == BackendPostgres || c.Storage.TradesBackend == BackendPostgres
}
