// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Badger, SQLite, Kafka, Index, Catalog,
// Ingest, Search, Breaker, etc.).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. AS_REDIS_ADDR.
const EnvPrefix = "AS_"

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Badger    BadgerConfig    `yaml:"badger" envPrefix:"BADGER_"`
	SQLite    SQLiteConfig    `yaml:"sqlite" envPrefix:"SQLITE_"`
	Kafka     KafkaConfig     `yaml:"kafka" envPrefix:"KAFKA_"`
	Index     IndexConfig     `yaml:"index" envPrefix:"INDEX_"`
	Catalog   CatalogConfig   `yaml:"catalog" envPrefix:"CATALOG_"`
	Ingest    IngestConfig    `yaml:"ingest" envPrefix:"INGEST_"`
	Search    SearchConfig    `yaml:"search" envPrefix:"SEARCH_"`
	Breaker   BreakerConfig   `yaml:"breaker" envPrefix:"BREAKER_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOGGING_"`
	Tracing   TracingConfig   `yaml:"tracing" envPrefix:"TRACING_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Analytics AnalyticsConfig `yaml:"analytics" envPrefix:"ANALYTICS_"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SHUTDOWN_TIMEOUT"`

	// CORSOrigins enables CORS for these origins ("*" for any).
	CORSOrigins []string `yaml:"corsOrigins" env:"CORS_ORIGINS" envSeparator:","`

	// RateLimit is requests per minute per client IP on /api/v1; 0 disables.
	RateLimit int `yaml:"rateLimit" env:"RATE_LIMIT"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	Database        string        `yaml:"database" env:"DATABASE"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	SSLMode         string        `yaml:"sslMode" env:"SSLMODE"`
	MaxOpenConns    int           `yaml:"maxOpenConns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"CONN_MAX_LIFETIME"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// URL returns the postgres:// form of the connection string, which is what
// golang-migrate expects.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"poolSize" env:"POOL_SIZE"`
}

// BadgerConfig controls the embedded keyword index. An empty Dir with
// InMemory unset falls back to in-memory mode.
type BadgerConfig struct {
	Dir      string `yaml:"dir" env:"DIR"`
	InMemory bool   `yaml:"inMemory" env:"IN_MEMORY"`
}

// SQLiteConfig controls the embedded ad catalog.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topics  KafkaTopics `yaml:"topics" envPrefix:"TOPICS_"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents" env:"ANALYTICS_EVENTS"`
}

// Store backends.
const (
	BackendRedis    = "redis"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// IndexConfig selects the keyword index backend.
type IndexConfig struct {
	Backend   string `yaml:"backend" env:"BACKEND"`
	KeyPrefix string `yaml:"keyPrefix" env:"KEY_PREFIX"`
}

// CatalogConfig selects the ad catalog backend.
type CatalogConfig struct {
	Backend       string `yaml:"backend" env:"BACKEND"`
	RunMigrations bool   `yaml:"runMigrations" env:"RUN_MIGRATIONS"`
}

// IngestConfig points at the one-shot load sources.
type IngestConfig struct {
	AdsPath    string `yaml:"adsPath" env:"ADS_PATH"`
	BudgetPath string `yaml:"budgetPath" env:"BUDGET_PATH"`
}

// SearchConfig controls query execution.
type SearchConfig struct {
	DedupeResults        bool `yaml:"dedupeResults" env:"DEDUPE_RESULTS"`
	MaxConcurrentQueries int  `yaml:"maxConcurrentQueries" env:"MAX_CONCURRENT_QUERIES"`
}

// BreakerConfig controls the circuit breaker guarding store acquisition.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold" env:"FAILURE_THRESHOLD"`
	ResetTimeout     time.Duration `yaml:"resetTimeout" env:"RESET_TIMEOUT"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// TracingConfig toggles span logging on the query path.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	Port    int  `yaml:"port" env:"PORT"`
}

// AnalyticsConfig controls the asynchronous analytics collector.
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled" env:"ENABLED"`
	BufferSize int  `yaml:"bufferSize" env:"BUFFER_SIZE"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects backend names the service cannot construct.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case BackendRedis, BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("unknown index backend %q", c.Index.Backend)
	}
	switch c.Catalog.Backend {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown catalog backend %q", c.Catalog.Backend)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative")
	}
	if c.Search.MaxConcurrentQueries < 0 {
		return fmt.Errorf("search.maxConcurrentQueries must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "adsearch",
			User:            "adsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Badger: BadgerConfig{
			Dir: "data/index",
		},
		SQLite: SQLiteConfig{
			Path: "data/catalog.db",
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				AnalyticsEvents: "ads-analytics-events",
			},
		},
		Index: IndexConfig{
			Backend:   BackendRedis,
			KeyPrefix: "ads:kw:",
		},
		Catalog: CatalogConfig{
			Backend: BackendPostgres,
		},
		Ingest: IngestConfig{
			AdsPath: "data/ads.json",
		},
		Search: SearchConfig{
			DedupeResults:        false,
			MaxConcurrentQueries: 64,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			Enabled:    false,
			BufferSize: 10000,
		},
	}
}
