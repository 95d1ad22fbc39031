// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Catalog, Interactions, Search, Recommend, Redis,
// Postgres, Kafka, Liked, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Interactions InteractionsConfig `yaml:"interactions"`
	Search       SearchConfig       `yaml:"search"`
	Recommend    RecommendConfig    `yaml:"recommend"`
	Liked        LikedConfig        `yaml:"liked"`
	Redis        RedisConfig        `yaml:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// CatalogConfig locates the compressed catalog source and sets the admission
// thresholds applied while loading it.
type CatalogConfig struct {
	Path           string `yaml:"path"`
	MinRatingCount int    `yaml:"minRatingCount"`
	MinPageCount   int    `yaml:"minPageCount"`
}

// InteractionsConfig locates the interaction log and the external-to-internal
// book id mapping file.
type InteractionsConfig struct {
	LogPath   string `yaml:"logPath"`
	IDMapPath string `yaml:"idMapPath"`
}

// SearchConfig controls title search result sizing.
type SearchConfig struct {
	TopK       int `yaml:"topK"`
	MaxResults int `yaml:"maxResults"`
}

// RecommendConfig controls collaborative-filtering parameters.
type RecommendConfig struct {
	NeighborUsers    int     `yaml:"neighborUsers"`
	MinNeighborCount int     `yaml:"minNeighborCount"`
	MinMeanRating    float64 `yaml:"minMeanRating"`
	MaxResults       int     `yaml:"maxResults"`
	TruncateAbove    int     `yaml:"truncateAbove"`
}

// LikedConfig selects the liked-list store backend. Backend is "csv" or
// "postgres"; Path applies to the csv backend only.
type LikedConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	UsageEvents     string `yaml:"usageEvents"`
	RatingEvents    string `yaml:"ratingEvents"`
	CacheInvalidate string `yaml:"cacheInvalidate"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
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
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with production-ready defaults for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			Path:           "data/goodreads_books.json.gz",
			MinRatingCount: 15,
			MinPageCount:   3,
		},
		Interactions: InteractionsConfig{
			LogPath:   "data/goodreads_interactions.csv",
			IDMapPath: "data/book_id_map.csv",
		},
		Search: SearchConfig{
			TopK:       10,
			MaxResults: 100,
		},
		Recommend: RecommendConfig{
			NeighborUsers:    15,
			MinNeighborCount: 2,
			MinMeanRating:    4,
			MaxResults:       10,
			TruncateAbove:    20,
		},
		Liked: LikedConfig{
			Backend: "csv",
			Path:    "data/liked_books.csv",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "readscape",
			User:            "readscape",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "readscape-group",
			Topics: KafkaTopics{
				UsageEvents:     "usage-events",
				RatingEvents:    "rating-events",
				CacheInvalidate: "cache-invalidate",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads RS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RS_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("RS_INTERACTIONS_LOG_PATH"); v != "" {
		cfg.Interactions.LogPath = v
	}
	if v := os.Getenv("RS_INTERACTIONS_IDMAP_PATH"); v != "" {
		cfg.Interactions.IDMapPath = v
	}
	if v := os.Getenv("RS_LIKED_BACKEND"); v != "" {
		cfg.Liked.Backend = v
	}
	if v := os.Getenv("RS_LIKED_PATH"); v != "" {
		cfg.Liked.Path = v
	}
	if v := os.Getenv("RS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("RS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
