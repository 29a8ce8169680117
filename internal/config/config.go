package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// HTTP holds HTTP server configuration.
type HTTP struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// StaticDir points at a built client bundle; empty disables static hosting.
	StaticDir string
}

// GRPC holds gRPC server configuration.
type GRPC struct {
	Enabled bool
	Host    string
	Port    int
}

// Orders configures the in-memory order store.
type Orders struct {
	StartingNumber int64
}

// Broadcast configures the live order fan-out.
type Broadcast struct {
	BufferSize int
}

// Live configures websocket sessions for the admin dashboard.
type Live struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// Menu configures the menu catalog.
type Menu struct {
	SeedDefaults bool
}

// Cache configures caching behavior and backend selection.
type Cache struct {
	Enabled    bool
	Driver     string
	DefaultTTL time.Duration
	Redis      Redis
}

// Redis contains redis-specific connection settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Messaging configures the message bus used by the application.
type Messaging struct {
	Driver        string
	Enabled       bool
	Kafka         Kafka
	ConsumerGroup string
	Workers       Worker
}

// Kafka holds Kafka connection details.
type Kafka struct {
	Brokers        []string
	ClientID       string
	Topic          string
	CommitInterval time.Duration
	MinBytes       int
	MaxBytes       int
	ConnectTimeout time.Duration
}

// Worker configures background worker concurrency and polling.
type Worker struct {
	Enabled      bool
	PollInterval time.Duration
	Concurrency  int
}

// Database holds the order journal connection settings.
type Database struct {
	Driver          string
	WriterDSN       string
	ReaderDSN       string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Observability contains logging, tracing, and metrics configuration.
type Observability struct {
	ServiceName     string
	Environment     string
	LogLevel        string
	LogEncoding     string
	EnableTracing   bool
	TraceExporter   string
	TraceEndpoint   string
	TraceInsecure   bool
	EnableMetrics   bool
	MetricsExporter string
	PrometheusPath  string
}

// Config wraps all application configuration knobs.
type Config struct {
	HTTP          HTTP
	GRPC          GRPC
	Orders        Orders
	Broadcast     Broadcast
	Live          Live
	Menu          Menu
	Cache         Cache
	Messaging     Messaging
	Database      Database
	Observability Observability
}

// Module wires the configuration loader into the Fx graph.
var Module = fx.Provide(New)

var loadEnvOnce sync.Once

// New builds a Config from environment variables or defaults.
func New() (Config, error) {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})

	cfg := Config{
		HTTP: HTTP{
			Host:           getEnv("HTTP_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("HTTP_PORT", 5000),
			AllowedOrigins: getEnvAsStringSlice("HTTP_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
			StaticDir:      getEnv("HTTP_STATIC_DIR", ""),
		},
		GRPC: GRPC{
			Enabled: getEnvAsBool("GRPC_ENABLED", false),
			Host:    getEnv("GRPC_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("GRPC_PORT", 9090),
		},
		Orders: Orders{
			StartingNumber: getEnvAsInt64("ORDERS_STARTING_NUMBER", 1000),
		},
		Broadcast: Broadcast{
			BufferSize: getEnvAsInt("BROADCAST_BUFFER_SIZE", 64),
		},
		Live: Live{
			WriteTimeout: getEnvAsDuration("LIVE_WRITE_TIMEOUT", 10*time.Second),
			PingInterval: getEnvAsDuration("LIVE_PING_INTERVAL", 30*time.Second),
		},
		Menu: Menu{
			SeedDefaults: getEnvAsBool("MENU_SEED_DEFAULTS", true),
		},
		Cache: Cache{
			Enabled:    getEnvAsBool("CACHE_ENABLED", false),
			Driver:     getEnv("CACHE_DRIVER", "redis"),
			DefaultTTL: getEnvAsDuration("CACHE_DEFAULT_TTL", time.Minute*5),
			Redis: Redis{
				Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Messaging: Messaging{
			Driver:  getEnv("MESSAGING_DRIVER", "kafka"),
			Enabled: getEnvAsBool("MESSAGING_ENABLED", false),
			Kafka: Kafka{
				Brokers:        getEnvAsStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
				ClientID:       getEnv("KAFKA_CLIENT_ID", "tableside"),
				Topic:          getEnv("KAFKA_TOPIC", "orders.events"),
				CommitInterval: getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
				MinBytes:       getEnvAsInt("KAFKA_MIN_BYTES", 10e3),
				MaxBytes:       getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
				ConnectTimeout: getEnvAsDuration("KAFKA_CONNECT_TIMEOUT", 5*time.Second),
			},
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "tableside-kitchen"),
			Workers: Worker{
				Enabled:      getEnvAsBool("WORKER_ENABLED", true),
				PollInterval: getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
				Concurrency:  getEnvAsInt("WORKER_CONCURRENCY", 1),
			},
		},
		Database: Database{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			WriterDSN:       getEnv("DB_WRITER_DSN", "file:tableside.db?_pragma=busy_timeout(5000)"),
			ReaderDSN:       getEnv("DB_READER_DSN", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Minute*5),
		},
		Observability: Observability{
			ServiceName:     getEnv("OBS_SERVICE_NAME", "tableside"),
			Environment:     getEnv("OBS_ENVIRONMENT", "local"),
			LogLevel:        getEnv("OBS_LOG_LEVEL", "info"),
			LogEncoding:     getEnv("OBS_LOG_ENCODING", "json"),
			EnableTracing:   getEnvAsBool("OBS_ENABLE_TRACING", false),
			TraceExporter:   getEnv("OBS_TRACE_EXPORTER", "stdout"),
			TraceEndpoint:   getEnv("OBS_OTLP_ENDPOINT", "localhost:4317"),
			TraceInsecure:   getEnvAsBool("OBS_OTLP_INSECURE", true),
			EnableMetrics:   getEnvAsBool("OBS_ENABLE_METRICS", true),
			MetricsExporter: getEnv("OBS_METRICS_EXPORTER", "prometheus"),
			PrometheusPath:  getEnv("OBS_PROMETHEUS_PATH", "/metrics"),
		},
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.HTTP.Port <= 0 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}

	if cfg.GRPC.Enabled && cfg.GRPC.Port <= 0 {
		return fmt.Errorf("invalid gRPC port: %d", cfg.GRPC.Port)
	}

	if cfg.Orders.StartingNumber < 0 {
		return fmt.Errorf("invalid ORDERS_STARTING_NUMBER: %d", cfg.Orders.StartingNumber)
	}

	if cfg.Broadcast.BufferSize <= 0 {
		cfg.Broadcast.BufferSize = 64
	}
	if cfg.Live.WriteTimeout <= 0 {
		cfg.Live.WriteTimeout = 10 * time.Second
	}
	if cfg.Live.PingInterval <= 0 {
		cfg.Live.PingInterval = 30 * time.Second
	}

	if !cfg.Cache.Enabled {
		cfg.Cache.Driver = "noop"
	}

	switch cfg.Cache.Driver {
	case "redis", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}

	if cfg.Cache.Driver == "redis" && cfg.Cache.Redis.Addr == "" {
		return fmt.Errorf("missing REDIS_ADDR for redis cache")
	}

	if cfg.Cache.DefaultTTL < 0 {
		cfg.Cache.DefaultTTL = time.Minute * 5
	}

	obs := &cfg.Observability
	obs.LogLevel = lowerOr(obs.LogLevel, "info")
	obs.LogEncoding = lowerOr(obs.LogEncoding, "json")
	obs.TraceExporter = lowerOr(obs.TraceExporter, "stdout")
	obs.MetricsExporter = lowerOr(obs.MetricsExporter, "prometheus")

	if obs.PrometheusPath == "" {
		obs.PrometheusPath = "/metrics"
	} else if !strings.HasPrefix(obs.PrometheusPath, "/") {
		obs.PrometheusPath = "/" + obs.PrometheusPath
	}

	if !cfg.Messaging.Enabled {
		cfg.Messaging.Driver = "noop"
	}

	switch cfg.Messaging.Driver {
	case "kafka", "noop":
		// supported
	default:
		return fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}

	if cfg.Messaging.Driver == "kafka" {
		if len(cfg.Messaging.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be provided")
		}
		if cfg.Messaging.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_TOPIC must be provided")
		}
		if cfg.Messaging.ConsumerGroup == "" {
			return fmt.Errorf("KAFKA_CONSUMER_GROUP must be provided")
		}
	}

	if cfg.Messaging.Workers.Concurrency <= 0 {
		cfg.Messaging.Workers.Concurrency = 1
	}
	if cfg.Messaging.Workers.PollInterval <= 0 {
		cfg.Messaging.Workers.PollInterval = time.Second
	}

	switch cfg.Database.Driver {
	case "postgres", "mysql", "sqlite":
		// supported
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	if cfg.Database.WriterDSN == "" {
		return fmt.Errorf("missing DB_WRITER_DSN")
	}

	if cfg.Database.ReaderDSN == "" {
		cfg.Database.ReaderDSN = cfg.Database.WriterDSN
	}

	return nil
}

func lowerOr(value, fallback string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return fallback
	}
	return v
}
