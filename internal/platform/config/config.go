package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Endpoint kinds selectable with MINTGATE_ENDPOINT.
const (
	EndpointLoopback = "loopback"
	EndpointKafka    = "kafka"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"MINTGATE_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"MINTGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"MINTGATE_LOG_LEVEL" envDefault:"info"`
	GenesisPath     string        `env:"MINTGATE_GENESIS" envDefault:"genesis.yaml"`
	Endpoint        string        `env:"MINTGATE_ENDPOINT" envDefault:"loopback"`
	TxTimeout       time.Duration `env:"MINTGATE_TX_TIMEOUT" envDefault:"5s"`

	JWT      JWTConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Relay    RelayConfig
	Tracing  TracingConfig
}

// JWTConfig configures caller identity tokens.
type JWTConfig struct {
	// Use a default for development - should be overridden in production
	SigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"mintgate"`
	Audience   string        `env:"JWT_AUDIENCE" envDefault:"mintgate-api"`
	TTL        time.Duration `env:"JWT_TTL" envDefault:"15m"`
}

// PostgresConfig selects the durable state store. An empty URL keeps state in memory.
type PostgresConfig struct {
	URL          string        `env:"POSTGRES_URL"`
	MaxOpenConns int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
	ConnLifetime time.Duration `env:"POSTGRES_CONN_LIFETIME" envDefault:"30m"`
	LockKey      int64         `env:"POSTGRES_LOCK_KEY" envDefault:"7340001"`
}

// RedisConfig holds the delegate registry connection settings.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Group        string        `env:"KAFKA_GROUP" envDefault:"mintgate"`
	ClientID     string        `env:"KAFKA_CLIENT_ID" envDefault:"mintgate"`
	Partitions   int32         `env:"KAFKA_PARTITIONS" envDefault:"1"`
	Replication  int16         `env:"KAFKA_REPLICATION" envDefault:"1"`
	RetryBackoff time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"500ms"`
}

// RelayConfig tunes the outbox relay.
type RelayConfig struct {
	PollInterval time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"1s"`
	OpenBackoff  time.Duration `env:"RELAY_OPEN_BACKOFF" envDefault:"5s"`
	BatchSize    int           `env:"RELAY_BATCH_SIZE" envDefault:"64"`
	// Consecutive failures to one destination before its breaker opens.
	FailureThreshold int `env:"RELAY_FAILURE_THRESHOLD" envDefault:"5"`
}

type TracingConfig struct {
	Enabled     bool   `env:"TRACING_ENABLED" envDefault:"false"`
	ServiceName string `env:"TRACING_SERVICE_NAME" envDefault:"mintgate"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	cfg.Kafka.Brokers = cleanList(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the process cannot start with.
func (s Server) Validate() error {
	switch s.Endpoint {
	case EndpointLoopback:
	case EndpointKafka:
		if len(s.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka endpoint requires KAFKA_BROKERS")
		}
		if s.Redis.URL == "" {
			return fmt.Errorf("kafka endpoint requires REDIS_URL for the delegate registry")
		}
	default:
		return fmt.Errorf("unknown endpoint %q", s.Endpoint)
	}
	if strings.TrimSpace(s.JWT.SigningKey) == "" {
		return fmt.Errorf("JWT_SIGNING_KEY cannot be empty")
	}
	if s.Relay.BatchSize <= 0 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be positive")
	}
	return nil
}

// cleanList trims entries and drops blanks and repeats, keeping order.
func cleanList(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
