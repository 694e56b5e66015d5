// Package config builds application configuration from environment variables
// so main stays lean. No config files; twelve-factor style.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Postgres captures connection pool settings. URL empty means the server runs
// on in-memory stores (local development and unit-test wiring).
type Postgres struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis captures client settings for the webhook dedup store. URL empty means
// Redis is not configured and dedup falls back to the in-memory implementation.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures notification outbox publishing settings. Empty brokers
// disable the outbox worker.
type Kafka struct {
	Brokers      []string
	NotifyTopic  string
	PollInterval time.Duration
}

// Billing captures payment-webhook intake settings. Empty secret disables
// signature verification (local development with the provider CLI).
type Billing struct {
	WebhookSecret      string
	SignatureTolerance time.Duration
	DedupTTL           time.Duration
}

// Config aggregates all sections.
type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	Billing  Billing
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          envOr("CAREBRIDGE_ADDR", ":8080"),
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     envOr("JWT_ISSUER", "carebridge"),
			JWTAudience:   envOr("JWT_AUDIENCE", "carebridge-api"),
		},
		Postgres: Postgres{
			URL:             os.Getenv("POSTGRES_URL"),
			MaxOpenConns:    envIntOr("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOr("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOr("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:      envList("KAFKA_BROKERS"),
			NotifyTopic:  envOr("KAFKA_NOTIFY_TOPIC", "carebridge.connection-events"),
			PollInterval: envDurationOr("NOTIFY_POLL_INTERVAL", 2*time.Second),
		},
		Billing: Billing{
			WebhookSecret:      os.Getenv("BILLING_WEBHOOK_SECRET"),
			SignatureTolerance: envDurationOr("BILLING_SIGNATURE_TOLERANCE", 5*time.Minute),
			DedupTTL:           envDurationOr("BILLING_DEDUP_TTL", 24*time.Hour),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
