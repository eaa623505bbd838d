package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; DATABASE_URL and AMQP_URL are required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// App config store (Postgres)
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Message broker
	AMQPURL   string
	QueueName string

	// Config store keys (fixed names the original deployment uses)
	CredentialsKey string
	QueryKey       string

	// External messaging provider
	ProviderBaseURL string
	ProviderTimeout time.Duration

	// Outbound send rate limit (requests per second)
	SendRateLimit int

	// Pull-mode receive batch limit
	ReceiveBatchLimit int

	// PullDeleteOnFailure keeps the historical pull-mode behaviour: every
	// received message is deleted after the send attempt, even when the send
	// failed (at-most-once). Set false to delete only after a successful send.
	PullDeleteOnFailure bool
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return nil, fmt.Errorf("AMQP_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		AMQPURL:   amqpURL,
		QueueName: getEnv("QUEUE_NAME", "payment-reminders"),

		CredentialsKey: getEnv("CREDENTIALS_KEY", "stage_creds"),
		QueryKey:       getEnv("QUERY_KEY", "query_for_expired_users"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://graph.facebook.com/v2.6"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		SendRateLimit: getInt("SEND_RATE_LIMIT", 50),

		ReceiveBatchLimit: getInt("RECEIVE_BATCH_LIMIT", 10),

		PullDeleteOnFailure: getBool("PULL_DELETE_ON_FAILURE", true),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
