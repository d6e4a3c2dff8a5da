package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Background task intervals
	AdmissionInterval time.Duration
	CleanupInterval   time.Duration
	SyncInterval      time.Duration
	MetricsInterval   time.Duration

	// State TTLs not governed by per-event config
	WaitingStateTTL    time.Duration
	LeftStateTTL       time.Duration
	CompletedRetention time.Duration
	AdmissionLockTTL   time.Duration

	// Defaults applied when an event omits capacity config
	DefaultMaxActive      int
	DefaultActiveTTL      int
	DefaultReservationTTL int
	DefaultPaymentTTL     int

	// Payment gateway
	PgProvider       string
	TossSecretKey    string
	TossBaseURL      string
	WebhookSecret    string
	PersistQueueSize int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubUserID       string
}

func LoadConfig() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AdmissionInterval: getEnvAsDuration("ADMISSION_INTERVAL", "5s"),
		CleanupInterval:   getEnvAsDuration("CLEANUP_INTERVAL", "1m"),
		SyncInterval:      getEnvAsDuration("SYNC_INTERVAL", "30s"),
		MetricsInterval:   getEnvAsDuration("METRICS_INTERVAL", "30s"),

		WaitingStateTTL:    getEnvAsDuration("WAITING_STATE_TTL", "2h"),
		LeftStateTTL:       getEnvAsDuration("LEFT_STATE_TTL", "1h"),
		CompletedRetention: getEnvAsDuration("COMPLETED_RETENTION", "24h"),
		AdmissionLockTTL:   getEnvAsDuration("ADMISSION_LOCK_TTL", "5s"),

		DefaultMaxActive:      getEnvAsInt("DEFAULT_MAX_ACTIVE", 3000),
		DefaultActiveTTL:      getEnvAsInt("DEFAULT_ACTIVE_TTL_SECONDS", 600),
		DefaultReservationTTL: getEnvAsInt("DEFAULT_RESERVATION_TTL_SECONDS", 300),
		DefaultPaymentTTL:     getEnvAsInt("DEFAULT_PAYMENT_TTL_SECONDS", 300),

		PgProvider:       getEnv("PG_PROVIDER", "toss"),
		TossSecretKey:    getEnv("TOSS_SECRET_KEY", ""),
		TossBaseURL:      getEnv("TOSS_BASE_URL", "https://api.tosspayments.com"),
		WebhookSecret:    getEnv("PG_WEBHOOK_SECRET", ""),
		PersistQueueSize: getEnvAsInt("PERSIST_QUEUE_SIZE", 1024),

		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "waitroom-server"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
