package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	infraconfig "booking-service/internal/infrastructure/config"
)

type Config struct {
	// Common
	Env      string
	LogLevel string
	// API
	Port        string
	CORSOrigins []string
	// Storage
	Storage          string
	DatabaseURL      string
	SQLitePath       string
	StatementTimeout time.Duration
	TxTimeout        time.Duration
	// Invalidation channel
	InvalidationBackend string
	InvalidationChannel string
	KafkaBrokers        []string
	KafkaTopic          string
	KafkaGroupPrefix    string
	CacheRefresh        time.Duration
	// Redis (pub/sub, idempotency)
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	IdempotencyBackend string
	IdempotencyTTL     time.Duration
	// Booking rules
	MaxStayDays   int
	HorizonMonths int
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func intEnv(key string, def int) int {
	return atoiDef(getEnv(key, ""), def)
}

// msDef reads a millisecond count from key.
func msDef(key string, def time.Duration) time.Duration {
	return time.Duration(intEnv(key, int(def.Milliseconds()))) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		Env:                 getEnv("ENV", "local"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		Port:                getEnv("PORT", infraconfig.DefaultHTTPPort),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "*")),
		Storage:             getEnv("STORAGE", "pg"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SQLitePath:          getEnv("SQLITE_PATH", "booking.db"),
		StatementTimeout:    msDef("PG_STATEMENT_TIMEOUT_MS", infraconfig.DefaultStatementTimeout),
		TxTimeout:           msDef("TX_TIMEOUT_MS", infraconfig.DefaultTxTimeout),
		InvalidationBackend: getEnv("INVALIDATION_BACKEND", "redis"),
		InvalidationChannel: getEnv("INVALIDATION_CHANNEL", infraconfig.DefaultInvalidationTopic),
		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:          getEnv("KAFKA_TOPIC", infraconfig.DefaultInvalidationTopic),
		KafkaGroupPrefix:    getEnv("KAFKA_GROUP_PREFIX", "booking-service"),
		CacheRefresh:        msDef("CACHE_REFRESH_MS", infraconfig.DefaultCacheRefresh),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             intEnv("REDIS_DB", 0),
		IdempotencyBackend:  getEnv("IDEMPOTENCY_BACKEND", "none"),
		IdempotencyTTL:      msDef("IDEMPOTENCY_TTL_MS", 24*time.Hour),
		MaxStayDays:         intEnv("MAX_STAY_DAYS", infraconfig.DefaultMaxStayDays),
		HorizonMonths:       intEnv("HORIZON_MONTHS", infraconfig.DefaultHorizonMonths),
	}
}
