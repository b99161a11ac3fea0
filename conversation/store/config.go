package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweetpotato0/genui/config"
	"github.com/sweetpotato0/genui/conversation"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Options selects and configures a repository backend.
type Options struct {
	Backend  string
	Redis    *RedisConfig
	Postgres *PostgresConfig
	Mongo    *MongoConfig
}

// FromConfig builds Options from loaded settings. Backend fields not carried
// by cfg keep their environment defaults.
func FromConfig(cfg config.StoreConfig) Options {
	opts := Options{Backend: cfg.Backend}
	switch strings.ToLower(cfg.Backend) {
	case BackendRedis:
		opts.Redis = RedisConfigFromEnv()
		if cfg.RedisAddr != "" {
			opts.Redis.Addr = cfg.RedisAddr
		}
		if cfg.RedisDB != 0 {
			opts.Redis.DB = cfg.RedisDB
		}
	case BackendPostgres:
		opts.Postgres = PostgresConfigFromEnv()
		if cfg.PostgresDSN != "" {
			opts.Postgres.DSN = cfg.PostgresDSN
		}
	case BackendMongo:
		opts.Mongo = MongoConfigFromEnv()
		if cfg.MongoURI != "" {
			opts.Mongo.URI = cfg.MongoURI
		}
	}
	return opts
}

// Open creates the repository named by opts.Backend. The returned close
// function releases the backend connection.
func Open(ctx context.Context, opts Options) (conversation.Repository, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewInMemoryStore(), noop, nil
	case BackendRedis:
		s := NewRedisStore(opts.Redis)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		return s, s.Close, nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, opts.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case BackendMongo:
		s, err := NewMongoStore(ctx, opts.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return s.Close(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// PostgresConfigFromEnv loads PostgreSQL configuration from environment variables.
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		DSN:      getEnv("POSTGRES_DSN", ""),
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		DBName:   getEnv("POSTGRES_DB", "genui"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "genui:conversation:"),
		TTL:      getEnvDuration("REDIS_TTL", 24*time.Hour),
	}
}

// MongoConfigFromEnv loads MongoDB configuration from environment variables.
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:   getEnv("MONGODB_DB", "genui"),
		Collection: getEnv("MONGODB_COLLECTION", "conversations"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
