package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"

	MessageStoreMongo  = "mongo"
	MessageStoreScylla = "scylla"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	StorageDriver string
	MessageStore  string
	SessionStore  string

	MongoURI      string
	MongoDB       string
	MongoPoolSize uint64

	ScyllaHosts       []string
	ScyllaKeyspace    string
	ScyllaUsername    string
	ScyllaPassword    string
	ScyllaTimeout     time.Duration
	ReplicationFactor int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	InboxWindow        time.Duration

	SessionTTL     time.Duration
	MaxPinned      int
	SendRatePerMin int
	SendBurst      int

	UsersFixtures string
}

// Load reads an optional .env file and parses configuration from the environment.
func Load() (Config, error) {
	if path := getEnv("ENV_FILE", ".env"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		MessageStore:       strings.ToLower(getEnv("MESSAGE_STORE", MessageStoreMongo)),
		SessionStore:       strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "devrim"),
		ScyllaHosts:        splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace:     strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "devrim_messages")),
		ScyllaUsername:     strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword:     strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:       splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "devrim-realtime"),
		UsersFixtures:      os.Getenv("USERS_FIXTURES"),
	}

	var err error
	if cfg.ReplicationFactor, err = parseIntEnv("SCYLLA_REPLICATION_FACTOR", 1); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	poolSize, err := parseIntEnv("MONGO_MAX_POOL_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	if poolSize < 1 {
		return Config{}, fmt.Errorf("MONGO_MAX_POOL_SIZE must be positive")
	}
	cfg.MongoPoolSize = uint64(poolSize)
	if cfg.MaxPinned, err = parseIntEnv("CHAT_MAX_PINNED", 50); err != nil {
		return Config{}, err
	}
	if cfg.SendRatePerMin, err = parseIntEnv("SEND_RATE_PER_MIN", 120); err != nil {
		return Config{}, err
	}
	if cfg.SendBurst, err = parseIntEnv("SEND_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.InboxWindow, err = parseDurationEnv("INBOX_WINDOW", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}
	switch c.MessageStore {
	case MessageStoreMongo:
	case MessageStoreScylla:
		if c.StorageDriver != StorageMongo {
			return fmt.Errorf("MESSAGE_STORE=scylla requires STORAGE_DRIVER=mongo")
		}
		if len(c.ScyllaHosts) == 0 || c.ScyllaKeyspace == "" {
			return fmt.Errorf("SCYLLA_HOSTS and SCYLLA_KEYSPACE are required for MESSAGE_STORE=scylla")
		}
	default:
		return fmt.Errorf("unsupported MESSAGE_STORE: %s", c.MessageStore)
	}
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for SESSION_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported SESSION_STORE: %s", c.SessionStore)
	}
	if c.MaxPinned < 1 {
		return fmt.Errorf("CHAT_MAX_PINNED must be positive")
	}
	if c.SendRatePerMin < 1 || c.SendBurst < 1 {
		return fmt.Errorf("SEND_RATE_PER_MIN and SEND_BURST must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}
