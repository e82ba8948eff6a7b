// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "storefront"
	ServiceVersion = "0.1.0"
)

const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	StorageDriver string
	MySQLDSN      string
	CacheDriver   string
	RedisAddr     string

	KafkaBrokers           []string
	KafkaNotificationTopic string

	RestockWorkers   int
	RestockQueueSize int

	RankingCron string
	ReorderCron string
	JobTimeout  time.Duration

	OtelEndpoint   string
	OtelAuthHeader string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenv(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func listenv(key string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads .env (if present) and the environment, applying defaults.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:               getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:               getenv("GRPC_ADDR", ":50051"),
		ShutdownTimeout:        durenv("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:               getenv("LOG_LEVEL", "info"),
		StorageDriver:          getenv("STORAGE_DRIVER", DriverMySQL),
		MySQLDSN:               getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true&loc=UTC"),
		CacheDriver:            getenv("CACHE_DRIVER", DriverRedis),
		RedisAddr:              getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:           listenv("KAFKA_BROKERS"),
		KafkaNotificationTopic: getenv("KAFKA_NOTIFICATION_TOPIC", "notifications"),
		RestockWorkers:         atoienv("RESTOCK_WORKERS", 4),
		RestockQueueSize:       atoienv("RESTOCK_QUEUE_SIZE", 1000),
		RankingCron:            getenv("RANKING_CRON", "0 * * * *"),
		ReorderCron:            getenv("REORDER_CRON", "0 1 * * *"),
		JobTimeout:             durenv("JOB_TIMEOUT", 10*time.Minute),
		OtelEndpoint:           getenv("OTEL_ENDPOINT", ""),
		OtelAuthHeader:         getenv("OTEL_AUTH_HEADER", ""),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMySQL, DriverMemory, c.StorageDriver)
	}
	switch c.CacheDriver {
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("CACHE_DRIVER must be %q or %q, got %q", DriverRedis, DriverMemory, c.CacheDriver)
	}
	if c.RestockWorkers < 1 {
		return fmt.Errorf("RESTOCK_WORKERS must be positive, got %d", c.RestockWorkers)
	}
	if c.RestockQueueSize < 1 {
		return fmt.Errorf("RESTOCK_QUEUE_SIZE must be positive, got %d", c.RestockQueueSize)
	}
	return nil
}
