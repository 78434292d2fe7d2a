// Package config holds gearmand's flag-driven configuration. Upstream
// gearmand has no config file, only command-line flags (spec.md §6), so
// this stays a plain struct populated by cmd/gearmand's cobra flags
// rather than inventing a viper/yaml layer the original never had.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// QueueType selects which queue.Adapter backend cmd/gearmand wires up.
type QueueType string

const (
	QueueMemory QueueType = "memory"
	QueueBolt   QueueType = "bolt"
	QueueRedis  QueueType = "redis"
)

// Config mirrors spec.md §6's gearmand flag surface plus the data needed
// to wire a chosen queue backend and the domain-stack additions (admin/
// metrics addresses, Kafka event fan-out).
type Config struct {
	Port             int
	Threads          int
	Backlog          int
	FileDescriptors  int
	JobRetries       int
	WorkerWakeup     int
	RoundRobin       bool
	QueueType        QueueType
	LogFile          string
	ListenAddr       string
	PidFile          string
	Daemon           bool
	User             string
	Verbose          int
	Syslog           bool
	CheckArgs        bool

	DataDir     string
	RedisAddr   string
	AdminAddr   string
	MetricsAddr string

	KafkaBrokers []string
	KafkaTopic   string
}

// LoadDotEnv loads a .env file for queue-backend DSNs (REDIS_ADDR,
// KAFKA_BROKERS) if one is present in the working directory; like the
// weather-server's pkg/config.Load, a missing file is not an error.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// EnvOr returns the named environment variable or a default, used to
// seed flag defaults for values operators more commonly set via the
// environment than the command line (backend addresses, broker lists).
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
