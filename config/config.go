package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Notify   NotifyConfig
	Sweep    SweepConfig
	Cache    CacheConfig
	LogLevel string
	Currency string
}

type ServerConfig struct {
	Port            string
	Mode            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// LedgerConfig bounds every storage call: per-attempt timeout plus retry schedule.
type LedgerConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

type NotifySink string

const (
	NotifySinkRedis  NotifySink = "redis"
	NotifySinkKafka  NotifySink = "kafka"
	NotifySinkMemory NotifySink = "memory"
)

type NotifyConfig struct {
	Sink         NotifySink
	KafkaBrokers []string
	KafkaTopic   string
	WebhookURL   string
	Timeout      time.Duration
}

type SweepConfig struct {
	Interval time.Duration
	Batch    int
}

type CacheConfig struct {
	EventTTL time.Duration
}

var AppConfig *Config

func LoadConfig() *Config {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	AppConfig = &Config{
		Server:   GetServerConfig(),
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
			Issuer:    getEnv("JWT_ISSUER", "campus-ticketing"),
		},
		Ledger: GetLedgerConfig(),
		Notify: GetNotifyConfig(),
		Sweep: SweepConfig{
			Interval: getEnvDuration("SWEEP_INTERVAL", time.Minute),
			Batch:    getEnvInt("SWEEP_BATCH", 200),
		},
		Cache: CacheConfig{
			EventTTL: getEnvDuration("EVENT_CACHE_TTL", 30*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Currency: strings.ToUpper(getEnv("APP_CURRENCY", "INR")),
	}

	return AppConfig
}

func LoadTestConfig() *Config {
	testConfig := &DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnv("TEST_DB_PORT", "5433"),
		User:     "postgres",
		Password: "postgres",
		DBName:   "test_db",
		SSLMode:  "disable",
	}

	testRedisConfig := RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnv("TEST_REDIS_PORT", "6380"),
		Password: "",
		DB:       1,
	}

	return &Config{
		Server:   ServerConfig{Port: "0", Mode: "test", ShutdownTimeout: time.Second},
		Database: *testConfig,
		Redis:    testRedisConfig,
		Auth:     AuthConfig{JWTSecret: "test-secret", Issuer: "campus-ticketing-test"},
		Ledger: LedgerConfig{
			Timeout:      time.Second,
			MaxRetries:   2,
			RetryInitial: time.Millisecond,
			RetryMax:     5 * time.Millisecond,
		},
		Notify:   NotifyConfig{Sink: NotifySinkMemory, Timeout: time.Second},
		Sweep:    SweepConfig{Interval: 50 * time.Millisecond, Batch: 50},
		Cache:    CacheConfig{EventTTL: time.Second},
		LogLevel: "debug",
		Currency: "INR",
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnv("PORT", "8080"),
		Mode:            getEnv("GIN_MODE", "release"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
		MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
	}
}

func GetRedisConfig() RedisConfig {
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		panic(err)
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
	}
}

func GetLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Timeout:      getEnvDuration("LEDGER_TIMEOUT", 3*time.Second),
		MaxRetries:   getEnvInt("LEDGER_MAX_RETRIES", 3),
		RetryInitial: getEnvDuration("LEDGER_RETRY_INITIAL", 50*time.Millisecond),
		RetryMax:     getEnvDuration("LEDGER_RETRY_MAX", time.Second),
	}
}

func GetNotifyConfig() NotifyConfig {
	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS", ""), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return NotifyConfig{
		Sink:         NotifySink(strings.ToLower(getEnv("NOTIFY_SINK", string(NotifySinkRedis)))),
		KafkaBrokers: brokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "campus.notifications"),
		WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		Timeout:      getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
