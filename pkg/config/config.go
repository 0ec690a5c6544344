package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Service    ServiceConfig
	Storage    StorageConfig
	Mongo      MongoConfig
	Postgres   PostgresConfig
	Logstash   LogstashConfig
	CloudWatch CloudWatchConfig
	Redis      RedisConfig
	NATS       NATSConfig
	Stats      StatsConfig
	RateLimit  RateLimitConfig
	Security   SecurityConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type ServiceConfig struct {
	// Name tags every log record emitted by this process.
	Name string
}

// StorageDriver selects the item repository implementation.
type StorageDriver string

const (
	StorageMongo    StorageDriver = "mongo"
	StoragePostgres StorageDriver = "postgres"
)

type StorageConfig struct {
	Driver StorageDriver
}

type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogstashConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

type CloudWatchConfig struct {
	LogsEnabled     bool
	LogGroupName    string
	LogStreamName   string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BufferSize      int
	FlushInterval   time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
}

type StatsConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type SecurityConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	logstashTimeout, err := time.ParseDuration(getEnv("LOGSTASH_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGSTASH_TIMEOUT: %w", err)
	}

	flushInterval, err := time.ParseDuration(getEnv("CLOUDWATCH_LOGS_FLUSH_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_LOGS_FLUSH_INTERVAL: %w", err)
	}

	bufferSize, err := strconv.Atoi(getEnv("CLOUDWATCH_LOGS_BUFFER_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_LOGS_BUFFER_SIZE: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisTTL, err := time.ParseDuration(getEnv("REDIS_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_TTL: %w", err)
	}

	statsInterval, err := time.ParseDuration(getEnv("STATS_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_INTERVAL: %w", err)
	}

	rateLimitRPS, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	rateLimitBurst, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	driver := StorageMongo
	if StorageDriver(getEnv("STORAGE_DRIVER", "mongo")) == StoragePostgres {
		driver = StoragePostgres
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "backend"),
		},
		Storage: StorageConfig{
			Driver: driver,
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", "mongodb://localhost:27017/testdb"),
			Database:       getEnv("MONGO_DB", "testdb"),
			Collection:     getEnv("MONGO_COLLECTION", "items"),
			ConnectTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "testdb"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Logstash: LogstashConfig{
			Enabled: getEnvBool("LOGSTASH_ENABLED", true),
			URL:     getEnv("LOGSTASH_URL", "http://logstash:5000"),
			Timeout: logstashTimeout,
		},
		CloudWatch: CloudWatchConfig{
			LogsEnabled:     getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			LogGroupName:    getEnv("CLOUDWATCH_LOG_GROUP", "/item-tracker/backend"),
			LogStreamName:   getEnv("CLOUDWATCH_LOG_STREAM", "app"),
			Region:          getEnv("CLOUDWATCH_REGION", "us-east-1"),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
			BufferSize:      bufferSize,
			FlushInterval:   flushInterval,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      redisTTL,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Stats: StatsConfig{
			Enabled:  getEnvBool("STATS_ENABLED", true),
			Interval: statsInterval,
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", false),
			RPS:     rateLimitRPS,
			Burst:   rateLimitBurst,
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		},
	}

	return cfg, nil
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// MaskedURI returns the Mongo URI with credentials blanked, safe to log.
func (c *MongoConfig) MaskedURI() string {
	u, err := url.Parse(c.URI)
	if err != nil || u.User == nil {
		return c.URI
	}
	u.User = url.User("*****")
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
