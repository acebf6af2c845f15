package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel   string
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	S3         S3Config
	Dynamo     DynamoConfig
	Security   SecurityConfig
	Report     ReportConfig
	Watcher    WatcherConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

type CloudWatchConfig struct {
	Enabled         bool
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Namespace       string
	LogGroup        string
	LogStream       string
	Environment     string
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled         bool
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
	MetadataTTL     time.Duration
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
	JWTSecret      string
	JWTIssuer      string
}

type ReportConfig struct {
	CacheTTL           time.Duration
	MaxCustomRangeDays int
	SubmitRateLimit    float64
	SubmitBurst        int
	StatsTimeout       time.Duration
}

type WatcherConfig struct {
	Port         string
	Interval     time.Duration
	Range        string
	BaseURL      string
	ProxyTimeout time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var errs []string
	duration := func(key, fallback string) time.Duration {
		d, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}
	integer := func(key string, fallback int) int {
		n, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return n
	}

	submitRate, err := strconv.ParseFloat(getEnv("REPORT_SUBMIT_RATE_LIMIT", "5"), 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REPORT_SUBMIT_RATE_LIMIT: %v", err))
	}

	awsRegion := getEnv("AWS_REGION", "us-east-1")

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     duration("SERVER_READ_TIMEOUT", "10s"),
			WriteTimeout:    duration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: duration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			MaxBodyBytes:    int64(integer("SERVER_MAX_BODY_KB", 1024)) * 1024,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "soc_portal"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       integer("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", true),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "SOC_EVENTS"),
		},
		CloudWatch: CloudWatchConfig{
			Enabled:         getEnvBool("CLOUDWATCH_ENABLED", false),
			Region:          getEnv("CLOUDWATCH_REGION", awsRegion),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Namespace:       getEnv("CLOUDWATCH_NAMESPACE", "SOCPortal/Reliability"),
			LogGroup:        getEnv("CLOUDWATCH_LOG_GROUP", "/soc-portal/api"),
			LogStream:       getEnv("CLOUDWATCH_LOG_STREAM", hostnameOr("soc-portal")),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", awsRegion),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "reports"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    duration("S3_PRESIGNED_TTL", "15m"),
		},
		Dynamo: DynamoConfig{
			Enabled:         getEnvBool("DYNAMO_ENABLED", false),
			Table:           getEnv("DYNAMO_TABLE", "soc_report_exports"),
			Region:          getEnv("DYNAMO_REGION", awsRegion),
			Endpoint:        getEnv("DYNAMO_ENDPOINT", ""),
			AccessKeyID:     getEnv("DYNAMO_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("DYNAMO_SECRET_ACCESS_KEY", ""),
			StrongReads:     getEnvBool("DYNAMO_STRONG_READS", false),
			MetadataTTL:     duration("DYNAMO_METADATA_TTL", "2160h"),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
			JWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
			JWTIssuer:      getEnv("AUTH_JWT_ISSUER", ""),
		},
		Report: ReportConfig{
			CacheTTL:           duration("REPORT_CACHE_TTL", "60s"),
			MaxCustomRangeDays: integer("REPORT_MAX_CUSTOM_RANGE_DAYS", 366),
			SubmitRateLimit:    submitRate,
			SubmitBurst:        integer("REPORT_SUBMIT_BURST", 10),
			StatsTimeout:       duration("REPORT_STATS_TIMEOUT", "3s"),
		},
		Watcher: WatcherConfig{
			Port:         getEnv("WATCHER_PORT", "8081"),
			Interval:     duration("WATCHER_INTERVAL", "60s"),
			Range:        getEnv("WATCHER_RANGE", "today"),
			BaseURL:      getEnv("WATCHER_BASE_URL", "http://localhost:8081"),
			ProxyTimeout: duration("WATCHER_PROXY_TIMEOUT", "6s"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if cfg.Security.AuthEnabled && cfg.Security.AuthToken == "" && cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_BEARER_TOKEN or AUTH_JWT_SECRET is required when AUTH_ENABLED=true")
	}
	if cfg.S3.Enabled && cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}
	if cfg.Report.SubmitRateLimit <= 0 || cfg.Report.SubmitBurst <= 0 {
		return nil, fmt.Errorf("REPORT_SUBMIT_RATE_LIMIT and REPORT_SUBMIT_BURST must be positive")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
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

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key, defaultValue string) (time.Duration, error) {
	parsed, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func hostnameOr(fallback string) string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return fallback
}
