package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	Logger LoggerConfig

	AdminAPIKey     string
	InternalTaskKey string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	StoreBackend string

	Redis RedisConfig

	Email EmailConfig

	Intake IntakeConfig

	Scheduler SchedulerConfig

	Tracing TracingConfig
}

type LoggerConfig struct {
	Level string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	OperatorTo   string
	CompanyName  string
}

func (c EmailConfig) Enabled() bool {
	return strings.TrimSpace(c.SMTPHost) != ""
}

type IntakeConfig struct {
	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration
	DispatchWorkers  int
	DispatchQueue    int
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
}

type TracingConfig struct {
	Enabled          bool
	ExporterEndpoint string
	SamplingRatio    float64
}

const (
	StoreBackendGorm  = "gorm"
	StoreBackendRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "leadrail"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},
		AdminAPIKey:     strings.TrimSpace(getenv("ADMIN_API_KEY", "")),
		InternalTaskKey: strings.TrimSpace(getenv("INTERNAL_TASK_KEY", "")),

		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "leadrail"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		StoreBackend: normalizeBackend(getenv("STORE_BACKEND", StoreBackendGorm)),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},

		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", ""),
			OperatorTo:   getenv("OPERATOR_EMAIL", ""),
			CompanyName:  getenv("COMPANY_NAME", "Brushline"),
		},

		Intake: IntakeConfig{
			RateLimitEnabled: getenvBool("INTAKE_RATE_LIMIT_ENABLED", true),
			RateLimitMax:     getenvInt("INTAKE_RATE_LIMIT_MAX", 5),
			RateLimitWindow:  getenvDuration("INTAKE_RATE_LIMIT_WINDOW", 10*time.Minute),
			DispatchWorkers:  getenvInt("DISPATCH_WORKERS", 4),
			DispatchQueue:    getenvInt("DISPATCH_QUEUE", 256),
		},

		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			RunInterval: getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		},

		Tracing: TracingConfig{
			Enabled:          getenvBool("OTEL_ENABLED", false),
			ExporterEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
			SamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 1.0),
		},
	}

	return cfg
}

func normalizeBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreBackendRedis:
		return StoreBackendRedis
	default:
		return StoreBackendGorm
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
