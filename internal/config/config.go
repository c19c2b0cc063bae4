package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend modes.
const (
	BackendModeREST     = "rest"
	BackendModeDatabase = "database"
)

// Config holds all configuration for our application
type Config struct {
	Port        string
	Origin      string
	Environment string
	Log         LogConfig
	Backend     BackendConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Signup      SignupConfig
	Kafka       KafkaConfig

	JWTExpirationMinutes int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// BackendConfig describes the hosted backend the portal talks to
type BackendConfig struct {
	Mode           string
	URL            string
	AnonKey        string
	ServiceRoleKey string
	JWTSecret      string
	Timeout        time.Duration
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds redis connection details. An empty Addr selects the in-memory store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig holds TTLs of cached views and signup flows
type CacheConfig struct {
	DiagnosesTTL  time.Duration
	SignupFlowTTL time.Duration
}

// SignupConfig controls session polling after account creation
type SignupConfig struct {
	SessionPollInitial  time.Duration
	SessionPollMax      time.Duration
	SessionPollAttempts int
}

// KafkaConfig holds event publishing settings. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "postgres"),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	switch dbConfig.Driver {
	case "postgres":
		dbConfig.Port = getEnv("DB_PORT", "5432")
		dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=Asia/Bangkok",
			dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name)
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER: %q", dbConfig.Driver)
	}

	mode := getEnv("BACKEND_MODE", BackendModeREST)
	if mode != BackendModeREST && mode != BackendModeDatabase {
		return nil, fmt.Errorf("invalid BACKEND_MODE: %q", mode)
	}

	backendTimeout, err := getDuration("BACKEND_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	backendConfig := BackendConfig{
		Mode:           mode,
		URL:            strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:54321"), "/"),
		AnonKey:        getEnv("BACKEND_ANON_KEY", ""),
		ServiceRoleKey: getEnv("BACKEND_SERVICE_ROLE_KEY", ""),
		JWTSecret:      getEnv("BACKEND_JWT_SECRET", "default_jwt_secret"),
		Timeout:        backendTimeout,
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	diagnosesTTL, err := getDuration("DIAGNOSES_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	flowTTL, err := getDuration("SIGNUP_FLOW_TTL", "30m")
	if err != nil {
		return nil, err
	}

	pollInitial, err := getDuration("SESSION_POLL_INITIAL", "250ms")
	if err != nil {
		return nil, err
	}
	pollMax, err := getDuration("SESSION_POLL_MAX", "2s")
	if err != nil {
		return nil, err
	}
	pollAttempts, err := strconv.Atoi(getEnv("SESSION_POLL_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_POLL_ATTEMPTS: %w", err)
	}
	if pollAttempts < 1 {
		return nil, fmt.Errorf("invalid SESSION_POLL_ATTEMPTS: must be at least 1, got %d", pollAttempts)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Origin:      getEnv("ORIGIN", "http://localhost:5173"),
		Environment: getEnv("APP_ENV", "development"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Backend:  backendConfig,
		Database: dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			DiagnosesTTL:  diagnosesTTL,
			SignupFlowTTL: flowTTL,
		},
		Signup: SignupConfig{
			SessionPollInitial:  pollInitial,
			SessionPollMax:      pollMax,
			SessionPollAttempts: pollAttempts,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "clinic-portal-events"),
		},
		JWTExpirationMinutes: jwtExpMinutes,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
