// Пакет config предоставляет конфигурацию для приложения.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/BuzzLyutic/shortlink/internal/shortcode"
)

// Типы хранилищ
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
)

// Файл SQLite по умолчанию
const DefaultSQLitePath = "shortener.db"

// Config содержит конфиг приложения
type Config struct {
	// Настройки сервера
	ServerAddress string
	BaseURL       string

	// Настройки хранилища
	StorageType string // memory, postgres, sqlite или redis
	DatabaseURL string

	// Настройки ссылок
	DefaultTTL    time.Duration
	CodeLength    int
	MaxAttempts   int
	SweepInterval time.Duration // 0 = очистка выключена

	// Лимит на создание ссылок, например "10-S". Пусто = без лимита
	RateLimit string

	// Логирование
	LogLevel string
}

// Load загружает конфиг из флагов, файла .env и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Load(args []string) (*Config, error) {
	cfg := &Config{}

	// Определение флагов
	flags := flag.NewFlagSet("shortener", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&cfg.ServerAddress, "address", ":8080", "Server address (HOST:PORT)")
	flags.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "Base URL for short links")
	flags.StringVar(&cfg.StorageType, "storage", StorageMemory, "Storage type: memory, postgres, sqlite or redis")
	flags.StringVar(&cfg.DatabaseURL, "database-url", "", "Connection string for postgres, sqlite or redis")
	flags.DurationVar(&cfg.DefaultTTL, "ttl", 0, "Default TTL for links (0 = no expiration)")
	flags.IntVar(&cfg.CodeLength, "code-length", shortcode.DefaultLength, "Length of generated codes")
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", 10, "Max generation attempts on collision")
	flags.DurationVar(&cfg.SweepInterval, "sweep-interval", time.Minute, "Expired links cleanup interval (0 = disabled)")
	flags.StringVar(&cfg.RateLimit, "rate-limit", "", "Create rate limit per client IP, e.g. 10-S")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// .env не перезаписывает уже заданные переменные
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.StorageType == StorageSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = DefaultSQLitePath
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Переопределение переменными окружения
func (c *Config) applyEnv() error {
	if env := os.Getenv("SERVER_ADDRESS"); env != "" {
		c.ServerAddress = env
	}
	if env := os.Getenv("BASE_URL"); env != "" {
		c.BaseURL = env
	}
	if env := os.Getenv("STORAGE_TYPE"); env != "" {
		c.StorageType = env
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		c.DatabaseURL = env
	}
	if env := os.Getenv("DEFAULT_TTL"); env != "" {
		ttl, err := time.ParseDuration(env)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_TTL: %w", err)
		}
		c.DefaultTTL = ttl
	}
	if env := os.Getenv("CODE_LENGTH"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("invalid CODE_LENGTH: %w", err)
		}
		c.CodeLength = n
	}
	if env := os.Getenv("MAX_ATTEMPTS"); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("invalid MAX_ATTEMPTS: %w", err)
		}
		c.MaxAttempts = n
	}
	if env := os.Getenv("SWEEP_INTERVAL"); env != "" {
		interval, err := time.ParseDuration(env)
		if err != nil {
			return fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		c.SweepInterval = interval
	}
	if env := os.Getenv("RATE_LIMIT"); env != "" {
		c.RateLimit = env
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		c.LogLevel = env
	}
	return nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageSQLite:
	case StoragePostgres, StorageRedis:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database-url is required when storage=%s", c.StorageType)
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be one of memory, postgres, sqlite, redis)", c.StorageType)
	}

	if c.CodeLength < shortcode.MinLength || c.CodeLength > shortcode.MaxLength {
		return fmt.Errorf("code length must be between %d and %d, got %d",
			shortcode.MinLength, shortcode.MaxLength, c.CodeLength)
	}

	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}

	if c.DefaultTTL < 0 {
		return fmt.Errorf("default ttl must not be negative, got %s", c.DefaultTTL)
	}

	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep interval must not be negative, got %s", c.SweepInterval)
	}

	return nil
}
