package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	StoreDriver string

	// StoreTimeout bounds one purchase, store calls included.
	StoreTimeout     time.Duration
	DBConnectTimeout time.Duration

	JWTSecret string
	NATSURL   string

	// AdminUsername, when set, is provisioned as an admin account at start.
	AdminUsername string

	Log struct {
		Level       string
		Development bool
	}
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:  getenv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StoreDriver: getenv("STORE_DRIVER", DriverPostgres),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		NATSURL:     os.Getenv("NATS_URL"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
	}
	cfg.Log.Level = getenv("LOG_LEVEL", "info")

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}

	storeTimeout, err := positiveInt("STORE_TIMEOUT_MS", 3000)
	if err != nil {
		return nil, err
	}
	cfg.StoreTimeout = time.Duration(storeTimeout) * time.Millisecond

	connectTimeout, err := positiveInt("DB_CONNECT_TIMEOUT_S", 30)
	if err != nil {
		return nil, err
	}
	cfg.DBConnectTimeout = time.Duration(connectTimeout) * time.Second

	if v := os.Getenv("LOG_DEVELOPMENT"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LOG_DEVELOPMENT must be a boolean: %w", err)
		}
		cfg.Log.Development = dev
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}
