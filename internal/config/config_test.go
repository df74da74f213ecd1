package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "STORE_DRIVER", "STORE_TIMEOUT_MS",
		"JWT_SECRET", "NATS_URL", "LOG_LEVEL", "LOG_DEVELOPMENT", "DB_CONNECT_TIMEOUT_S",
		"ADMIN_USERNAME",
	} {
		t.Setenv(key, env[key])
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/vending",
		"JWT_SECRET":   "secret",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 30*time.Second, cfg.DBConnectTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.AdminUsername)
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, map[string]string{
		"SERVER_PORT":          "9090",
		"STORE_DRIVER":         "memory",
		"STORE_TIMEOUT_MS":     "250",
		"JWT_SECRET":           "secret",
		"NATS_URL":             "nats://localhost:4222",
		"LOG_LEVEL":            "debug",
		"LOG_DEVELOPMENT":      "true",
		"DB_CONNECT_TIMEOUT_S": "5",
		"ADMIN_USERNAME":       "root",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 5*time.Second, cfg.DBConnectTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "root", cfg.AdminUsername)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"JWT_SECRET": "s"}, "DATABASE_URL"},
		{"missing secret", map[string]string{"STORE_DRIVER": "memory"}, "JWT_SECRET"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "redis", "JWT_SECRET": "s"}, "STORE_DRIVER"},
		{"bad timeout", map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "STORE_TIMEOUT_MS": "-1"}, "STORE_TIMEOUT_MS"},
		{"bad flag", map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET": "s", "LOG_DEVELOPMENT": "maybe"}, "LOG_DEVELOPMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.env)
			_, err := Load()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
