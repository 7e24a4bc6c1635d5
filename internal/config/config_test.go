package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "STORE", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
		"DB_NAME", "DB_SSLMODE", "LOCK_TIMEOUT", "VERIFY_USERS", "REDIS_URL",
		"NOTIFY_CHANNEL", "ENABLE_METRICS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.VerifyUsers)
	assert.True(t, cfg.EnableMetrics)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=eventbooking sslmode=disable",
		cfg.Database.DSN())
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE", StoreMemory)
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("VERIFY_USERS", "true")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DB_NAME", "registrations")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.True(t, cfg.VerifyUsers)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "registrations", cfg.Database.DBName)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCK_TIMEOUT", "soon")
	t.Setenv("VERIFY_USERS", "maybe")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.VerifyUsers)
}
