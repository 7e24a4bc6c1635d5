// Package config loads service settings from environment variables,
// falling back to local-development defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a libpq-compatible connection string.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Config is the full service configuration.
type Config struct {
	// Server
	Port     string
	LogLevel string

	// Storage
	Store       string
	Database    Database
	LockTimeout time.Duration

	// Registration
	VerifyUsers bool

	// Notifications; an empty RedisURL logs notifications instead.
	RedisURL      string
	NotifyChannel string

	// Monitoring
	EnableMetrics bool
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Store: getEnv("STORE", StorePostgres),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "eventbooking"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LockTimeout: getEnvAsDuration("LOCK_TIMEOUT", "5s"),

		VerifyUsers: getEnvAsBool("VERIFY_USERS", false),

		RedisURL:      getEnv("REDIS_URL", ""),
		NotifyChannel: getEnv("NOTIFY_CHANNEL", "registrations:notifications"),

		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key, fallback string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, fallback)); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}
