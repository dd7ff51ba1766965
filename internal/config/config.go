package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all controller configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// AuthorityURL is the base URL of the remote assessment authority.
	AuthorityURL     string
	AuthorityTimeout time.Duration

	// JWTSecret verifies the platform-issued session tokens presented by
	// the exam UI. Shared with the platform's auth service.
	JWTSecret string

	// RedisURL is optional. When set, workspace drafts are kept in Redis so
	// they survive a controller restart; otherwise an in-memory store is used.
	RedisURL string

	// SyncInterval is the per-timer persistence cadence of the reconciler.
	SyncInterval time.Duration
	// FlushInterval is how often buffered timer deltas are flushed.
	FlushInterval time.Duration
	// HeartbeatInterval is the proctoring liveness cadence.
	HeartbeatInterval time.Duration

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// DefaultJWTSecret is the insecure development fallback. The daemon warns
// (and prompts, when interactive) if it is still in use at startup.
const DefaultJWTSecret = "change-this-to-a-secure-random-string"

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort:        getEnv("SERVER_PORT", "8090"),
		GinMode:           getEnv("GIN_MODE", "debug"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "pretty"),
		AuthorityURL:      getEnv("AUTHORITY_URL", "http://localhost:8080/api/v1"),
		AuthorityTimeout:  time.Duration(getEnvInt("AUTHORITY_TIMEOUT_SECONDS", 10)) * time.Second,
		JWTSecret:         getEnv("JWT_SECRET", DefaultJWTSecret),
		RedisURL:          getEnv("REDIS_URL", ""),
		SyncInterval:      time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 15)) * time.Second,
		FlushInterval:     time.Duration(getEnvInt("FLUSH_INTERVAL_SECONDS", 2)) * time.Second,
		HeartbeatInterval: time.Duration(getEnvInt("HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second,
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
