package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for every recognized knob.
const (
	DefaultServerAddr      = "0.0.0.0:9000"
	DefaultLogLevel        = "info"
	DefaultHistoryLimit    = 100
	DefaultRoomTTLSecs     = 300
	DefaultBroadcastBuffer = 128
)

// Config holds validated environment configuration
type Config struct {
	// Core knobs
	ServerAddr   string        // SERVER_ADDR: bind address
	LogLevel     string        // LOG_LEVEL: log verbosity
	HistoryLimit int           // HISTORY_LIMIT: per-room chat-history ring capacity
	RoomTTL      time.Duration // ROOM_TTL_SECS: how long an empty room is retained

	// Optional variables with defaults
	BroadcastBuffer int  // BROADCAST_BUFFER: per-subscriber frame buffer
	DevelopmentMode bool // DEVELOPMENT_MODE: console logging, relaxed origins
	AllowedOrigins  string
}

// ValidateEnv validates all recognized environment variables and returns a
// Config object. Returns an error if any variable is malformed.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// SERVER_ADDR (format: host:port)
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", DefaultServerAddr)
	if !isValidHostPort(cfg.ServerAddr) {
		errors = append(errors, fmt.Sprintf("SERVER_ADDR must be in format 'host:port' (got '%s')", cfg.ServerAddr))
	}

	// LOG_LEVEL
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", DefaultLogLevel)

	// HISTORY_LIMIT (positive integer)
	historyLimit, err := getEnvInt("HISTORY_LIMIT", DefaultHistoryLimit)
	if err != nil || historyLimit < 1 {
		errors = append(errors, fmt.Sprintf("HISTORY_LIMIT must be a positive integer (got '%s')", os.Getenv("HISTORY_LIMIT")))
	}
	cfg.HistoryLimit = historyLimit

	// ROOM_TTL_SECS (positive integer, seconds)
	ttlSecs, err := getEnvInt("ROOM_TTL_SECS", DefaultRoomTTLSecs)
	if err != nil || ttlSecs < 1 {
		errors = append(errors, fmt.Sprintf("ROOM_TTL_SECS must be a positive integer (got '%s')", os.Getenv("ROOM_TTL_SECS")))
	}
	cfg.RoomTTL = time.Duration(ttlSecs) * time.Second

	// BROADCAST_BUFFER (positive integer)
	broadcastBuffer, err := getEnvInt("BROADCAST_BUFFER", DefaultBroadcastBuffer)
	if err != nil || broadcastBuffer < 1 {
		errors = append(errors, fmt.Sprintf("BROADCAST_BUFFER must be a positive integer (got '%s')", os.Getenv("BROADCAST_BUFFER")))
	}
	cfg.BroadcastBuffer = broadcastBuffer

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// If there are validation errors, return them
	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	// Validate port is a number
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	// Validate host is not empty
	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated",
		"server_addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"history_limit", cfg.HistoryLimit,
		"room_ttl", cfg.RoomTTL.String(),
		"broadcast_buffer", cfg.BroadcastBuffer,
		"development_mode", cfg.DevelopmentMode,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable, falling back to a default
// when the variable is unset.
func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}
