package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Presence engine thresholds
	IdleThreshold    time.Duration // no activity for this long marks a session IDLE
	SessionTimeout   time.Duration // no activity for this long force-closes a session
	SweepInterval    time.Duration // how often the idle/timeout sweep runs
	SnapshotInterval time.Duration // how often the manager presence snapshot is broadcast

	// Live-call tracker
	LiveCallTTL           time.Duration // pre-connect entries older than this are dropped
	LiveCallSweepInterval time.Duration

	// WebSocket timings
	WSReadTimeout  time.Duration
	WSWriteTimeout time.Duration
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if config.IdleThreshold, err = getSeconds("IDLE_THRESHOLD_SECONDS", 120); err != nil {
		return nil, err
	}
	if config.SessionTimeout, err = getSeconds("SESSION_TIMEOUT_SECONDS", 900); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = getSeconds("SWEEP_INTERVAL_SECONDS", 15); err != nil {
		return nil, err
	}
	if config.SnapshotInterval, err = getSeconds("SNAPSHOT_INTERVAL_SECONDS", 5); err != nil {
		return nil, err
	}
	if config.LiveCallTTL, err = getSeconds("LIVECALL_TTL_SECONDS", 120); err != nil {
		return nil, err
	}
	if config.LiveCallSweepInterval, err = getSeconds("LIVECALL_SWEEP_INTERVAL_SECONDS", 15); err != nil {
		return nil, err
	}
	if config.WSReadTimeout, err = getSeconds("WS_READ_TIMEOUT", 60); err != nil {
		return nil, err
	}
	if config.WSWriteTimeout, err = getSeconds("WS_WRITE_TIMEOUT", 10); err != nil {
		return nil, err
	}

	// Calculate WebSocket constants
	config.PongWait = config.WSReadTimeout
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = config.WSWriteTimeout
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getSeconds parses an integer seconds value from the environment
func getSeconds(key string, def int) (time.Duration, error) {
	raw := getEnv(key, strconv.Itoa(def))
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(secs) * time.Second, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
