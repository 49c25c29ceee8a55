// internal/config/config.go
//
// Environment-driven configuration for the server and terminal client.
// .env files are loaded in development via godotenv; real environment
// variables always win.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable read from the environment.
type Config struct {
	Port     string
	LogLevel string

	DBDriver string // "sqlite3" (cgo) or "sqlite" (pure Go)
	DBPath   string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool

	RevealDelay     time.Duration
	LeaderboardSize int
	DailySalt       string
	SessionTTL      time.Duration
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment without touching .env files.
func FromEnv() Config {
	return Config{
		Port:     Get("PORT", "5175"),
		LogLevel: Get("LOG_LEVEL", "info"),

		DBDriver: Get("DB_DRIVER", "sqlite3"),
		DBPath:   Get("DB_PATH", "./data/app.db"),

		JWTSecret:      Get("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiresDays: Int("JWT_EXPIRES_DAYS", 14),
		CookieName:     Get("COOKIE_NAME", "matchgames_token"),
		ClientOrigin:   Get("CLIENT_ORIGIN", "http://localhost:5173"),
		Production:     os.Getenv("NODE_ENV") == "production",

		RevealDelay:     time.Duration(Int("REVEAL_DELAY_MS", 850)) * time.Millisecond,
		LeaderboardSize: Int("LEADERBOARD_SIZE", 10),
		DailySalt:       Get("DAILY_SALT", "local_dev_salt"),
		SessionTTL:      time.Duration(Int("SESSION_TTL_MIN", 60)) * time.Minute,
	}
}

// Get returns the value of k or def if unset/empty.
func Get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Int returns k parsed as an int, or def if unset or unparsable.
func Int(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
