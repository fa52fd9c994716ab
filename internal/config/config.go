// Package config loads the runtime configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	SQLitePath     string
	ClerkSecretKey string
	RendererURL    string
	FontCSSURLs    []string
	// PublicBaseURL serves root-relative asset paths such as the default logo.
	PublicBaseURL  string

	HistoryDebounce    time.Duration
	AutosaveDebounce   time.Duration
	SessionIdleTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	MetricsUser string
	MetricsPass string
}

const (
	defaultPort           = "8080"
	defaultSQLitePath     = "data/studio.db"
	defaultHistory        = 800 * time.Millisecond
	defaultAutosave       = 1000 * time.Millisecond
	defaultIdleTimeout    = 30 * time.Minute
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 30
	defaultAllowedOrigin  = "*"
)

// Load reads .env when present, then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading configuration from the environment")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset or malformed.
func FromEnv() Config {
	return Config{
		Port:           getEnv("PORT", defaultPort),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", defaultSQLitePath),
		ClerkSecretKey: os.Getenv("CLERK_SECRET_KEY"),
		RendererURL:    os.Getenv("RENDERER_URL"),
		FontCSSURLs:    splitList(os.Getenv("FONT_CSS_URLS")),
		PublicBaseURL:  strings.TrimSuffix(os.Getenv("PUBLIC_BASE_URL"), "/"),

		HistoryDebounce:    getDuration("HISTORY_DEBOUNCE", defaultHistory),
		AutosaveDebounce:   getDuration("AUTOSAVE_DEBOUNCE", defaultAutosave),
		SessionIdleTimeout: getDuration("SESSION_IDLE_TIMEOUT", defaultIdleTimeout),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", defaultRateLimitRPS),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", defaultRateLimitBurst),
		AllowedOrigins: origins(os.Getenv("ALLOWED_ORIGINS")),

		MetricsUser: os.Getenv("METRICS_USER"),
		MetricsPass: os.Getenv("METRICS_PASS"),
	}
}

// CloudEnabled reports whether a PostgreSQL database is configured.
func (c Config) CloudEnabled() bool { return c.DatabaseURL != "" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// plain integers are milliseconds
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func origins(raw string) []string {
	out := splitList(raw)
	if len(out) == 0 {
		return []string{defaultAllowedOrigin}
	}
	return out
}
