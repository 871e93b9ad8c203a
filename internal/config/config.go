package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogMode  string

	DBDriver string
	DBDSN    string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	MaxDevicesStudent int
	MaxDevicesAdmin   int

	SessionCleanupInterval time.Duration
	AttemptExpiryInterval  time.Duration

	// Empty RedisAddr disables login throttling.
	RedisAddr        string
	LoginMaxAttempts int
	LoginCooldown    time.Duration

	CORSOrigins          []string
	CORSAllowCredentials bool
}

// Load reads an optional .env file and then the process environment.
// A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  envOr("LOG_MODE", "dev"),

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AccessSecret:  envOr("JWT_ACCESS_SECRET", "dev-access-secret-change-me"),
		RefreshSecret: envOr("JWT_REFRESH_SECRET", "dev-refresh-secret-change-me"),
		AccessTTL:     envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:    envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		MaxDevicesStudent: envInt("MAX_DEVICES_STUDENT", 3),
		MaxDevicesAdmin:   envInt("MAX_DEVICES_ADMIN", 10),

		SessionCleanupInterval: envDuration("SESSION_CLEANUP_INTERVAL", time.Hour),
		AttemptExpiryInterval:  envDuration("ATTEMPT_EXPIRY_INTERVAL", time.Minute),

		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		LoginMaxAttempts: envInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginCooldown:    envDuration("LOGIN_COOLDOWN", 15*time.Minute),

		CORSOrigins:          csvOr("CORS_ORIGINS", "http://localhost:3000"),
		CORSAllowCredentials: envBool("CORS_ALLOW_CREDENTIALS", true),
	}
}

// Validate rejects configurations the token and session layers cannot run with.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.MaxDevicesStudent < 1 || c.MaxDevicesAdmin < 1 {
		return errors.New("config: device limits must be at least 1")
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return errors.New("config: DB_DRIVER must be sqlite or postgres")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
