package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	AllowedOrigins  []string      // CORS origins for the status API (empty = same-origin only)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Remote API
	APIBaseURL string        // ex: "https://api.example.com/api"
	APIToken   string        // optional, static bearer token
	TokenFile  string        // optional, file holding the bearer token (takes precedence)
	APITimeout time.Duration // per-request timeout (default: 15s)
	UserAgent  string

	// Engines
	BookingsCacheWindow time.Duration // fetch window for bookings (default: 30s)
	ListingsPageSize    int           // page size requested by the aggregator (default: 100)
	RefreshSchedule     string        // cron spec for background bookings refresh (default: @every 5m)
	RulesFile           string        // optional YAML overlay for extraction rules

	// Durable store
	StoreDriver string // "sqlite" | "redis" | "memory"
	SQLitePath  string // ex: "tripsync.db"

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
}

// Load reads the configuration from the environment, after loading an
// optional .env file (TRIPSYNC_ENV_FILE, default ".env"). Variables already
// set in the environment win over the file.
func Load() *Config {
	loadDotenv(getenv("TRIPSYNC_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("TRIPSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("TRIPSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		AllowedOrigins:  splitAndTrim(getenv("TRIPSYNC_CORS_ORIGINS", "")),

		// Logging
		LogLevel:  getenv("TRIPSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("TRIPSYNC_PRETTY_LOG", true),

		// Remote API
		APIBaseURL: strings.TrimRight(requireEnv("TRIPSYNC_API_BASE_URL"), "/"),
		APIToken:   getenv("TRIPSYNC_API_TOKEN", ""),
		TokenFile:  getenv("TRIPSYNC_TOKEN_FILE", ""),
		APITimeout: mustDuration("TRIPSYNC_API_TIMEOUT", 15*time.Second),
		UserAgent:  getenv("TRIPSYNC_USER_AGENT", "tripsync"),

		// Engines
		BookingsCacheWindow: mustDuration("TRIPSYNC_BOOKINGS_CACHE_WINDOW", 30*time.Second),
		ListingsPageSize:    getenvInt("TRIPSYNC_LISTINGS_PAGE_SIZE", 100),
		RefreshSchedule:     getenv("TRIPSYNC_REFRESH_SCHEDULE", "@every 5m"),
		RulesFile:           getenv("TRIPSYNC_RULES_FILE", ""),

		// Durable store
		StoreDriver: parseStoreDriver(getenv("TRIPSYNC_STORE_DRIVER", StoreSQLite)),
		SQLitePath:  getenv("TRIPSYNC_SQLITE_PATH", "tripsync.db"),

		// Redis settings
		RedisUser:             getenv("TRIPSYNC_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("TRIPSYNC_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("TRIPSYNC_REDIS_PASSWORD", ""),
		RedisDT:               mustDuration("TRIPSYNC_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("TRIPSYNC_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("TRIPSYNC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("TRIPSYNC_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("TRIPSYNC_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("TRIPSYNC_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("TRIPSYNC_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("TRIPSYNC_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("TRIPSYNC_REDIS_WARN_THRESHOLD", 3),
	}

	// Redis is only mandatory when it backs the store
	if cfg.StoreDriver == StoreRedis {
		cfg.RedisAddr = requireEnv("TRIPSYNC_REDIS_ADDR")
		cfg.RedisDB = requireEnvInt("TRIPSYNC_REDIS_DB")
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: TRIPSYNC_REDIS_PASSWORD is required when TRIPSYNC_REDIS_PASSWORD_REQUIRED=true")
		}
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.APIToken != "" {
		out.APIToken = "***REDACTED***"
	}
	if out.RedisPassword != "" {
		out.RedisPassword = "***REDACTED***"
	}
	if out.RedisUser != "" {
		out.RedisUser = "***REDACTED***"
	}
	return out
}

func loadDotenv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("❌ FATAL: Invalid env file %s: %v", path, err))
	}
}

func parseStoreDriver(v string) string {
	switch d := strings.ToLower(strings.TrimSpace(v)); d {
	case StoreSQLite, StoreRedis, StoreMemory:
		return d
	default:
		panic(fmt.Sprintf("❌ FATAL: Unknown store driver %q (want sqlite, redis or memory)", v))
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := requireEnv(key)
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
