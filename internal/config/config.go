// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/teamctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends
// --------------------------------------------------------------------------

const (
	GatewayMemory = "memory"
	GatewayREST   = "rest"
	GatewayPG     = "pg"
	GatewaySQLite = "sqlite"
)

// --------------------------------------------------------------------------
// Attendance increment strategies
// --------------------------------------------------------------------------

const (
	// IncrementSnapshot reads the counter from the published snapshot and
	// writes an absolute value.
	IncrementSnapshot = "snapshot"
	// IncrementSerialized re-reads players under per-player locks before
	// writing.
	IncrementSerialized = "serialized"
	// IncrementAtomic asks the store to add 1 server-side.
	IncrementAtomic = "atomic"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables.
// --------------------------------------------------------------------------

type Config struct {
	// Store
	Gateway string // memory, rest, pg, sqlite

	// Postgres (GATEWAY=pg, migrations, change feed)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	MigrateOnStart bool

	// SQLite (GATEWAY=sqlite)
	SQLitePath string

	// Supabase / PostgREST (GATEWAY=rest)
	SupabaseURL           string
	SupabaseAnonKey       string
	SupabaseJWTSecret     string
	RESTRequestsPerMinute int
	RESTTimeout           time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Synchronizer
	AttendanceIncrementMode string
	AttendanceWorkers       int
	ResyncInterval          time.Duration
	DegradedRetryInterval   time.Duration

	// Messaging
	NATSURL string

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Gateway: strings.ToLower(envOr("GATEWAY", GatewayMemory)),

		DatabaseURL:    envOr("DATABASE_URL", envOr("SUPABASE_DB_URL", "")),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		MigrateOnStart: envBool("MIGRATE_ON_START", false),

		SQLitePath: envOr("SQLITE_PATH", "gbfc.db"),

		SupabaseURL:           envOr("SUPABASE_URL", ""),
		SupabaseAnonKey:       envOr("SUPABASE_ANON_KEY", ""),
		SupabaseJWTSecret:     envOr("SUPABASE_JWT_SECRET", ""),
		RESTRequestsPerMinute: envInt("REST_REQUESTS_PER_MINUTE", 600),
		RESTTimeout:           time.Duration(envInt("REST_TIMEOUT_SECONDS", 30)) * time.Second,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		AttendanceIncrementMode: strings.ToLower(envOr("ATTENDANCE_INCREMENT_MODE", IncrementSnapshot)),
		AttendanceWorkers:       envInt("ATTENDANCE_WORKERS", 4),
		ResyncInterval:          time.Duration(envInt("RESYNC_INTERVAL_SECONDS", 300)) * time.Second,
		DegradedRetryInterval:   time.Duration(envInt("DEGRADED_RETRY_SECONDS", 30)) * time.Second,

		NATSURL: envOr("NATS_URL", ""),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Gateway {
	case GatewayMemory, GatewaySQLite:
	case GatewayREST:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY must be set for GATEWAY=rest")
		}
	case GatewayPG:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for GATEWAY=pg")
		}
	default:
		return fmt.Errorf("unknown GATEWAY %q (want memory, rest, pg or sqlite)", c.Gateway)
	}

	switch c.AttendanceIncrementMode {
	case IncrementSnapshot, IncrementSerialized, IncrementAtomic:
	default:
		return fmt.Errorf("unknown ATTENDANCE_INCREMENT_MODE %q", c.AttendanceIncrementMode)
	}
	if c.AttendanceWorkers < 1 {
		c.AttendanceWorkers = 1
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
