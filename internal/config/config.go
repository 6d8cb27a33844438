// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// AllowedOrigins lists the browser origins permitted to call the API
	// with credentials. The dashboard SPA is served from a different origin
	// in every deployment variant, so CORS is load-bearing here.
	AllowedOrigins []string

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string

	// Database holds MySQL connection settings for the users table.
	Database DatabaseConfig

	// Redis holds optional Redis connection settings. When unset, the
	// lockout counters and the upstream response cache stay in-process.
	Redis RedisConfig

	// Auth holds token signing and login throttling settings.
	Auth AuthConfig

	// OMDb holds upstream metadata provider settings.
	OMDb OMDbConfig
}

// DatabaseConfig holds MySQL connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MySQL address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MySQL username (default: "reelbase").
	User string

	// Password is the MySQL password (default: "reelbase").
	Password string

	// Name is the database name (default: "reelbase").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// Host/User/Password/Name fields using the driver's Config.FormatDSN()
// to safely handle special characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
// Allows users to set DB_HOST=mydb (gets :3306) or DB_HOST=mydb:3307 (as-is).
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	// Empty means no Redis: shared state stays in process memory. Set it
	// when running more than one instance so lockouts and the upstream
	// cache are shared.
	URL string
}

// Enabled reports whether a Redis backing store was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig holds token signing and login throttling settings.
type AuthConfig struct {
	// Secret signs access tokens (HMAC-SHA256). Must be 32+ chars in production.
	Secret string

	// RefreshSecret signs refresh tokens. Falls back to Secret when unset;
	// the token_type claim still keeps the two token kinds apart.
	RefreshSecret string

	// AccessTokenTTL is how long access tokens stay valid (default: 24h).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long refresh tokens stay valid (default: 168h).
	RefreshTokenTTL time.Duration

	// LockoutThreshold is the number of consecutive failed logins for one
	// identifier before a lockout kicks in (default: 3).
	LockoutThreshold int

	// LockoutDuration is how long a locked identifier must wait (default: 30s).
	LockoutDuration time.Duration
}

// OMDbConfig holds upstream movie metadata provider settings.
type OMDbConfig struct {
	// BaseURL is the provider endpoint (default: "https://www.omdbapi.com/").
	BaseURL string

	// APIKey authenticates requests to the provider. Required.
	APIKey string

	// CacheTTL is how long a successful upstream response stays fresh (default: 1h).
	CacheTTL time.Duration

	// Timeout bounds each upstream HTTP call (default: 10s).
	Timeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: splitOrigins(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "reelbase"),
			Password:        getEnv("DB_PASSWORD", "reelbase"),
			Name:            getEnv("DB_NAME", "reelbase"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},

		Auth: AuthConfig{
			Secret:           getEnv("JWT_SECRET", ""),
			RefreshSecret:    getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenTTL:   getEnvDuration("JWT_EXPIRY", 24*time.Hour),
			RefreshTokenTTL:  getEnvDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
			LockoutThreshold: getEnvInt("LOGIN_LOCKOUT_THRESHOLD", 3),
			LockoutDuration:  getEnvDuration("LOGIN_LOCKOUT_DURATION", 30*time.Second),
		},

		OMDb: OMDbConfig{
			BaseURL:  getEnv("OMDB_BASE_URL", "https://www.omdbapi.com/"),
			APIKey:   getEnv("OMDB_API_KEY", ""),
			CacheTTL: getEnvDuration("OMDB_CACHE_TTL", time.Hour),
			Timeout:  getEnvDuration("OMDB_TIMEOUT", 10*time.Second),
		},
	}

	// Validate required fields in production. Case-insensitive check catches
	// common variants like "Production", "prod", etc.
	envLower := strings.ToLower(cfg.Env)
	if envLower == "production" || envLower == "prod" {
		if cfg.Auth.Secret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(cfg.Auth.Secret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if cfg.OMDb.APIKey == "" {
			return nil, fmt.Errorf("OMDB_API_KEY is required in production")
		}
	}

	// Provide a dev-only default secret so local dev works without .env.
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = "dev-secret-key-do-not-use-in-production!!"
	}
	if cfg.Auth.RefreshSecret == "" {
		cfg.Auth.RefreshSecret = cfg.Auth.Secret
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// splitOrigins parses a comma-separated origin list, trimming whitespace.
func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "24h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
