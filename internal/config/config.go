package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

// SessionTTL is the fixed lifetime of a session token and its cookie.
const SessionTTL = time.Hour

// Config holds all runtime configuration values.  It is built once at
// process start and handed to constructors; nothing below cmd/ reads the
// environment on its own.
type Config struct {
	Env            string        // application environment (dev, test, production)
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign session tokens
	BcryptCost     int           // bcrypt cost for password hashing
	CookieName     string        // name of the session cookie
	AllowedOrigins []string      // CORS allow-list
	QueryTimeout   time.Duration // upper bound for a single store round trip
	LegacyNotFound bool          // render missing detail rows as 200 {"error":"Not found"}
	LogLevel       string        // zap level name
	AMQPURL        string        // broker for contact events; empty disables publishing
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads an optional .env file and then the process environment.  All
// missing required variables are reported in a single error.
func Load() (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		CookieName:     getenv("SESSION_COOKIE", "authentication"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		QueryTimeout:   envDur("QUERY_TIMEOUT", 5*time.Second),
		LegacyNotFound: envBool("NOT_FOUND_LEGACY", true),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AMQPURL:        os.Getenv("AMQP_URL"),
	}
	if len(missing) > 0 {
		return Config{}, oops.Code("CONFIG_MISSING").
			With("keys", missing).
			Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, oops.Code("CONFIG_INVALID").Errorf("invalid BCRYPT_COST: %d", cfg.BcryptCost)
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return cfg, nil
}

// DSN returns the MySQL driver data source name.
// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
func (c Config) DSN() string {
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		c.dbAuth(), c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL returns the golang-migrate URL for the same database.
func (c Config) MigrateURL() string {
	return fmt.Sprintf("mysql://%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
		c.dbAuth(), c.DBHost, c.DBPort, c.DBName)
}

func (c Config) dbAuth() string {
	if c.DBPass == "" {
		return c.DBUser
	}
	return c.DBUser + ":" + c.DBPass
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
