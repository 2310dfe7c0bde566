package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig groups the MySQL connection settings.
type DBConfig struct {
	User string
	Pass string // optional
	Host string
	Port string
	Name string
}

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; optional groups carry their own loaders.
type Config struct {
	Env            string         // application environment (e.g. "dev", "prod")
	Port           string         // HTTP port to listen on
	DB             DBConfig       // database connection
	JWTSecret      string         // secret used to sign JWTs
	AccessTTLMin   int            // access token time‑to‑live in minutes
	RefreshTTLDays int            // refresh token time‑to‑live in days
	BcryptCost     int            // bcrypt cost for password hashing
	Location       *time.Location // farm calendar used to decide what "today" is
	CORSOrigins    []string       // allowed browser origins for the frontend
	Redis          RedisConfig
	Cache          CacheConfig
	RateLimit      RateLimitConfig
	AMQP           AMQPConfig
	Storage        StorageConfig
}

// Load reads a .env file when one exists, then builds a Config from the
// environment.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),
		DB: DBConfig{
			User: must("DB_USER"),
			Pass: os.Getenv("DB_PASS"),
			Host: must("DB_HOST"),
			Port: must("DB_PORT"),
			Name: must("DB_NAME"),
		},
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		Location:       loadLocation(envStr("APP_TIMEZONE", "UTC")),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
		Redis:          LoadRedisConfig(),
		Cache:          LoadCacheConfig(),
		RateLimit:      LoadRateLimitConfig(),
		AMQP:           LoadAMQPConfig(),
		Storage:        LoadStorageConfig(),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("config: unknown APP_TIMEZONE %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
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

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
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
