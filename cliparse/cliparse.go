package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort        = 3318
	defaultDatabaseURL = "file:scanpoint.db"
	defaultAPIBaseURL  = "http://localhost:8000"
	defaultAPIPrefix   = "volunteer"
	defaultEnvFile     = ".env"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	StationKeySalt string

	// Event backend
	APIBaseURL string
	APIPrefix  string
	AuthToken  string

	// Optional; live counts are disabled without it
	RedisURL string

	Cooldown      time.Duration
	SubmitTimeout time.Duration
	VIPDuration   time.Duration

	// Production marks cookies Secure
	Production bool
}

// ParseFlags validates flags and fills the rest from the environment.
// A .env file is read first; it never overrides variables already set.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var envFile string

	fs := flag.NewFlagSet("scanpoint", flag.ContinueOnError)

	fs.StringVar(&envFile, "env", "", "Path to a .env file (default .env if present)")

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.APIBaseURL, "api", "", "Event backend base URL")
	fs.StringVar(&cfg.APIPrefix, "api-prefix", "", "Event backend path prefix for scan endpoints")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for live counts")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.StationKeySalt, "station-salt", "", "Station key salt (prefer env)")
	fs.StringVar(&cfg.AuthToken, "auth-token", "", "Backend auth-token header (prefer env)")

	// Workflow timing
	fs.DurationVar(&cfg.Cooldown, "cooldown", 0, "Camera cooldown between stop and restart")
	fs.DurationVar(&cfg.SubmitTimeout, "submit-timeout", 0, "Check-in request timeout")
	fs.DurationVar(&cfg.VIPDuration, "vip-duration", 0, "How long the VIP highlight stays up")

	fs.BoolVar(&cfg.Production, "production", false, "Production mode (secure cookies)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = defaultPort
		}
	}

	cfg.DatabaseURL = firstNonEmpty(cfg.DatabaseURL, os.Getenv("DATABASE_URL"), defaultDatabaseURL)
	cfg.DatabaseType = firstNonEmpty(cfg.DatabaseType, os.Getenv("DATABASE_TYPE"), "sqlite")
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("database type must be sqlite or postgres, got %q", cfg.DatabaseType)
	}

	cfg.APIBaseURL = firstNonEmpty(cfg.APIBaseURL, os.Getenv("API_BASE_URL"), defaultAPIBaseURL)
	cfg.APIPrefix = firstNonEmpty(cfg.APIPrefix, os.Getenv("API_PREFIX"), defaultAPIPrefix)
	cfg.AuthToken = firstNonEmpty(cfg.AuthToken, os.Getenv("AUTH_TOKEN"))
	cfg.RedisURL = firstNonEmpty(cfg.RedisURL, os.Getenv("REDIS_URL"))

	var err error
	if cfg.Cooldown, err = durationEnv(cfg.Cooldown, "SCAN_COOLDOWN"); err != nil {
		return Config{}, err
	}
	if cfg.SubmitTimeout, err = durationEnv(cfg.SubmitTimeout, "SUBMIT_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.VIPDuration, err = durationEnv(cfg.VIPDuration, "VIP_DURATION"); err != nil {
		return Config{}, err
	}

	if !cfg.Production {
		cfg.Production = os.Getenv("APP_ENV") == "production"
	}

	// Secrets - MUST be provided
	if cfg.StationKeySalt == "" {
		cfg.StationKeySalt = os.Getenv("STATION_KEY_SALT")
	}
	if cfg.StationKeySalt == "" {
		return Config{}, errors.New("STATION_KEY_SALT required")
	}

	return cfg, nil
}

// loadEnvFile reads the named file, or .env when none is named.
// Only an explicitly named file has to exist.
func loadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", defaultEnvFile, err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func durationEnv(v time.Duration, key string) (time.Duration, error) {
	if v != 0 {
		return v, nil
	}
	s := os.Getenv(key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
