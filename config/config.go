package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	ServerPort         string        `env:"SERVER_PORT" envDefault:"8080"`
	PublicBaseURL      string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	ScannerBaseURL     string        `env:"SCANNER_BASE_URL" envDefault:"http://127.0.0.1:5000"`
	ScannerTimeout     time.Duration `env:"SCANNER_TIMEOUT" envDefault:"30s"`
	ScannerMinInterval time.Duration `env:"SCANNER_MIN_INTERVAL" envDefault:"500ms"`
	StoreBackend       string        `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	RelayTTL           time.Duration `env:"RELAY_TTL" envDefault:"1h"`
	ClientTTL          time.Duration `env:"CLIENT_TTL" envDefault:"24h"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	PollTimeout        time.Duration `env:"POLL_TIMEOUT" envDefault:"30s"`
	CleanupInterval    time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
	StoreMaxSize       int           `env:"STORE_MAX_SIZE" envDefault:"1000"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON            bool          `env:"LOG_JSON" envDefault:"false"`
	FacilityDataPath   string        `env:"FACILITY_DATA_PATH"`
}

// LoadConfig reads .env (when present) and the process environment
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return Parse()
}

// Parse reads the configuration from the process environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks combinations the env tags cannot express
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: expected %q or %q", c.StoreBackend, StoreBackendMemory, StoreBackendPostgres)
	}

	if c.PollInterval > c.PollTimeout {
		return fmt.Errorf("POLL_INTERVAL (%v) must not exceed POLL_TIMEOUT (%v)", c.PollInterval, c.PollTimeout)
	}

	return nil
}

// CallbackURL is the address the ML backend calls back once analysis finishes
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/api/process-callback"
}

// Unified maps the environment onto the shared configuration and fills defaults
func (c *Config) Unified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()

	unified.Scanner.BaseURL = c.ScannerBaseURL
	unified.Scanner.HTTPRequestTimeout = c.ScannerTimeout
	unified.Scanner.RequestRateLimit = c.ScannerMinInterval
	unified.Lookup.BaseURL = c.PublicBaseURL
	unified.Store.Backend = c.StoreBackend
	unified.Store.RelayTTL = c.RelayTTL
	unified.Store.ClientTTL = c.ClientTTL
	unified.Store.MaxSize = c.StoreMaxSize
	unified.Store.CleanupInterval = c.CleanupInterval
	unified.Polling.Interval = c.PollInterval
	unified.Polling.Timeout = c.PollTimeout
	unified.Logging.Level = c.LogLevel
	unified.Logging.EnableJSON = c.LogJSON

	unified.ValidateAndApplyDefaults()
	return unified
}
