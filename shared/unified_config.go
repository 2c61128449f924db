package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UnifiedConfiguration holds all configuration parameters for the entire application
type UnifiedConfiguration struct {
	Scanner  ServiceConfig  `json:"scanner"`
	Lookup   ServiceConfig  `json:"lookup"`
	Database DatabaseConfig `json:"database"`
	Store    StoreConfig    `json:"store"`
	Polling  PollingConfig  `json:"polling"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServiceConfig holds configuration of one outbound HTTP upstream
type ServiceConfig struct {
	BaseURL            string        `json:"base_url"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	MaxRetryAttempts   int           `json:"max_retries"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// StoreConfig holds result store configuration.
// RelayTTL applies to the server-side copy written by the callback receiver,
// ClientTTL to the durable kiosk-side copy.
type StoreConfig struct {
	Backend         string        `json:"backend"`
	RelayTTL        time.Duration `json:"relay_ttl"`
	ClientTTL       time.Duration `json:"client_ttl"`
	MaxSize         int           `json:"max_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// PollingConfig holds result poller configuration
type PollingConfig struct {
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	EnableJSON  bool   `json:"enable_json"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns production-ready default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Scanner: ServiceConfig{
			BaseURL:            "http://127.0.0.1:5000",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   500 * time.Millisecond,
			MaxRetryAttempts:   0, // a capture is not idempotent, never replay it
		},
		Lookup: ServiceConfig{
			BaseURL:            "http://localhost:8080",
			HTTPRequestTimeout: 5 * time.Second,
			MaxRetryAttempts:   0,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Store: StoreConfig{
			Backend:         "memory",
			RelayTTL:        1 * time.Hour,
			ClientTTL:       24 * time.Hour,
			MaxSize:         1000,
			CleanupInterval: 5 * time.Minute,
		},
		Polling: PollingConfig{
			Interval: 2 * time.Second,
			Timeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			EnableJSON:  false,
			ServiceName: "fingerprint-kiosk",
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")
	defaults := NewDefaultUnifiedConfiguration()

	if c.Scanner.BaseURL == "" {
		c.Scanner.BaseURL = defaults.Scanner.BaseURL
		logger.Debug("Applied default Scanner.BaseURL")
	}

	if c.Scanner.HTTPRequestTimeout <= 0 {
		c.Scanner.HTTPRequestTimeout = defaults.Scanner.HTTPRequestTimeout
		logger.Debug("Applied default Scanner.HTTPRequestTimeout")
	}

	if c.Scanner.RequestRateLimit < 0 {
		c.Scanner.RequestRateLimit = defaults.Scanner.RequestRateLimit
		logger.Debug("Applied default Scanner.RequestRateLimit")
	}

	if c.Lookup.BaseURL == "" {
		c.Lookup.BaseURL = defaults.Lookup.BaseURL
		logger.Debug("Applied default Lookup.BaseURL")
	}

	if c.Lookup.HTTPRequestTimeout <= 0 {
		c.Lookup.HTTPRequestTimeout = defaults.Lookup.HTTPRequestTimeout
		logger.Debug("Applied default Lookup.HTTPRequestTimeout")
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = defaults.Database.ConnMaxLifetime
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	if c.Database.ConnMaxIdleTime <= 0 {
		c.Database.ConnMaxIdleTime = defaults.Database.ConnMaxIdleTime
		logger.Debug("Applied default Database.ConnMaxIdleTime")
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = defaults.Database.PingTimeout
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
		logger.Debug("Applied default Store.Backend")
	}

	// RelayTTL <= 0 is valid and means the relay copy lives until it is read or purged
	if c.Store.ClientTTL <= 0 {
		c.Store.ClientTTL = defaults.Store.ClientTTL
		logger.Debug("Applied default Store.ClientTTL")
	}

	if c.Store.MaxSize <= 0 {
		c.Store.MaxSize = defaults.Store.MaxSize
		logger.Debug("Applied default Store.MaxSize")
	}

	if c.Store.CleanupInterval <= 0 {
		c.Store.CleanupInterval = defaults.Store.CleanupInterval
		logger.Debug("Applied default Store.CleanupInterval")
	}

	if c.Polling.Interval <= 0 {
		c.Polling.Interval = defaults.Polling.Interval
		logger.Debug("Applied default Polling.Interval")
	}

	if c.Polling.Timeout <= 0 {
		c.Polling.Timeout = defaults.Polling.Timeout
		logger.Debug("Applied default Polling.Timeout")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = defaults.Logging.ServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
