// Package config provides client configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/beacon-dapp/pkg/beacon"
	"github.com/morezero/beacon-dapp/pkg/commsutil"
)

const logPrefix = "config:LoadConfig"

// Config holds beacon-dapp configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"beacon-dapp"`

	// Subjects (empty response subject = per-client inbox derived from the senderId)
	RequestSubject     string `envconfig:"BEACON_REQUEST_SUBJECT" default:"beacon.wallet.requests"`
	ResponseSubject    string `envconfig:"BEACON_RESPONSE_SUBJECT"`
	EventSubjectPrefix string `envconfig:"BEACON_EVENT_SUBJECT_PREFIX" default:"beacon.events"`

	// App metadata sent with permission requests
	AppName string `envconfig:"BEACON_APP_NAME" default:"beacon-dapp"`
	AppIcon string `envconfig:"BEACON_APP_ICON"`

	WireFormat     string `envconfig:"BEACON_WIRE_FORMAT" default:"base58"`
	DefaultNetwork string `envconfig:"BEACON_DEFAULT_NETWORK" default:"mainnet"`

	// Rate limiting: RateLimit requests per RateLimitWindow, per request kind
	RateLimit       int           `envconfig:"BEACON_RATE_LIMIT" default:"2"`
	RateLimitWindow time.Duration `envconfig:"BEACON_RATE_LIMIT_WINDOW" default:"5s"`

	// Timeouts (0 = wait until the wallet answers)
	RequestTimeout time.Duration `envconfig:"BEACON_REQUEST_TIMEOUT" default:"0"`

	// Database (empty = in-memory store)
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"migrations"`

	// HTTP side server (0 = disabled)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Network returns the configured default network.
func (c *Config) Network() beacon.Network {
	n := beacon.Network{Type: beacon.NetworkType(strings.ToLower(c.DefaultNetwork))}
	return n.OrDefault()
}

// ValidateForRun checks required config when running the client.
func (c *Config) ValidateForRun() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required", logPrefix)
	}
	if c.RequestSubject == "" {
		return fmt.Errorf("%s - BEACON_REQUEST_SUBJECT is required", logPrefix)
	}
	if _, err := commsutil.NewSerializer(c.WireFormat); err != nil {
		return fmt.Errorf("%s - BEACON_WIRE_FORMAT: %w", logPrefix, err)
	}
	switch beacon.NetworkType(strings.ToLower(c.DefaultNetwork)) {
	case beacon.NetworkMainnet, beacon.NetworkCarthagenet, beacon.NetworkDelphinet:
	default:
		return fmt.Errorf("%s - BEACON_DEFAULT_NETWORK %q is not a known network", logPrefix, c.DefaultNetwork)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("%s - BEACON_RATE_LIMIT must be positive", logPrefix)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("%s - BEACON_RATE_LIMIT_WINDOW must be positive", logPrefix)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%s - BEACON_REQUEST_TIMEOUT must not be negative", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
