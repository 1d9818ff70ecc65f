package config

import (
	"os"
	"testing"
	"time"

	"github.com/morezero/beacon-dapp/pkg/beacon"
)

var configEnvVars = []string{
	"COMMS_URL", "SERVICE_NAME",
	"BEACON_REQUEST_SUBJECT", "BEACON_RESPONSE_SUBJECT", "BEACON_EVENT_SUBJECT_PREFIX",
	"BEACON_APP_NAME", "BEACON_APP_ICON", "BEACON_WIRE_FORMAT", "BEACON_DEFAULT_NETWORK",
	"BEACON_RATE_LIMIT", "BEACON_RATE_LIMIT_WINDOW", "BEACON_REQUEST_TIMEOUT",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"HTTP_PORT", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range configEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://127.0.0.1:4222" {
		t.Errorf("config:config_test - COMMSURL = %q, want %q", cfg.COMMSURL, "nats://127.0.0.1:4222")
	}
	if cfg.COMMSName != "beacon-dapp" {
		t.Errorf("config:config_test - COMMSName = %q, want %q", cfg.COMMSName, "beacon-dapp")
	}
	if cfg.RequestSubject != "beacon.wallet.requests" {
		t.Errorf("config:config_test - RequestSubject = %q", cfg.RequestSubject)
	}
	if cfg.ResponseSubject != "" {
		t.Errorf("config:config_test - ResponseSubject = %q, want empty", cfg.ResponseSubject)
	}
	if cfg.WireFormat != "base58" {
		t.Errorf("config:config_test - WireFormat = %q, want base58", cfg.WireFormat)
	}
	if cfg.RateLimit != 2 || cfg.RateLimitWindow != 5*time.Second {
		t.Errorf("config:config_test - rate limit = %d per %v, want 2 per 5s", cfg.RateLimit, cfg.RateLimitWindow)
	}
	if cfg.RequestTimeout != 0 {
		t.Errorf("config:config_test - RequestTimeout = %v, want 0", cfg.RequestTimeout)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("config:config_test - DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Network().Type != beacon.NetworkMainnet {
		t.Errorf("config:config_test - Network() = %+v, want mainnet", cfg.Network())
	}
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("config:config_test - defaults should validate: %v", err)
	}
}

func TestLoadConfig_CustomValues(t *testing.T) {
	clearEnv()
	defer clearEnv()

	os.Setenv("COMMS_URL", "nats://custom:4222")
	os.Setenv("BEACON_RESPONSE_SUBJECT", "dapp.inbox")
	os.Setenv("BEACON_WIRE_FORMAT", "json")
	os.Setenv("BEACON_DEFAULT_NETWORK", "DELPHINET")
	os.Setenv("BEACON_RATE_LIMIT", "10")
	os.Setenv("BEACON_RATE_LIMIT_WINDOW", "1m")
	os.Setenv("BEACON_REQUEST_TIMEOUT", "90s")
	os.Setenv("DATABASE_URL", "postgres://test:test@db:5432/beacon")
	os.Setenv("RUN_MIGRATIONS", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if cfg.COMMSURL != "nats://custom:4222" {
		t.Errorf("config:config_test - COMMSURL = %q", cfg.COMMSURL)
	}
	if cfg.ResponseSubject != "dapp.inbox" {
		t.Errorf("config:config_test - ResponseSubject = %q", cfg.ResponseSubject)
	}
	if cfg.RateLimit != 10 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("config:config_test - rate limit = %d per %v", cfg.RateLimit, cfg.RateLimitWindow)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Errorf("config:config_test - RequestTimeout = %v", cfg.RequestTimeout)
	}
	if !cfg.RunMigrations {
		t.Errorf("config:config_test - RunMigrations = false, want true")
	}
	if cfg.Network().Type != beacon.NetworkDelphinet {
		t.Errorf("config:config_test - Network() = %+v, want delphinet", cfg.Network())
	}
	if err := cfg.ValidateForRun(); err != nil {
		t.Errorf("config:config_test - ValidateForRun failed: %v", err)
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv()
	defer clearEnv()
	os.Setenv("BEACON_RATE_LIMIT_WINDOW", "soon")

	if _, err := LoadConfig(); err == nil {
		t.Errorf("config:config_test - expected error for invalid duration")
	}
}

func TestValidateForRun(t *testing.T) {
	valid := func() *Config {
		return &Config{
			COMMSURL:        "nats://127.0.0.1:4222",
			RequestSubject:  "beacon.wallet.requests",
			WireFormat:      "json",
			DefaultNetwork:  "mainnet",
			RateLimit:       2,
			RateLimitWindow: 5 * time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing comms url", func(c *Config) { c.COMMSURL = "" }, true},
		{"missing request subject", func(c *Config) { c.RequestSubject = "" }, true},
		{"unknown wire format", func(c *Config) { c.WireFormat = "xml" }, true},
		{"custom network needs details", func(c *Config) { c.DefaultNetwork = "custom" }, true},
		{"unknown network", func(c *Config) { c.DefaultNetwork = "ghostnet-x" }, true},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }, true},
		{"zero window", func(c *Config) { c.RateLimitWindow = 0 }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.ValidateForRun()
			if (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForRun() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateForDB(t *testing.T) {
	if err := (&Config{}).ValidateForDB(); err == nil {
		t.Errorf("config:config_test - expected error without DATABASE_URL")
	}
	if err := (&Config{DatabaseURL: "postgres://x"}).ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}

func TestConfig_Network(t *testing.T) {
	tests := []struct {
		value string
		want  beacon.NetworkType
	}{
		{"", beacon.NetworkMainnet},
		{"mainnet", beacon.NetworkMainnet},
		{"DELPHINET", beacon.NetworkDelphinet},
		{"carthagenet", beacon.NetworkCarthagenet},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := &Config{DefaultNetwork: tt.value}
			if got := cfg.Network(); got.Type != tt.want {
				t.Errorf("config:config_test - Network() for %q = %+v, want %s", tt.value, got, tt.want)
			}
		})
	}
}
