package config

import (
	"fmt"

	"github.com/mgriffin/linkpulse/internal/clicks"
	"github.com/mgriffin/linkpulse/internal/service"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Privacy   PrivacyConfig
	Clicks    clicks.Config
	Analytics service.AnalyticsConfig
	Links     service.LinksConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port      string
	ServerURL string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string
}

// PrivacyConfig holds the salts used to hash identities and caller IPs before
// they reach the store
type PrivacyConfig struct {
	IdentitySalt string
	IPSalt       string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Verbose bool
	JSON    bool
}

// New creates a new config with the given parameters
func New(port, serverURL, dbPath, identitySalt, ipSalt string, verbose, jsonLogs, restrictPrivateHosts bool,
	clicksCfg clicks.Config, analyticsCfg service.AnalyticsConfig) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:      port,
			ServerURL: serverURL,
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Privacy: PrivacyConfig{
			IdentitySalt: identitySalt,
			IPSalt:       ipSalt,
		},
		Clicks:    clicksCfg,
		Analytics: analyticsCfg,
		Links: service.LinksConfig{
			RestrictPrivateHosts: restrictPrivateHosts,
		},
		Logging: LoggingConfig{
			Verbose: verbose,
			JSON:    jsonLogs,
		},
	}

	cfg.Clicks.IPSalt = ipSalt

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Server.ServerURL == "" {
		return fmt.Errorf("server URL cannot be empty")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.Privacy.IdentitySalt == "" || c.Privacy.IPSalt == "" {
		return fmt.Errorf("identity and ip salts cannot be empty")
	}

	if c.Clicks.Retention <= 0 {
		return fmt.Errorf("click retention must be positive, got: %v", c.Clicks.Retention)
	}

	if c.Analytics.MaxEvents <= 0 {
		return fmt.Errorf("analytics event cap must be positive, got: %d", c.Analytics.MaxEvents)
	}

	return nil
}
