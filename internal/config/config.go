package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Protocol       ProtocolConfig       `yaml:"protocol"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "sqlx" or "ent"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings for the health endpoints.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// ProtocolConfig holds settlement policy settings.
type ProtocolConfig struct {
	// Admin is the identity allowed to change protocol parameters.
	Admin string `yaml:"admin"`
	// FeeBps is the protocol fee taken from each prize pool, in basis points.
	FeeBps int64 `yaml:"fee_bps"`
	// DisputeWindow is the default window during which a reported match
	// result can be contested.
	DisputeWindow time.Duration `yaml:"dispute_window"`
	// AllowDeterministicSeeding permits organizer-forced bracket generation
	// without a delivered random value. Intended for test networks only.
	AllowDeterministicSeeding bool `yaml:"allow_deterministic_seeding"`
	// SweepInterval is how often the confirm sweeper checks for reported
	// matches whose dispute window has elapsed.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// Authorities are the identities allowed to attest achievements on the
	// player passport, beyond the tournament registry itself.
	Authorities []string `yaml:"authorities"`
}

const (
	// MaxProtocolFeeBps caps the protocol fee at 10%.
	MaxProtocolFeeBps = 1000
	// MinDisputeWindow is the floor for the dispute window.
	MinDisputeWindow = 60 * time.Second
)

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "sqlx",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "bracketd",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "bracketd-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Protocol: ProtocolConfig{
			Admin:         "protocol-admin",
			FeeBps:        250,
			DisputeWindow: 10 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "ent":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\" or \"ent\"", c.Database.Driver)
	}
	if c.Protocol.FeeBps < 0 || c.Protocol.FeeBps > MaxProtocolFeeBps {
		return fmt.Errorf("protocol fee %d bps outside [0, %d]", c.Protocol.FeeBps, MaxProtocolFeeBps)
	}
	if c.Protocol.DisputeWindow < MinDisputeWindow {
		return fmt.Errorf("dispute window %s below floor %s", c.Protocol.DisputeWindow, MinDisputeWindow)
	}
	return nil
}
