package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Loyalty LoyaltyConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"loyalty_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// LoyaltyConfig holds the tunables of the loyalty program. Validity
// windows are threaded through explicitly; they are parameters of the
// program, not constants of the code.
type LoyaltyConfig struct {
	MaxStamps           int  `envconfig:"LOYALTY_MAX_STAMPS" default:"10"`
	ClaimValidityDays   int  `envconfig:"LOYALTY_CLAIM_VALIDITY_DAYS" default:"20"`
	ShortValidityDays   int  `envconfig:"LOYALTY_SHORT_VALIDITY_DAYS" default:"7"`
	WelcomeValidityDays int  `envconfig:"LOYALTY_WELCOME_VALIDITY_DAYS" default:"30"`
	StampCooldownDays   int  `envconfig:"LOYALTY_STAMP_COOLDOWN_DAYS" default:"7"`
	SweepIntervalHours  int  `envconfig:"LOYALTY_SWEEP_INTERVAL_HOURS" default:"24"`
	SweepAtStart        bool `envconfig:"LOYALTY_SWEEP_AT_START" default:"false"`
}

// ClaimValidity returns the expiry window for loyalty-claimed coupons.
func (c LoyaltyConfig) ClaimValidity() time.Duration {
	return time.Duration(c.ClaimValidityDays) * 24 * time.Hour
}

// ShortValidity returns the reduced expiry window used for short-lived
// promotional grants.
func (c LoyaltyConfig) ShortValidity() time.Duration {
	return time.Duration(c.ShortValidityDays) * 24 * time.Hour
}

// WelcomeValidity returns the expiry window for welcome coupons.
func (c LoyaltyConfig) WelcomeValidity() time.Duration {
	return time.Duration(c.WelcomeValidityDays) * 24 * time.Hour
}

// StampCooldown returns how long after delivery an order becomes
// stampable. The cooling-off period keeps stamping from racing returns.
func (c LoyaltyConfig) StampCooldown() time.Duration {
	return time.Duration(c.StampCooldownDays) * 24 * time.Hour
}

// SweepInterval returns the period of the stamping sweep.
func (c LoyaltyConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalHours) * time.Hour
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
