// Package config loads service configuration from environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings, with local-development defaults.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"sponsorreg"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	// Resilient executor tuning. The defaults accommodate a serverless
	// Postgres that suspends itself after inactivity.
	DBMaxRetries   int           `env:"DB_MAX_RETRIES" envDefault:"3"`
	DBRetryDelay   time.Duration `env:"DB_RETRY_DELAY" envDefault:"2500ms"`
	DBQueryTimeout time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"30s"`

	// AdminJWTSecret signs/verifies admin bearer tokens. Empty disables
	// the admin routes entirely.
	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}
