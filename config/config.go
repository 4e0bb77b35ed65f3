package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers accepted in STORE_DRIVER
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreDynamo = "dynamodb"
)

// Config holds the server settings read from the environment
type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	StoreDriver        string        `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath         string        `env:"SQLITE_PATH" envDefault:"pairing.db"`
	AWSRegion          string        `env:"AWS_REGION"`
	ClientsTable       string        `env:"DYNAMO_CLIENTS_TABLE" envDefault:"Clients"`
	PairingsTable      string        `env:"DYNAMO_PAIRINGS_TABLE" envDefault:"Pairings"`
	S3Bucket           string        `env:"S3_BUCKET_NAME"`
	MatchRetryInterval time.Duration `env:"MATCH_RETRY_INTERVAL" envDefault:"1s"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	EnableSocket       bool          `env:"ENABLE_SOCKET" envDefault:"true"`
}

// Load parses the process environment into a Config and checks it
func Load() (Config, error) {
	return LoadFrom(env.ToMap(os.Environ()))
}

// LoadFrom parses the given environment map into a Config
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite, StoreDynamo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
	}
	if c.MatchRetryInterval <= 0 {
		return fmt.Errorf("MATCH_RETRY_INTERVAL must be positive, got %s", c.MatchRetryInterval)
	}
	return nil
}
