// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the environment-derived settings shared by all three binaries.
// Not every field applies to every binary: IndexerName is read by the
// harvester, ProgramID by the decoder, APIHost/APIPort by the read API.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// RPCURL is the chain RPC endpoint consumed by internal/rpcclient.
	RPCURL string

	// IndexerName selects the cursor row a harvester process advances.
	IndexerName string

	// ProgramID selects the marketplace program a decoder process targets.
	ProgramID string

	// StartupDelay is how long a binary sleeps before starting its main loop.
	StartupDelay time.Duration

	// APIHost and APIPort configure the read API's bind address.
	APIHost string
	APIPort int

	// LogLevel is passed straight to logging.ParseLevel.
	LogLevel string
}

// Load reads configuration from the environment, optionally loading a .env
// file first. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RPCURL:      os.Getenv("RPC_URL"),
		IndexerName: os.Getenv("INDEXER_NAME"),
		ProgramID:   os.Getenv("PROGRAM_ID"),
		APIHost:     envOrDefault("API_HOST", "127.0.0.1"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
	}

	startupMs, err := envIntOrDefault("STARTUP_DELAY", 100)
	if err != nil {
		return nil, fmt.Errorf("config: STARTUP_DELAY: %w", err)
	}
	cfg.StartupDelay = time.Duration(startupMs) * time.Millisecond

	port, err := envIntOrDefault("API_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("config: API_PORT: %w", err)
	}
	cfg.APIPort = port

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("config: RPC_URL is required")
	}

	return cfg, nil
}

// RequireIndexerName reports whether INDEXER_NAME was set; the harvester
// binary calls this after Load since only it needs the field.
func (c *Config) RequireIndexerName() error {
	if c.IndexerName == "" {
		return fmt.Errorf("config: INDEXER_NAME is required")
	}
	return nil
}

// RequireProgramID reports whether PROGRAM_ID was set; the decoder binary
// calls this after Load since only it needs the field.
func (c *Config) RequireProgramID() error {
	if c.ProgramID == "" {
		return fmt.Errorf("config: PROGRAM_ID is required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", v, err)
	}
	return n, nil
}
