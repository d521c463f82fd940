package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// MarketName labels this engine instance in logs and snapshots.
	MarketName string

	// AssetDenom is the display denomination of the DAO's volatile asset.
	AssetDenom string
	// StableDenom is the display denomination of the stable quote token.
	StableDenom string

	// GenesisAssetAmount seeds the spot pool's asset side on first start.
	GenesisAssetAmount string
	// GenesisStableAmount seeds the spot pool's stable side on first start.
	GenesisStableAmount string

	// SnapshotIntervalMs is how often the running engine persists a snapshot.
	SnapshotIntervalMs uint64

	// WebListenAddr is the bind address for the dashboard and API server.
	WebListenAddr string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	MarketName, err = getEnv("FAMM_MARKET_NAME")
	if err != nil {
		return err
	}

	AssetDenom, err = getEnv("FAMM_ASSET_DENOM")
	if err != nil {
		return err
	}

	StableDenom, err = getEnv("FAMM_STABLE_DENOM")
	if err != nil {
		return err
	}

	GenesisAssetAmount, err = getEnv("FAMM_GENESIS_ASSET")
	if err != nil {
		return err
	}

	GenesisStableAmount, err = getEnv("FAMM_GENESIS_STABLE")
	if err != nil {
		return err
	}

	SnapshotIntervalMs, err = getEnvAsUint64("FAMM_SNAPSHOT_INTERVAL_MS")
	if err != nil {
		return err
	}

	WebListenAddr, err = getEnv("FAMM_WEB_LISTEN_ADDR")
	if err != nil {
		return err
	}

	DatabaseURL, err = getEnv("DATABASE_URL")
	if err != nil {
		return err
	}

	log.Debug().
		Str("MarketName", MarketName).
		Str("AssetDenom", AssetDenom).
		Str("StableDenom", StableDenom).
		Str("WebListenAddr", WebListenAddr).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
