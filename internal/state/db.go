package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// InitDB initializes the database connection pool from a Postgres URL.
func InitDB(databaseURL string) error {
	var err error
	DB, err = sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// TestDBConnection verifies the pool is still reachable.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return DB.Ping()
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS engine_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			spot_fee_bps BIGINT NOT NULL,
			conditional_fee_bps BIGINT NOT NULL,
			launch_fee_bps BIGINT NOT NULL,
			fee_decay_duration_ms BIGINT NOT NULL,
			protocol_fee_share_bps BIGINT NOT NULL,
			liquidity_ratio_percent BIGINT NOT NULL,
			no_arb_band_bps BIGINT NOT NULL,
			min_arb_profit BIGINT NOT NULL,
			proposal_cooldown_ms BIGINT NOT NULL,
			twap_window_ms BIGINT NOT NULL,
			long_window_periods INTEGER NOT NULL,
			min_oracle_window_ms BIGINT NOT NULL,
			min_liquidity BIGINT NOT NULL,
			CONSTRAINT uq_engine_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_engine_parameters_config_active ON engine_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS market_snapshots (
			snapshot_id BIGSERIAL PRIMARY KEY,
			op_sequence INTEGER NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			clock_ms BIGINT NOT NULL,
			asset_reserve TEXT NOT NULL,
			stable_reserve TEXT NOT NULL,
			lp_supply TEXT NOT NULL,
			spot_price DOUBLE PRECISION NOT NULL,
			spot_fee_bps BIGINT NOT NULL,
			protocol_fees_asset TEXT NOT NULL DEFAULT '0',
			protocol_fees_stable TEXT NOT NULL DEFAULT '0',
			active_proposal_id BIGINT,
			outcomes JSONB,
			dust JSONB,
			escrowed_asset TEXT NOT NULL DEFAULT '0',
			escrowed_stable TEXT NOT NULL DEFAULT '0'
		);
		CREATE INDEX IF NOT EXISTS idx_market_snapshots_timestamp ON market_snapshots(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_market_snapshots_op_sequence ON market_snapshots(op_sequence DESC);
		CREATE INDEX IF NOT EXISTS idx_market_snapshots_proposal ON market_snapshots(active_proposal_id) WHERE active_proposal_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS op_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_op INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row CHECK (id = 1)
		);
		INSERT INTO op_counter (id, current_op) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply database schema: %w", err)
	}

	log.Info().Msg("Database schema ensured.")
	return nil
}
