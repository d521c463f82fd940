package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/futarchylabs/famm/internal/config"
	"github.com/futarchylabs/famm/internal/engine"
	"github.com/futarchylabs/famm/internal/logger"
	"github.com/futarchylabs/famm/internal/state"
	"github.com/futarchylabs/famm/internal/web"
)

const (
	// DefaultConfigName is the parameter config name the engine runs under.
	DefaultConfigName = "default"
)

// main is the entry point for the FAMM market engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("FAMM Market Engine Starting...")

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Database Connection
	if err := state.InitDB(config.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Engine Parameters
	params, err := state.LoadActiveEngineParameters(DefaultConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active engine parameters, using defaults and saving.")
		params = config.DefaultEngineParameters
		if _, err := state.SaveEngineParameters(params, DefaultConfigName, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default engine parameters.")
		}
	}
	log.Info().Msg("Engine parameters loaded successfully.")

	// --- Start Web Server ---
	webServer := web.NewWebServer(config.WebListenAddr)
	go func() {
		log.Info().Str("addr", config.WebListenAddr).Msg("Starting FAMM web dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 2. Market Initialization (with Safety Switch) ---
	engineMode := os.Getenv("ENGINE_MODE")
	if engineMode != "live" {
		log.Fatal().Msg("ENGINE_MODE is not set to 'live'. Halting to prevent accidental execution. Set ENGINE_MODE=live to run.")
	}
	log.Warn().Msg("Initializing engine in LIVE mode.")

	// The market clock is monotonic milliseconds since process start; the
	// engine itself never reads wall-clock time.
	startTime := time.Now()
	nowMs := func() uint64 {
		return uint64(time.Since(startTime).Milliseconds())
	}

	market, err := engine.NewMarket(params, nowMs())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create market")
	}

	// Seed the spot pool from genesis amounts
	genesisAsset, ok := sdkmath.NewIntFromString(config.GenesisAssetAmount)
	if !ok {
		log.Fatal().Str("value", config.GenesisAssetAmount).Msg("Invalid genesis asset amount")
	}
	genesisStable, ok := sdkmath.NewIntFromString(config.GenesisStableAmount)
	if !ok {
		log.Fatal().Str("value", config.GenesisStableAmount).Msg("Invalid genesis stable amount")
	}
	receipt, err := market.AddLiquidity(genesisAsset, genesisStable, sdkmath.ZeroInt(), nowMs())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed genesis liquidity")
	}
	log.Info().
		Str("market", config.MarketName).
		Str("asset_denom", config.AssetDenom).
		Str("stable_denom", config.StableDenom).
		Str("lp_minted", receipt.LPMinted.String()).
		Msg("Genesis liquidity seeded")

	// --- 3. Snapshot Loop ---
	interval := time.Duration(config.SnapshotIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info().Str("interval", interval.String()).Msg("Starting snapshot loop")
	for {
		select {
		case <-ticker.C:
			persistSnapshot(market, nowMs())
		case sig := <-sigCh:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			persistSnapshot(market, nowMs())
			return
		}
	}
}

// persistSnapshot advances the operation counter and writes one snapshot.
func persistSnapshot(market *engine.Market, now uint64) {
	seq, err := state.IncrementOpSequence()
	if err != nil {
		log.Error().Err(err).Msg("Failed to advance operation sequence")
		return
	}
	snap := market.Snapshot(now, seq)
	id, err := state.SaveMarketSnapshot(snap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to save market snapshot")
		return
	}
	log.Debug().Uint64("snapshot_id", id).Int("op_sequence", seq).Msg("Snapshot persisted")
}
