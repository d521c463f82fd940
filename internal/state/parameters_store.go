package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/futarchylabs/famm/internal/types"
)

// SaveEngineParameters stores a parameter set as a new version under the given
// config name. When activate is true, the previous active set is deactivated
// in the same transaction.
func SaveEngineParameters(params types.EngineParameters, configName string, activate bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if err := params.Validate(); err != nil {
		return 0, fmt.Errorf("refusing to persist invalid parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextVersion int
	err = tx.QueryRow(
		`SELECT COALESCE(MAX(version), 0) + 1 FROM engine_parameters WHERE config_name = $1`,
		configName,
	).Scan(&nextVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next version: %w", err)
	}

	if activate {
		if _, err := tx.Exec(
			`UPDATE engine_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE`,
			configName,
		); err != nil {
			return 0, fmt.Errorf("failed to deactivate previous parameters: %w", err)
		}
	}

	var paramsID int64
	err = tx.QueryRow(`
		INSERT INTO engine_parameters (
			version, config_name, is_active,
			spot_fee_bps, conditional_fee_bps, launch_fee_bps, fee_decay_duration_ms, protocol_fee_share_bps,
			liquidity_ratio_percent, no_arb_band_bps, min_arb_profit, proposal_cooldown_ms,
			twap_window_ms, long_window_periods, min_oracle_window_ms, min_liquidity
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING params_id`,
		nextVersion, configName, activate,
		int64(params.SpotFeeBps), int64(params.ConditionalFeeBps), int64(params.LaunchFeeBps),
		int64(params.FeeDecayDurationMs), int64(params.ProtocolFeeShareBps),
		int64(params.LiquidityRatioPercent), int64(params.NoArbBandBps), params.MinArbProfit,
		int64(params.ProposalCooldownMs),
		int64(params.TwapWindowMs), params.LongWindowPeriods, int64(params.MinOracleWindowMs),
		params.MinLiquidity,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert engine parameters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit parameters transaction: %w", err)
	}

	log.Info().
		Int64("params_id", paramsID).
		Int("version", nextVersion).
		Str("config_name", configName).
		Bool("active", activate).
		Msg("Engine parameters saved")
	return paramsID, nil
}

// LoadActiveEngineParameters loads the active parameter set for a config name.
// Returns sql.ErrNoRows when none is active.
func LoadActiveEngineParameters(configName string) (types.EngineParameters, error) {
	var params types.EngineParameters
	if DB == nil {
		return params, fmt.Errorf("database not initialized")
	}

	var spotFee, condFee, launchFee, decayMs, protocolShare int64
	var liqRatio, bandBps, cooldownMs, twapMs, minWindowMs int64

	err := DB.QueryRow(`
		SELECT spot_fee_bps, conditional_fee_bps, launch_fee_bps, fee_decay_duration_ms, protocol_fee_share_bps,
		       liquidity_ratio_percent, no_arb_band_bps, min_arb_profit, proposal_cooldown_ms,
		       twap_window_ms, long_window_periods, min_oracle_window_ms, min_liquidity
		FROM engine_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1`, configName,
	).Scan(
		&spotFee, &condFee, &launchFee, &decayMs, &protocolShare,
		&liqRatio, &bandBps, &params.MinArbProfit, &cooldownMs,
		&twapMs, &params.LongWindowPeriods, &minWindowMs, &params.MinLiquidity,
	)
	if err != nil {
		return params, err
	}

	params.SpotFeeBps = uint64(spotFee)
	params.ConditionalFeeBps = uint64(condFee)
	params.LaunchFeeBps = uint64(launchFee)
	params.FeeDecayDurationMs = uint64(decayMs)
	params.ProtocolFeeShareBps = uint64(protocolShare)
	params.LiquidityRatioPercent = uint64(liqRatio)
	params.NoArbBandBps = uint64(bandBps)
	params.ProposalCooldownMs = uint64(cooldownMs)
	params.TwapWindowMs = uint64(twapMs)
	params.MinOracleWindowMs = uint64(minWindowMs)

	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("stored parameters failed validation: %w", err)
	}
	return params, nil
}

// GetActiveEngineParametersID returns the row id of the active parameter set,
// or 0 when none exists.
func GetActiveEngineParametersID(configName string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var id int64
	err := DB.QueryRow(
		`SELECT params_id FROM engine_parameters WHERE config_name = $1 AND is_active = TRUE ORDER BY activated_at DESC LIMIT 1`,
		configName,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
