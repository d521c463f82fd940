package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/futarchylabs/famm/internal/types"
)

// SaveMarketSnapshot persists a snapshot and returns its assigned id. Big
// integers are stored as text so reserve values never lose precision.
func SaveMarketSnapshot(snap *types.MarketSnapshot) (uint64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var outcomesJSON interface{}
	if len(snap.Outcomes) > 0 {
		data, err := json.Marshal(snap.Outcomes)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal outcome snapshots: %w", err)
		}
		outcomesJSON = data
	}

	var dustJSON interface{}
	if snap.Dust != nil && !snap.Dust.IsZero() {
		data, err := json.Marshal(snap.Dust)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal dust balance: %w", err)
		}
		dustJSON = data
	}

	var proposalID interface{}
	if snap.ActiveProposalID != nil {
		proposalID = int64(*snap.ActiveProposalID)
	}

	query := `
		INSERT INTO market_snapshots (
			op_sequence, timestamp, clock_ms,
			asset_reserve, stable_reserve, lp_supply, spot_price, spot_fee_bps,
			protocol_fees_asset, protocol_fees_stable,
			active_proposal_id, outcomes, dust, escrowed_asset, escrowed_stable
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING snapshot_id`

	var id uint64
	err := DB.QueryRow(query,
		snap.OpSequence, snap.Timestamp, int64(snap.ClockMs),
		snap.AssetReserve.String(), snap.StableReserve.String(), snap.LPSupply.String(),
		snap.SpotPrice, int64(snap.SpotFeeBps),
		intOrZero(snap.ProtocolFeesAsset), intOrZero(snap.ProtocolFeesStable),
		proposalID, outcomesJSON, dustJSON,
		intOrZero(snap.EscrowedAsset), intOrZero(snap.EscrowedStable),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert market snapshot: %w", err)
	}

	log.Debug().Uint64("snapshot_id", id).Int("op_sequence", snap.OpSequence).Msg("Market snapshot saved")
	return id, nil
}

// GetRecentSnapshots returns the newest snapshots, most recent first.
func GetRecentSnapshots(limit int) ([]types.MarketSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := DB.Query(`
		SELECT snapshot_id, op_sequence, timestamp, clock_ms,
		       asset_reserve, stable_reserve, lp_supply, spot_price, spot_fee_bps,
		       protocol_fees_asset, protocol_fees_stable,
		       active_proposal_id, outcomes, dust, escrowed_asset, escrowed_stable
		FROM market_snapshots
		ORDER BY snapshot_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query market snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.MarketSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}

// GetSnapshotByID returns one snapshot, or sql.ErrNoRows if absent.
func GetSnapshotByID(id uint64) (*types.MarketSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`
		SELECT snapshot_id, op_sequence, timestamp, clock_ms,
		       asset_reserve, stable_reserve, lp_supply, spot_price, spot_fee_bps,
		       protocol_fees_asset, protocol_fees_stable,
		       active_proposal_id, outcomes, dust, escrowed_asset, escrowed_stable
		FROM market_snapshots
		WHERE snapshot_id = $1`, id)
	return scanSnapshot(row)
}

// GetLatestSnapshot returns the most recent snapshot, or sql.ErrNoRows when
// none have been written yet.
func GetLatestSnapshot() (*types.MarketSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`
		SELECT snapshot_id, op_sequence, timestamp, clock_ms,
		       asset_reserve, stable_reserve, lp_supply, spot_price, spot_fee_bps,
		       protocol_fees_asset, protocol_fees_stable,
		       active_proposal_id, outcomes, dust, escrowed_asset, escrowed_stable
		FROM market_snapshots
		ORDER BY snapshot_id DESC
		LIMIT 1`)
	return scanSnapshot(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*types.MarketSnapshot, error) {
	var snap types.MarketSnapshot
	var assetStr, stableStr, lpStr, pfAssetStr, pfStableStr, escAssetStr, escStableStr string
	var clockMs, feeBps int64
	var proposalID sql.NullInt64
	var outcomesJSON, dustJSON []byte

	err := row.Scan(
		&snap.SnapshotID, &snap.OpSequence, &snap.Timestamp, &clockMs,
		&assetStr, &stableStr, &lpStr, &snap.SpotPrice, &feeBps,
		&pfAssetStr, &pfStableStr,
		&proposalID, &outcomesJSON, &dustJSON, &escAssetStr, &escStableStr,
	)
	if err != nil {
		return nil, err
	}

	snap.ClockMs = uint64(clockMs)
	snap.SpotFeeBps = uint64(feeBps)
	if snap.AssetReserve, err = parseInt(assetStr, "asset_reserve"); err != nil {
		return nil, err
	}
	if snap.StableReserve, err = parseInt(stableStr, "stable_reserve"); err != nil {
		return nil, err
	}
	if snap.LPSupply, err = parseInt(lpStr, "lp_supply"); err != nil {
		return nil, err
	}
	if snap.ProtocolFeesAsset, err = parseInt(pfAssetStr, "protocol_fees_asset"); err != nil {
		return nil, err
	}
	if snap.ProtocolFeesStable, err = parseInt(pfStableStr, "protocol_fees_stable"); err != nil {
		return nil, err
	}
	if snap.EscrowedAsset, err = parseInt(escAssetStr, "escrowed_asset"); err != nil {
		return nil, err
	}
	if snap.EscrowedStable, err = parseInt(escStableStr, "escrowed_stable"); err != nil {
		return nil, err
	}

	if proposalID.Valid {
		id := uint64(proposalID.Int64)
		snap.ActiveProposalID = &id
	}
	if len(outcomesJSON) > 0 {
		if err := json.Unmarshal(outcomesJSON, &snap.Outcomes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outcome snapshots: %w", err)
		}
	}
	if len(dustJSON) > 0 {
		if err := json.Unmarshal(dustJSON, &snap.Dust); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dust balance: %w", err)
		}
	}
	return &snap, nil
}

func parseInt(s, column string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer in column %s: %q", column, s)
	}
	return v, nil
}

func intOrZero(v sdkmath.Int) string {
	if v.IsNil() {
		return "0"
	}
	return v.String()
}
