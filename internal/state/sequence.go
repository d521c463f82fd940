package state

import (
	"fmt"
)

// IncrementOpSequence atomically advances the operation counter and returns
// the new value. The counter orders snapshots across restarts.
func IncrementOpSequence() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var seq int
	err := DB.QueryRow(`
		UPDATE op_counter
		SET current_op = current_op + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_op`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to increment operation sequence: %w", err)
	}
	return seq, nil
}

// GetCurrentOpSequence reads the counter without advancing it.
func GetCurrentOpSequence() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var seq int
	err := DB.QueryRow(`SELECT current_op FROM op_counter WHERE id = 1`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to read operation sequence: %w", err)
	}
	return seq, nil
}
