/*

This file contains the conditional token ledger: the escrow that mints and
burns per-outcome conditional tokens 1:1 against spot deposits. One spot
deposit yields one conditional unit per outcome simultaneously, so total
conditional supply for any outcome always traces back to locked spot
reserves.

*/

package conditional

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/types"
)

// Ledger tracks the spot reserves held in trust and the conditional supply
// minted against them for each outcome.
type Ledger struct {
	OutcomeCount   int
	EscrowedAsset  sdkmath.Int
	EscrowedStable sdkmath.Int
	MintedAsset    []sdkmath.Int
	MintedStable   []sdkmath.Int
}

// NewLedger returns an empty ledger for n outcomes.
func NewLedger(n int) (*Ledger, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 outcomes, got %d", types.ErrOutcomeMismatch, n)
	}
	l := &Ledger{
		OutcomeCount:   n,
		EscrowedAsset:  sdkmath.ZeroInt(),
		EscrowedStable: sdkmath.ZeroInt(),
		MintedAsset:    make([]sdkmath.Int, n),
		MintedStable:   make([]sdkmath.Int, n),
	}
	for i := 0; i < n; i++ {
		l.MintedAsset[i] = sdkmath.ZeroInt()
		l.MintedStable[i] = sdkmath.ZeroInt()
	}
	return l, nil
}

func (l *Ledger) minted(token types.Token) []sdkmath.Int {
	if token == types.TokenAsset {
		return l.MintedAsset
	}
	return l.MintedStable
}

// MintCompleteSet escrows `amount` spot units of the given token and mints
// `amount` conditional units of it for every outcome at once.
func (l *Ledger) MintCompleteSet(token types.Token, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	if token == types.TokenAsset {
		l.EscrowedAsset = l.EscrowedAsset.Add(amount)
	} else {
		l.EscrowedStable = l.EscrowedStable.Add(amount)
	}
	supply := l.minted(token)
	for i := range supply {
		supply[i] = supply[i].Add(amount)
	}
	return nil
}

// BurnCompleteSet burns `amount` conditional units of the token for every
// outcome and releases the matching spot units. The burn happens before the
// release; conversion is 1:1 with no slippage.
func (l *Ledger) BurnCompleteSet(token types.Token, amount sdkmath.Int) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if !amount.IsPositive() {
		return zero, types.ErrZeroAmount
	}
	supply := l.minted(token)
	for i, s := range supply {
		if s.LT(amount) {
			return zero, fmt.Errorf("%w: outcome %d holds %s, burning %s", types.ErrLedgerUnderflow, i, s, amount)
		}
	}
	escrowed := l.EscrowedAsset
	if token == types.TokenStable {
		escrowed = l.EscrowedStable
	}
	if escrowed.LT(amount) {
		return zero, fmt.Errorf("%w: escrowed %s, releasing %s", types.ErrEscrowUnderflow, escrowed, amount)
	}

	for i := range supply {
		supply[i] = supply[i].Sub(amount)
	}
	if token == types.TokenAsset {
		l.EscrowedAsset = l.EscrowedAsset.Sub(amount)
	} else {
		l.EscrowedStable = l.EscrowedStable.Sub(amount)
	}
	return amount, nil
}

// BurnOutcome burns conditional units of a single outcome without releasing
// escrow. Used to retire the winning outcome's AMM-held liquidity at
// resolution before the escrow is drained.
func (l *Ledger) BurnOutcome(outcome int, token types.Token, amount sdkmath.Int) error {
	if outcome < 0 || outcome >= l.OutcomeCount {
		return fmt.Errorf("%w: outcome %d of %d", types.ErrOutcomeMismatch, outcome, l.OutcomeCount)
	}
	if !amount.IsPositive() {
		return types.ErrZeroAmount
	}
	supply := l.minted(token)
	if supply[outcome].LT(amount) {
		return fmt.Errorf("%w: outcome %d holds %s, burning %s", types.ErrLedgerUnderflow, outcome, supply[outcome], amount)
	}
	supply[outcome] = supply[outcome].Sub(amount)
	return nil
}

// Resolve drains the escrow at market resolution: every remaining
// conditional balance (winning or not) dies with the proposal, and the full
// spot backing returns to the caller. The winning outcome's AMM liquidity
// must have been burned through BurnOutcome first.
func (l *Ledger) Resolve(winning int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if winning < 0 || winning >= l.OutcomeCount {
		return zero, zero, fmt.Errorf("%w: winning outcome %d of %d", types.ErrOutcomeMismatch, winning, l.OutcomeCount)
	}
	asset, stable := l.EscrowedAsset, l.EscrowedStable
	l.EscrowedAsset = zero
	l.EscrowedStable = zero
	for i := 0; i < l.OutcomeCount; i++ {
		l.MintedAsset[i] = zero
		l.MintedStable[i] = zero
	}
	return asset, stable, nil
}

// Clone returns a deep copy for staged mutation.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	cp := &Ledger{
		OutcomeCount:   l.OutcomeCount,
		EscrowedAsset:  l.EscrowedAsset,
		EscrowedStable: l.EscrowedStable,
		MintedAsset:    make([]sdkmath.Int, len(l.MintedAsset)),
		MintedStable:   make([]sdkmath.Int, len(l.MintedStable)),
	}
	copy(cp.MintedAsset, l.MintedAsset)
	copy(cp.MintedStable, l.MintedStable)
	return cp
}
