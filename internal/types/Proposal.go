/*

This file contains the read-only view of the proposal lifecycle module. The
market engine never mutates proposal state; it only reads finalization and
outcome data through this interface.

*/

package types

// ProposalReader exposes the proposal lifecycle state the market engine needs.
// The lifecycle module itself lives outside the engine.
type ProposalReader interface {
	ProposalID() uint64
	OutcomeCount() int
	// IsFinalized reports whether the proposal has reached a terminal state.
	IsFinalized() bool
	// WinningOutcome returns the confirmed winning outcome index. The second
	// return is false until the proposal finalizes.
	WinningOutcome() (int, bool)
	// UsesDAOLiquidity reports whether the proposal locks a share of the
	// DAO's spot reserves into conditional markets.
	UsesDAOLiquidity() bool
	// InTradingPhase reports whether conditional trading is currently open.
	InTradingPhase() bool
}

// StaticProposal is a fixed-value ProposalReader for hosts that resolve
// proposal state out of band, and for tests.
type StaticProposal struct {
	ID           uint64 `json:"id"`
	Outcomes     int    `json:"outcomes"`
	Finalized    bool   `json:"finalized"`
	Winner       int    `json:"winner"`
	DAOLiquidity bool   `json:"dao_liquidity"`
	Trading      bool   `json:"trading"`
}

func (p *StaticProposal) ProposalID() uint64     { return p.ID }
func (p *StaticProposal) OutcomeCount() int      { return p.Outcomes }
func (p *StaticProposal) IsFinalized() bool      { return p.Finalized }
func (p *StaticProposal) UsesDAOLiquidity() bool { return p.DAOLiquidity }
func (p *StaticProposal) InTradingPhase() bool   { return p.Trading && !p.Finalized }

func (p *StaticProposal) WinningOutcome() (int, bool) {
	if !p.Finalized {
		return 0, false
	}
	return p.Winner, true
}
