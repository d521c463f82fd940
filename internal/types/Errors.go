/*

This file defines the sentinel errors for the market engine, grouped by the
failure classes callers need to distinguish: invariant violations, slippage
bounds, state preconditions, and arithmetic safety. All of them abort the
whole operation; none leave partial state behind.

*/

package types

import "errors"

// Invariant violations. Fatal to the operation, never silently clamped.
var (
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrInsufficientLiquidity = errors.New("output would drain pool reserve")
	ErrBelowMinimumLiquidity = errors.New("reserves would fall below the minimum liquidity floor")
	ErrLedgerUnderflow       = errors.New("burn exceeds outstanding conditional supply")
	ErrEscrowUnderflow       = errors.New("release exceeds escrowed spot balance")
	ErrOutcomeMismatch       = errors.New("outcome count mismatch")
)

// Slippage failures. Retryable by the caller with adjusted bounds.
var (
	ErrSlippageExceeded = errors.New("output below caller minimum")
)

// State-precondition failures. Non-retryable without an external state change.
var (
	ErrProposalActive     = errors.New("a proposal market is active")
	ErrNoActiveProposal   = errors.New("no proposal market is active")
	ErrProposalNotFinal   = errors.New("proposal has not finalized")
	ErrCooldownNotElapsed = errors.New("proposal cool-down has not elapsed")
	ErrOracleNotReady     = errors.New("price oracle has insufficient history")
	ErrPriceBandViolated  = errors.New("spot price outside no-arbitrage band")
)

// Arithmetic-safety assertions. These indicate an internal bug; they must not
// trigger for inputs within the documented bounds.
var (
	ErrArbUnprofitable = errors.New("arbitrage settled below principal")
)
