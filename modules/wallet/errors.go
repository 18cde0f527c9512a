package wallet

import "errors"

// Recoverable/transient node errors: logged and retried on the next tick.
var (
	ErrNodeUnreachable    = errors.New("node unreachable")
	ErrNodeTimeout        = errors.New("node timeout")
	ErrNodeEmptyResponse  = errors.New("node returned an empty response")
)

// Node-integrity failures: fatal for the current tick, not for the wallet.
// The current batch is discarded and re-fetched.
var (
	ErrGapDetected         = errors.New("gap detected in block hash sequence")
	ErrMissingGlobalIndexes = errors.New("node did not supply global indexes for a required range")
	ErrUnexpectedStartHeight = errors.New("node returned an unexpected start height")
	ErrSuspiciousNode      = errors.New("node behavior is inconsistent with protocol guarantees")
)

// Validation (user-caused) errors: returned directly from builder calls,
// no side effects.
var (
	ErrInvalidAddress       = errors.New("invalid address")
	ErrConflictingPaymentID = errors.New("conflicting payment id")
	ErrNotEnoughBalance     = errors.New("not enough balance")
	ErrInvalidMixin         = errors.New("invalid mixin")
	ErrKeysNotDeterministic = errors.New("wallet is view-only and cannot spend")
	ErrUnknownAddress       = errors.New("address does not belong to this wallet")
)

// Construction errors: returned from the builder, no state change.
var (
	ErrNotEnoughFakeOutputs = errors.New("not enough fake outputs returned by node")
	ErrAmountsNotPretty     = errors.New("an output amount is not a pretty amount")
	ErrUnexpectedFee        = errors.New("actual fee does not match expected fee")
	ErrTransactionTooLarge  = errors.New("transaction exceeds the maximum size for this height")
	ErrFullyOptimized       = errors.New("wallet is already fully optimized")
)

// Relay errors: no state change.
var ErrNodeRejected = errors.New("node rejected the transaction")

// Programmer-caused / corruption errors: surfaced to the caller, never
// silently swallowed.
var (
	ErrUnknownKeyImage  = errors.New("key image not found in any bucket")
	ErrForkedAboveHistory = errors.New("fork height is above all recorded history")
)

// Builder concurrency guard.
var ErrBuildInProgress = errors.New("a transaction is already being constructed")
