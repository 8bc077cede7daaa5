package model

import (
	"errors"
	"fmt"
)

// Failure taxonomy. All of these are returned as values; none of them
// terminate the run. Callers branch with errors.Is.
var (
	// ErrInsufficientFunds rejects an order whose margin requirement
	// exceeds the available balance. The order never enters pending.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientSize rejects a signal whose minimum viable size
	// is below the pair's minimum notional.
	ErrInsufficientSize = errors.New("insufficient size")

	// ErrInvalidTransition flags an operation on an already-resolved
	// order, e.g. a second confirm. Logged and ignored, not fatal.
	ErrInvalidTransition = errors.New("invalid order transition")

	// ErrLiveTradingNotApproved is the fail-closed routing error for
	// live orders submitted before approval was granted.
	ErrLiveTradingNotApproved = errors.New("live trading not approved")

	// ErrDataIntegrity marks an out-of-order or duplicate candle. The
	// offending bar is skipped and the gap recorded; processing continues.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrEngineStopped rejects submissions after the engine stopped
	// accepting new work.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrOrderNotFound is returned for lookups of unknown order IDs.
	ErrOrderNotFound = errors.New("order not found")
)

// ValidationError reports a malformed signal or order, rejected before
// any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}
