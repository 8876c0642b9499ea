package domain

import "errors"

// Sentinel errors for the order/escrow engine. Callers classify failures
// with errors.Is; lower-layer detail is attached via fmt.Errorf("%w").
var (
	// ErrValidation covers bad input: non-positive quantity, malformed ids.
	ErrValidation = errors.New("invalid data")

	// ErrNotFound is returned for unknown orders, listings or members.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller is not a party allowed to act.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition means a state machine guard rejected the action.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnavailable means the listing is not open for purchase.
	ErrUnavailable = errors.New("listing unavailable")

	// ErrInsufficientInventory means the listed quantity raced below the
	// ordered quantity between create and accept.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrAmountMismatch means the escrow deposit does not equal the order total.
	ErrAmountMismatch = errors.New("deposit does not match order amount")

	// ErrAlreadyExists means an escrow record for the order id already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInconsistent is surfaced when the coordinator exhausts its retry
	// budget after escrow funds have moved. Operator-visible, never shown to
	// end users as-is.
	ErrInconsistent = errors.New("ledger inconsistent with escrow")

	// ErrExternal marks transient failures of the ledger or escrow backends.
	// Retried internally; only sustained failure propagates.
	ErrExternal = errors.New("external call failed")
)
