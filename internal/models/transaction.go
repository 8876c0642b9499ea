package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusReversed  = "reversed"
)

// Transaction is the off-chain bookkeeping mirror of an escrow outcome.
// One per order, created when the seller accepts, finalized by the
// coordinator when the escrow contract resolves. Amount is gross and
// equals the locked escrow amount; CooperativeFee is the slice of it the
// cooperative retains, so the seller receives Amount - CooperativeFee.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	OrderID        uuid.UUID       `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`          // gross, equals order total
	CooperativeFee decimal.Decimal `json:"cooperative_fee"` // platform share on completion
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}
