package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow statuses as reported by the contract. Resolved is the terminal
// state the cooperative owner drives a disputed order into.
const (
	EscrowStatusPending   = "pending"
	EscrowStatusCompleted = "completed"
	EscrowStatusRefunded  = "refunded"
	EscrowStatusDisputed  = "disputed"
	EscrowStatusResolved  = "resolved"
)

// EscrowMirror is the off-chain read model of a contract escrow record,
// keyed by order id. The contract is the source of truth; the mirror exists
// for payment views and worker reconciliation and is updated by the
// coordinator after each contract call.
type EscrowMirror struct {
	ID             uuid.UUID        `json:"id"`
	OrderID        uuid.UUID        `json:"order_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         string           `json:"status"`
	SellerAmount   *decimal.Decimal `json:"seller_amount,omitempty"`
	CooperativeFee *decimal.Decimal `json:"cooperative_fee,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
}
