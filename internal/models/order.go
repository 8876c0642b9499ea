package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusAccepted  = "accepted"
	OrderStatusRejected  = "rejected"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Valid state transitions: from -> []to
//
// Accept/reject are seller actions on a pending order. Completed and
// cancelled are reached only through the transaction coordinator once the
// escrow contract has resolved; rejected, completed and cancelled are
// terminal.
var ValidOrderTransitions = map[string][]string{
	OrderStatusPending:   {OrderStatusAccepted, OrderStatusRejected, OrderStatusCancelled},
	OrderStatusAccepted:  {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusRejected:  {},
	OrderStatusCompleted: {},
	OrderStatusCancelled: {},
}

func IsValidOrderTransition(from, to string) bool {
	allowed, ok := ValidOrderTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether no further transitions exist.
func IsTerminalOrderStatus(status string) bool {
	allowed, ok := ValidOrderTransitions[status]
	return ok && len(allowed) == 0
}

// Order is the off-chain side of a purchase. Buyer, seller, listing,
// quantity and unit price are immutable after creation; only status moves,
// and only along ValidOrderTransitions.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	ListingID   uuid.UUID       `json:"listing_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalAmount decimal.Decimal `json:"total_amount"` // quantity * unit_price
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
