package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing availability statuses
const (
	AvailabilityAvailable  = "available"
	AvailabilityOutOfStock = "out_of_stock"
	AvailabilityArchived   = "archived"
)

func IsValidAvailability(s string) bool {
	switch s {
	case AvailabilityAvailable, AvailabilityOutOfStock, AvailabilityArchived:
		return true
	}
	return false
}

// Listing is a product offered for sale by a cooperative member.
type Listing struct {
	ID           uuid.UUID       `json:"id"`
	MemberID     uuid.UUID       `json:"member_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Availability string          `json:"availability"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// AvailableForPurchase reports whether orders may be placed against the listing.
func (l *Listing) AvailableForPurchase() bool {
	return l.Availability == AvailabilityAvailable
}
