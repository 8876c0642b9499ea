package services

import (
	"context"

	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Narrow store interfaces over the ledger. The pgx repositories satisfy
// them; tests substitute in-memory fakes, including ones that fail on
// demand to exercise the coordinator's retry policy.

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	AcceptWithInventory(ctx context.Context, o *models.Order) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error)
	ListAcceptedUninitiated(ctx context.Context, limit int) ([]models.Order, error)
}

type ListingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	Restock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
}

type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error)
	Finalize(ctx context.Context, orderID uuid.UUID, status string) error
	ListPending(ctx context.Context, limit int) ([]models.Transaction, error)
}

type EscrowMirrorStore interface {
	Create(ctx context.Context, e *models.EscrowMirror) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowMirror, error)
	MarkResolved(ctx context.Context, orderID uuid.UUID, status string, sellerAmount, fee *decimal.Decimal) error
	MarkDisputed(ctx context.Context, orderID uuid.UUID) error
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Notifier is the external notification collaborator; delivery is
// fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, event string, payload map[string]any)
}
