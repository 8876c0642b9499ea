package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// EscrowRepo stores the off-chain mirror of contract escrow records. The
// contract is authoritative; the mirror serves payment views and worker
// reconciliation without a contract round trip.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowMirror) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO escrow_mirror (order_id, amount, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO UPDATE SET status = escrow_mirror.status
		RETURNING id, created_at
	`, e.OrderID, e.Amount, e.Status).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create escrow mirror: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *EscrowRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowMirror, error) {
	var e models.EscrowMirror
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, amount, status, seller_amount, cooperative_fee, created_at, resolved_at
		FROM escrow_mirror WHERE order_id = $1
	`, orderID).Scan(&e.ID, &e.OrderID, &e.Amount, &e.Status, &e.SellerAmount, &e.CooperativeFee,
		&e.CreatedAt, &e.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: escrow mirror for order %s", domain.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("%w: get escrow mirror: %v", domain.ErrExternal, err)
	}
	return &e, nil
}

// MarkResolved records the contract outcome. sellerAmount and fee are nil
// for refunds and disputes.
func (r *EscrowRepo) MarkResolved(ctx context.Context, orderID uuid.UUID, status string, sellerAmount, fee *decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_mirror
		SET status = $1, seller_amount = $2, cooperative_fee = $3, resolved_at = now()
		WHERE order_id = $4
	`, status, sellerAmount, fee, orderID)
	if err != nil {
		return fmt.Errorf("%w: mark escrow mirror %s: %v", domain.ErrExternal, status, err)
	}
	return nil
}

// MarkDisputed flags the mirror without stamping resolution fields.
func (r *EscrowRepo) MarkDisputed(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_mirror SET status = $1 WHERE order_id = $2 AND status = $3
	`, models.EscrowStatusDisputed, orderID, models.EscrowStatusPending)
	if err != nil {
		return fmt.Errorf("%w: mark escrow mirror disputed: %v", domain.ErrExternal, err)
	}
	return nil
}
