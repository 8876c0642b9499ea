package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, buyer_id, seller_id, listing_id, quantity, unit_price, total_amount, status, created_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Quantity,
		&o.UnitPrice, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: scan order: %v", domain.ErrExternal, err)
	}
	return &o, nil
}

func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO orders (buyer_id, seller_id, listing_id, quantity, unit_price, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, o.BuyerID, o.SellerID, o.ListingID, o.Quantity, o.UnitPrice, o.TotalAmount, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: create order: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// UpdateStatus is a conditional write: the row moves from exactly `from` to
// `to` or not at all, which makes concurrent writers lose cleanly instead
// of clobbering each other.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return fmt.Errorf("%w: update order status: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s is not %s", domain.ErrInvalidTransition, id, from)
	}
	return nil
}

// AcceptWithInventory applies the acceptance in one database transaction:
// the listing inventory decrements only if enough remains, and the order
// flips Pending -> Accepted only alongside it. A raced shortfall returns
// ErrInsufficientInventory and leaves both rows untouched.
func (r *OrderRepo) AcceptWithInventory(ctx context.Context, o *models.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin accept: %v", domain.ErrExternal, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE listings SET quantity = quantity - $1, updated_at = now()
		WHERE id = $2 AND quantity >= $1
	`, o.Quantity, o.ListingID)
	if err != nil {
		return fmt.Errorf("%w: decrement inventory: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s has less than %s", domain.ErrInsufficientInventory, o.ListingID, o.Quantity)
	}

	tag, err = tx.Exec(ctx, `
		UPDATE orders SET status = $1 WHERE id = $2 AND status = $3
	`, models.OrderStatusAccepted, o.ID, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("%w: accept order: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s is not pending", domain.ErrInvalidTransition, o.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit accept: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.list(ctx, "buyer_id", buyerID, limit, offset)
}

func (r *OrderRepo) ListBySeller(ctx context.Context, sellerID uuid.UUID, limit, offset int) ([]models.Order, error) {
	return r.list(ctx, "seller_id", sellerID, limit, offset)
}

func (r *OrderRepo) list(ctx context.Context, column string, memberID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE `+column+` = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, memberID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", domain.ErrExternal, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListStalePending returns pending orders untouched for longer than maxAge,
// for the worker's sweep.
func (r *OrderRepo) ListStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status = $1 AND created_at < now() - ($2 || ' seconds')::interval
		ORDER BY created_at LIMIT $3
	`, models.OrderStatusPending, fmt.Sprintf("%d", int(maxAge.Seconds())), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list stale orders: %v", domain.ErrExternal, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListAcceptedUninitiated returns accepted orders that have no transaction
// row yet, so the worker can retry escrow initiation.
func (r *OrderRepo) ListAcceptedUninitiated(ctx context.Context, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.buyer_id, o.seller_id, o.listing_id, o.quantity,
		       o.unit_price, o.total_amount, o.status, o.created_at
		FROM orders o
		LEFT JOIN transactions t ON t.order_id = o.id
		WHERE o.status = $1 AND t.id IS NULL
		ORDER BY o.created_at LIMIT $2
	`, models.OrderStatusAccepted, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list uninitiated orders: %v", domain.ErrExternal, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ListingID, &o.Quantity,
			&o.UnitPrice, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan order: %v", domain.ErrExternal, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}
