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
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, order_id, amount, cooperative_fee, status, created_at, completed_at`

// Create inserts the bookkeeping row for an order. The unique constraint on
// order_id enforces at most one transaction per order; a duplicate insert
// surfaces as ErrAlreadyExists so Initiate can fall back to the existing row.
func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (order_id, amount, cooperative_fee, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.OrderID, t.Amount, t.CooperativeFee, t.Status).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction for order %s", domain.ErrAlreadyExists, t.OrderID)
		}
		return fmt.Errorf("%w: create transaction: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Transaction, error) {
	var t models.Transaction
	err := r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1
	`, orderID).Scan(&t.ID, &t.OrderID, &t.Amount, &t.CooperativeFee, &t.Status, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction for order %s", domain.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("%w: get transaction: %v", domain.ErrExternal, err)
	}
	return &t, nil
}

// Finalize moves a pending transaction to its terminal status and stamps
// completed_at. Conditional on the current status being pending, so retries
// and duplicate deliveries cannot finalize twice.
func (r *TransactionRepo) Finalize(ctx context.Context, orderID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1, completed_at = now()
		WHERE order_id = $2 AND status = $3
	`, status, orderID, models.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("%w: finalize transaction: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction for order %s is not pending", domain.ErrInvalidTransition, orderID)
	}
	return nil
}

// ListPending returns pending transactions for the reconciliation loop.
func (r *TransactionRepo) ListPending(ctx context.Context, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 ORDER BY created_at LIMIT $2
	`, models.TransactionStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending transactions: %v", domain.ErrExternal, err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Amount, &t.CooperativeFee, &t.Status, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", domain.ErrExternal, err)
		}
		txs = append(txs, t)
	}
	return txs, nil
}
