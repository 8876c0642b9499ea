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

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) Create(ctx context.Context, l *models.Listing) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO listings (member_id, name, description, quantity, unit_price, availability)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, l.MemberID, l.Name, l.Description, l.Quantity, l.UnitPrice, l.Availability,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create listing: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, member_id, name, description, quantity, unit_price, availability, created_at, updated_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.MemberID, &l.Name, &l.Description, &l.Quantity, &l.UnitPrice,
		&l.Availability, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get listing: %v", domain.ErrExternal, err)
	}
	return &l, nil
}

type ListingFilter struct {
	MemberID     *uuid.UUID
	Availability *string
	Limit        int
	Offset       int
}

func (r *ListingRepo) List(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	query := `
		SELECT id, member_id, name, description, quantity, unit_price, availability, created_at, updated_at
		FROM listings
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.MemberID != nil {
		where = append(where, fmt.Sprintf("member_id = $%d", argIdx))
		args = append(args, *f.MemberID)
		argIdx++
	}
	if f.Availability != nil {
		where = append(where, fmt.Sprintf("availability = $%d", argIdx))
		args = append(args, *f.Availability)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list listings: %v", domain.ErrExternal, err)
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.MemberID, &l.Name, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.Availability, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan listing: %v", domain.ErrExternal, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// Restock returns reserved quantity to a listing after a refund.
func (r *ListingRepo) Restock(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings SET quantity = quantity + $1, updated_at = now() WHERE id = $2
	`, quantity, id)
	if err != nil {
		return fmt.Errorf("%w: restock listing: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *ListingRepo) Update(ctx context.Context, l *models.Listing) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET name = $1, description = $2, quantity = $3, unit_price = $4, availability = $5, updated_at = now()
		WHERE id = $6
	`, l.Name, l.Description, l.Quantity, l.UnitPrice, l.Availability, l.ID)
	if err != nil {
		return fmt.Errorf("%w: update listing: %v", domain.ErrExternal, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: listing %s", domain.ErrNotFound, l.ID)
	}
	return nil
}
