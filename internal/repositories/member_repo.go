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

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Create(ctx context.Context, m *models.Member) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO members (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, m.Email, m.PasswordHash).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: member with email already registered", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("%w: create member: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *MemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var m models.Member
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM members WHERE id = $1
	`, id).Scan(&m.ID, &m.Email, &m.PasswordHash, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: member %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: get member: %v", domain.ErrExternal, err)
	}
	return &m, nil
}

func (r *MemberRepo) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	var m models.Member
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at FROM members WHERE email = $1
	`, email).Scan(&m.ID, &m.Email, &m.PasswordHash, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: member", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: get member by email: %v", domain.ErrExternal, err)
	}
	return &m, nil
}
