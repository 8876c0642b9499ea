package repositories

import (
	"context"
	"fmt"

	"github.com/Project-DOFTA/dft/internal/domain"
	"github.com/Project-DOFTA/dft/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo is the append-only trail of state-changing actions. Rows are
// never updated or deleted.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Log(ctx context.Context, entry models.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (actor_id, actor_type, action, resource_type, resource_id, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ActorID, entry.ActorType, entry.Action, entry.ResourceType, entry.ResourceID, entry.Meta)
	if err != nil {
		return fmt.Errorf("%w: audit log: %v", domain.ErrExternal, err)
	}
	return nil
}

func (r *AuditRepo) GetByResource(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, actor_type, action, resource_type, resource_id, meta, created_at
		FROM audit_log WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, resourceType, resourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: get audit entries: %v", domain.ErrExternal, err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorType, &e.Action, &e.ResourceType, &e.ResourceID, &e.Meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan audit entry: %v", domain.ErrExternal, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
