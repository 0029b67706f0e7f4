package sqlite

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/conflict"
)

type ConflictRepository struct {
	s *Storage
}

func NewConflictRepository(s *Storage) *ConflictRepository {
	return &ConflictRepository{s: s}
}

func (r *ConflictRepository) Save(ctx context.Context, c *conflict.Conflict) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conflict: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, entity_type, entity_id, created_at, resolved_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET resolved_at = excluded.resolved_at, data = excluded.data`,
		c.ID, c.EntityType, c.EntityID, c.CreatedAt, c.ResolvedAt, string(data))
	if err != nil {
		return fmt.Errorf("save conflict %s: %w", c.ID, err)
	}
	return nil
}

func (r *ConflictRepository) LoadAll(ctx context.Context) ([]*conflict.Conflict, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT data FROM conflicts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select conflicts: %w", err)
	}
	return scanJSON[conflict.Conflict](rows)
}

func (r *ConflictRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.s.db.ExecContext(ctx, `DELETE FROM conflicts`); err != nil {
		return fmt.Errorf("delete conflicts: %w", err)
	}
	return nil
}
