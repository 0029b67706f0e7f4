package sqlite

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/restore"
)

type RestoreRepository struct {
	s *Storage
}

func NewRestoreRepository(s *Storage) *RestoreRepository {
	return &RestoreRepository{s: s}
}

func (r *RestoreRepository) Save(ctx context.Context, rs *restore.Restore) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshal restore: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO restores (id, backup_id, status, started_at, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		rs.ID, rs.BackupID, rs.Status, rs.StartedAt, string(data))
	if err != nil {
		return fmt.Errorf("save restore %s: %w", rs.ID, err)
	}
	return nil
}

func (r *RestoreRepository) Get(ctx context.Context, id string) (*restore.Restore, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT data FROM restores WHERE id = ?`, id)
	return getJSON[restore.Restore](row, restore.ErrNotFound)
}

func (r *RestoreRepository) List(ctx context.Context) ([]*restore.Restore, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT data FROM restores ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select restores: %w", err)
	}
	return scanJSON[restore.Restore](rows)
}
