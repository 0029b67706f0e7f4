package sqlite

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"recipesync/internal/domain/settings"
)

type SettingsRepository struct {
	s *Storage
}

func NewSettingsRepository(s *Storage) *SettingsRepository {
	return &SettingsRepository{s: s}
}

func (r *SettingsRepository) Load(ctx context.Context) (*settings.Settings, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`)
	return getJSON[settings.Settings](row, settings.ErrNotFound)
}

func (r *SettingsRepository) Save(ctx context.Context, st settings.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO settings (id, data) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, string(data))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
