package settings

import "context"

type Repository interface {
	// Load возвращает ErrNotFound, если настройки еще не сохранялись
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s Settings) error
}
