package cache

import "context"

// Repository хранение кэша. ReplaceAll заменяет содержимое целиком и атомарно.
type Repository interface {
	Load(ctx context.Context) (State, error)
	ReplaceAll(ctx context.Context, st State) error
}
