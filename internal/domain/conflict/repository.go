package conflict

import "context"

// Repository долговременное хранение конфликтов устройства
type Repository interface {
	Save(ctx context.Context, c *Conflict) error
	LoadAll(ctx context.Context) ([]*Conflict, error)
	DeleteAll(ctx context.Context) error
}
