package backup

import "context"

// Repository хранилище метаданных резервных копий
type Repository interface {
	Save(ctx context.Context, b *Backup) error
	Get(ctx context.Context, id string) (*Backup, error)
	List(ctx context.Context) ([]*Backup, error)
	Delete(ctx context.Context, id string) error
}
