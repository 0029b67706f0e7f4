package restore

import "context"

type Repository interface {
	Save(ctx context.Context, r *Restore) error
	Get(ctx context.Context, id string) (*Restore, error)
	List(ctx context.Context) ([]*Restore, error)
}
