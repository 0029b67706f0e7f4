package conflict

import (
	"context"
	"sync"
)

// MemoryRepository хранит конфликты в памяти процесса
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*Conflict
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Conflict)}
}

func (r *MemoryRepository) Save(_ context.Context, c *Conflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID] = c.Clone()
	return nil
}

func (r *MemoryRepository) LoadAll(_ context.Context) ([]*Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Conflict, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]*Conflict)
	return nil
}
