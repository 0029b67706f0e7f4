package backup

import (
	"context"
	"sync"
)

// MemoryRepository хранит метаданные в памяти процесса
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*Backup
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Backup)}
}

func (r *MemoryRepository) Save(_ context.Context, b *Backup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*Backup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Backup, 0, len(r.items))
	for _, b := range r.items {
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}
