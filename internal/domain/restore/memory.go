package restore

import (
	"context"
	"sync"
)

// MemoryRepository хранит восстановления в памяти процесса
type MemoryRepository struct {
	mu    sync.Mutex
	items map[string]*Restore
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*Restore)}
}

func (m *MemoryRepository) Save(_ context.Context, r *Restore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[r.ID] = r.Clone()
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*Restore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) List(_ context.Context) ([]*Restore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Restore, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, r.Clone())
	}
	return out, nil
}
