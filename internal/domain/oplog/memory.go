package oplog

import (
	"context"
	"sync"

	"recipesync/internal/domain/entity"
)

// MemoryRepository хранит журнал в памяти процесса
type MemoryRepository struct {
	mu   sync.Mutex
	ops  map[string]*Operation
	seqs map[entity.Key]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		ops:  make(map[string]*Operation),
		seqs: make(map[entity.Key]int64),
	}
}

func (r *MemoryRepository) Save(_ context.Context, op *Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.ID] = op.clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, id)
	return nil
}

func (r *MemoryRepository) LoadAll(_ context.Context) ([]*Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op.clone())
	}
	return out, nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = make(map[string]*Operation)
	return nil
}

func (r *MemoryRepository) SaveSequence(_ context.Context, key entity.Key, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[key] = seq
	return nil
}

func (r *MemoryRepository) LoadSequences(_ context.Context) (map[entity.Key]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[entity.Key]int64, len(r.seqs))
	for k, v := range r.seqs {
		out[k] = v
	}
	return out, nil
}
