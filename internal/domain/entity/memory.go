package entity

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository хранит сущности в памяти процесса. Запись в сущность
// сериализуется общим мьютексом.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[int]map[Key]*Entity
	applied  map[int]map[Key]map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[int]map[Key]*Entity),
		applied:  make(map[int]map[Key]map[string]int64),
	}
}

func (r *MemoryRepository) Get(_ context.Context, accountID int, key Key) (*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.accounts[accountID][key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context, accountID int) ([]*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Entity, 0, len(r.accounts[accountID]))
	for _, e := range r.accounts[accountID] {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepository) Changes(_ context.Context, accountID int, cur Cursor, limit int) ([]*Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Entity
	for _, e := range r.accounts[accountID] {
		if cur.Precedes(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].Key().Less(out[j].Key())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) WithinEntity(_ context.Context, accountID int, key Key, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{repo: r, accountID: accountID, key: key}
	return fn(tx)
}

// Put записывает сущность напрямую, минуя операции устройств
func (r *MemoryRepository) Put(accountID int, e *Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(accountID, e)
}

func (r *MemoryRepository) put(accountID int, e *Entity) {
	if r.accounts[accountID] == nil {
		r.accounts[accountID] = make(map[Key]*Entity)
	}
	r.accounts[accountID][e.Key()] = e.Clone()
}

type memoryTx struct {
	repo      *MemoryRepository
	accountID int
	key       Key
}

func (t *memoryTx) Current() *Entity {
	e, ok := t.repo.accounts[t.accountID][t.key]
	if !ok {
		return nil
	}
	return e.Clone()
}

func (t *memoryTx) AppliedSeq(deviceID string) int64 {
	return t.repo.applied[t.accountID][t.key][deviceID]
}

func (t *memoryTx) Save(e *Entity, deviceID string, seq int64) error {
	t.repo.put(t.accountID, e)

	if t.repo.applied[t.accountID] == nil {
		t.repo.applied[t.accountID] = make(map[Key]map[string]int64)
	}
	if t.repo.applied[t.accountID][t.key] == nil {
		t.repo.applied[t.accountID][t.key] = make(map[string]int64)
	}
	if seq > t.repo.applied[t.accountID][t.key][deviceID] {
		t.repo.applied[t.accountID][t.key][deviceID] = seq
	}
	return nil
}
