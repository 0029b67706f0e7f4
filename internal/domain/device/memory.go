package device

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository хранит устройства в памяти процесса
type MemoryRepository struct {
	mu      sync.Mutex
	devices map[int]map[string]*DeviceInfo
	revoked map[int]map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		devices: make(map[int]map[string]*DeviceInfo),
		revoked: make(map[int]map[string]time.Time),
	}
}

func (r *MemoryRepository) Get(_ context.Context, accountID int, deviceID string) (*DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[accountID][deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, d *DeviceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.devices[d.AccountID] == nil {
		r.devices[d.AccountID] = make(map[string]*DeviceInfo)
	}
	cp := *d
	cp.IsCurrentDevice = false
	r.devices[d.AccountID][d.ID] = &cp
	return nil
}

func (r *MemoryRepository) List(_ context.Context, accountID int) ([]*DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*DeviceInfo, 0, len(r.devices[accountID]))
	for _, d := range r.devices[accountID] {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, accountID int, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.devices[accountID], deviceID)
	if r.revoked[accountID] == nil {
		r.revoked[accountID] = make(map[string]time.Time)
	}
	r.revoked[accountID][deviceID] = at
	return nil
}

func (r *MemoryRepository) IsRevoked(_ context.Context, accountID int, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.revoked[accountID][deviceID]
	return ok, nil
}
