package backup

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// Vault хранилище артефактов резервных копий
type Vault interface {
	Put(ctx context.Context, key string, data []byte) error
	// Open ErrArtifactAbsent, если артефакта нет
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete отсутствие артефакта ошибкой не считается
	Delete(ctx context.Context, key string) error
	// URL прямая ссылка на артефакт; пустая строка, если хранилище ее не выдает
	URL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MemoryVault хранит артефакты в памяти процесса
type MemoryVault struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{items: make(map[string][]byte)}
}

func (v *MemoryVault) Put(_ context.Context, key string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items[key] = append([]byte(nil), data...)
	return nil
}

func (v *MemoryVault) Open(_ context.Context, key string) (io.ReadCloser, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	data, ok := v.items[key]
	if !ok {
		return nil, ErrArtifactAbsent
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (v *MemoryVault) Delete(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.items, key)
	return nil
}

func (v *MemoryVault) URL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

// Len число хранимых артефактов
func (v *MemoryVault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}

// Corrupt портит артефакт, оставляя его на месте
func (v *MemoryVault) Corrupt(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if data, ok := v.items[key]; ok && len(data) > 0 {
		data[len(data)/2] ^= 0xff
	}
}
