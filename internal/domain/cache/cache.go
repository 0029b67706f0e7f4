package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
)

// Cache последнее известное согласованное состояние сущностей устройства.
// Один писатель (координатор или восстановление), много читателей.
type Cache struct {
	repo   Repository
	log    *slog.Logger
	snap   atomic.Pointer[Snapshot]
	writer chan struct{}
}

func Open(ctx context.Context, repo Repository, log *slog.Logger) (*Cache, error) {
	st, err := repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	c := &Cache{
		repo:   repo,
		log:    log.With("component", "offline_cache"),
		writer: make(chan struct{}, 1),
	}
	c.snap.Store(newSnapshot(st))
	return c, nil
}

// Snapshot текущий снимок. Снимок не меняется после получения.
func (c *Cache) Snapshot() *Snapshot {
	return c.snap.Load()
}

// Begin захватывает право записи и возвращает черновик поверх текущего снимка.
// Черновик должен быть завершен Commit или Discard.
func (c *Cache) Begin(ctx context.Context) (*Stage, error) {
	select {
	case c.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cur := c.snap.Load()
	st := &Stage{
		cache:    c,
		entities: make(map[entity.Key]*entity.Entity, len(cur.entities)),
		applied:  make(map[entity.Key]int64, len(cur.applied)),
		cursor:   cur.cursor,
		syncedAt: cur.syncedAt,
	}
	for k, v := range cur.entities {
		st.entities[k] = v
	}
	for k, v := range cur.applied {
		st.applied[k] = v
	}
	return st, nil
}

func (c *Cache) release() {
	<-c.writer
}

// Stage черновик следующего снимка. Не безопасен для конкурентного использования.
type Stage struct {
	cache    *Cache
	entities map[entity.Key]*entity.Entity
	applied  map[entity.Key]int64
	cursor   time.Time
	syncedAt time.Time
	changed  bool
	closed   bool
}

func (s *Stage) Get(key entity.Key) (*entity.Entity, bool) {
	e, ok := s.entities[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (s *Stage) Put(e *entity.Entity) {
	s.entities[e.Key()] = e.Clone()
	s.changed = true
}

func (s *Stage) Delete(key entity.Key) {
	if _, ok := s.entities[key]; ok {
		delete(s.entities, key)
		s.changed = true
	}
}

// SetApplied запоминает, что операция с этим Seq уже применена сервером
func (s *Stage) SetApplied(key entity.Key, seq int64) {
	if seq > s.applied[key] {
		s.applied[key] = seq
		s.changed = true
	}
}

func (s *Stage) Applied(key entity.Key) int64 {
	return s.applied[key]
}

func (s *Stage) SetCursor(t time.Time) {
	if t.After(s.cursor) {
		s.cursor = t
		s.changed = true
	}
}

func (s *Stage) Cursor() time.Time {
	return s.cursor
}

func (s *Stage) MarkSynced(t time.Time) {
	s.syncedAt = t
	s.changed = true
}

// Clear удаляет все сущности и курсор (перебазирование с сервера)
func (s *Stage) Clear() {
	s.entities = make(map[entity.Key]*entity.Entity)
	s.cursor = time.Time{}
	s.changed = true
}

func (s *Stage) Changed() bool {
	return s.changed
}

// Commit сохраняет черновик и атомарно подменяет снимок
func (s *Stage) Commit(ctx context.Context) error {
	if s.closed {
		return ErrStageClosed
	}
	s.closed = true
	defer s.cache.release()

	if !s.changed {
		return nil
	}

	next := &Snapshot{
		entities: s.entities,
		applied:  s.applied,
		cursor:   s.cursor,
		syncedAt: s.syncedAt,
	}
	if err := s.cache.repo.ReplaceAll(ctx, next.state()); err != nil {
		return fmt.Errorf("persist cache: %w", err)
	}
	s.cache.snap.Store(next)
	s.cache.log.Debug("cache snapshot swapped", "entities", len(next.entities))
	return nil
}

// Discard отбрасывает черновик. Повторный вызов безопасен.
func (s *Stage) Discard() {
	if s.closed {
		return
	}
	s.closed = true
	s.cache.release()
}

// MemoryRepository хранит кэш в памяти процесса
type MemoryRepository struct {
	mu sync.Mutex
	st State
}

func NewMemoryRepository(entities ...*entity.Entity) *MemoryRepository {
	return &MemoryRepository{st: State{Entities: entities, Applied: map[entity.Key]int64{}}}
}

func (r *MemoryRepository) Load(_ context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st, nil
}

func (r *MemoryRepository) ReplaceAll(_ context.Context, st State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.st = st
	return nil
}
