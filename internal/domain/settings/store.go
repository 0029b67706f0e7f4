package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"

	"recipesync/internal/utils/validate"
)

// Store текущие настройки с уведомлением подписчиков об изменениях
type Store struct {
	repo Repository
	log  *slog.Logger

	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// Open загружает сохраненные настройки или сохраняет значения по умолчанию
func Open(ctx context.Context, repo Repository, log *slog.Logger) (*Store, error) {
	s := &Store{
		repo: repo,
		log:  log.With("component", "settings"),
	}

	loaded, err := repo.Load(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.current = Default()
		if err := repo.Save(ctx, s.current); err != nil {
			return nil, fmt.Errorf("save default settings: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load settings: %w", err)
	default:
		s.current = *loaded
	}
	return s, nil
}

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update проверяет и сохраняет настройки целиком
func (s *Store) Update(ctx context.Context, next Settings) (Settings, error) {
	if err := validate.Struct(next); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.current = next
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	s.log.Info("settings updated",
		"auto_sync", next.AutoSync,
		"sync_interval", next.SyncInterval,
		"conflict_resolution", next.ConflictResolution,
		"max_backups", next.MaxBackups,
	)
	for _, fn := range listeners {
		fn(next)
	}
	return next, nil
}

// OnChange регистрирует обработчик изменения настроек
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// MemoryRepository хранит настройки в памяти процесса
type MemoryRepository struct {
	mu sync.Mutex
	s  *Settings
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Load(_ context.Context) (*Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s == nil {
		return nil, ErrNotFound
	}
	cp := *r.s
	return &cp, nil
}

func (r *MemoryRepository) Save(_ context.Context, s Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s = &s
	return nil
}
