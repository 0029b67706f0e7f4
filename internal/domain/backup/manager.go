package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/settings"
	"recipesync/internal/metrics"
	"recipesync/internal/utils/clock"
	"recipesync/internal/utils/validate"
)

// Source источник снимка сущностей
type Source interface {
	Snapshot() *cache.Snapshot
}

// SettingsSource текущие настройки синхронизации
type SettingsSource interface {
	Get() settings.Settings
}

// Manager создает резервные копии из офлайн-кэша и управляет их хранением.
// Копия снимается с кэша, а не с сервера, поэтому не конкурирует с синхронизацией.
type Manager struct {
	repo     Repository
	vault    Vault
	codec    *Codec
	source   Source
	settings SettingsSource
	clock    clock.Clock
	ids      clock.IDGenerator
	cfg      Config
	log      *slog.Logger

	// mu сериализует изменения статусов: создание, хранение, удаление
	mu sync.Mutex
}

func NewManager(repo Repository, vault Vault, codec *Codec, source Source, st SettingsSource, clk clock.Clock, ids clock.IDGenerator, cfg Config, log *slog.Logger) *Manager {
	if cfg.DownloadRoute == "" {
		cfg.DownloadRoute = DefaultConfig().DownloadRoute
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = DefaultConfig().URLTTL
	}
	return &Manager{
		repo:     repo,
		vault:    vault,
		codec:    codec,
		source:   source,
		settings: st,
		clock:    clk,
		ids:      ids,
		cfg:      cfg,
		log:      log.With("component", "backup_manager"),
	}
}

// Create снимает копию. Неудачная копия сохраняется со статусом failed и текстом ошибки.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Backup, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Compression == "" {
		req.Compression = CompressionGzip
	}

	now := m.clock.Now()
	b := &Backup{
		ID:            m.ids.New(),
		Type:          req.Type,
		Status:        StatusCreating,
		Compression:   req.Compression,
		IncludeImages: req.IncludeImages,
		Encrypted:     m.codec.Encrypts(),
		CreatedAt:     now,
	}
	b.Artifact = artifactKey(b)
	if req.Type == TypeAutomatic && m.cfg.AutomaticTTL > 0 {
		exp := now.Add(m.cfg.AutomaticTTL)
		b.ExpiresAt = &exp
	}
	if err := m.repo.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save backup: %w", err)
	}

	if err := m.write(ctx, b, m.source.Snapshot()); err != nil {
		return m.fail(ctx, b, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save backup: %w", err)
	}
	metrics.Backups.WithLabelValues(string(b.Type), string(b.Status)).Inc()
	metrics.BackupBytes.Observe(float64(b.Size))
	m.log.Info("backup created",
		"id", b.ID,
		"type", b.Type,
		"size", b.Size,
		"recipes", b.ItemsCount.Recipes,
		"lists", b.ItemsCount.Lists,
		"plans", b.ItemsCount.Plans,
	)

	if _, err := m.applyRetention(ctx); err != nil {
		m.log.Error("apply retention", "error", err)
	}
	return b.Clone(), nil
}

// write материализует снимок в артефакт. itemsCount считается по тому,
// что реально записано в артефакт.
func (m *Manager) write(ctx context.Context, b *Backup, snap *cache.Snapshot) error {
	var items []*entity.Entity
	for _, e := range snap.Entities() {
		if e.Deleted {
			continue
		}
		if !b.IncludeImages {
			e.Fields = entity.WithoutFields(e.Fields, entity.ImageFields)
		}
		items = append(items, e)
	}

	art := &Artifact{
		Format:        artifactFormat,
		BackupID:      b.ID,
		CreatedAt:     b.CreatedAt,
		IncludeImages: b.IncludeImages,
		Counts:        entity.CountOf(items),
		Entities:      items,
	}
	data, err := m.codec.Encode(art, b.Compression)
	if err != nil {
		return err
	}

	// проверяем, что артефакт читается, и берем счетчики из прочитанного
	written, err := m.codec.Decode(data, b.Compression, b.Encrypted)
	if err != nil && !errors.Is(err, ErrNoIdentity) {
		return fmt.Errorf("verify artifact: %w", err)
	}
	counts := art.Counts
	if written != nil {
		counts = entity.CountOf(written.Entities)
	}

	if err := m.vault.Put(ctx, b.Artifact, data); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}

	done := m.clock.Now()
	b.Status = StatusCompleted
	b.Size = int64(len(data))
	b.ItemsCount = counts
	b.Checksum = Checksum(data)
	b.CompletedAt = &done
	b.Error = ""
	b.DownloadURL = m.downloadURL(ctx, b)
	return nil
}

func (m *Manager) fail(ctx context.Context, b *Backup, cause error) (*Backup, error) {
	b.Status = StatusFailed
	b.Error = cause.Error()
	metrics.Backups.WithLabelValues(string(b.Type), string(b.Status)).Inc()
	m.log.Error("backup failed", "id", b.ID, "type", b.Type, "error", cause)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.repo.Save(ctx, b); err != nil {
		return nil, errors.Join(cause, fmt.Errorf("save backup: %w", err))
	}
	return b.Clone(), fmt.Errorf("create backup: %w", cause)
}

// Recover переводит копии, застрявшие в creating после аварийного
// завершения, в failed. Частичный артефакт удалит Retry или Delete.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	all, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, b := range all {
		if b.Status != StatusCreating {
			continue
		}
		b.Status = StatusFailed
		b.Error = ErrInterrupted.Error()
		if err := m.repo.Save(ctx, b); err != nil {
			return n, fmt.Errorf("recover backup %s: %w", b.ID, err)
		}
		n++
	}
	if n > 0 {
		m.log.Warn("interrupted backups marked failed", "count", n)
	}
	return n, nil
}

// Retry повторяет неудачную копию с теми же параметрами по текущему снимку
func (m *Manager) Retry(ctx context.Context, id string) (*Backup, error) {
	b, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusFailed {
		return nil, fmt.Errorf("%w: backup %s is %s", ErrInvalidRequest, id, b.Status)
	}
	if err := m.vault.Delete(ctx, b.Artifact); err != nil {
		m.log.Warn("delete partial artifact", "id", b.ID, "error", err)
	}
	next, err := m.Create(ctx, CreateRequest{Type: b.Type, IncludeImages: b.IncludeImages, Compression: b.Compression})
	if err != nil {
		return next, err
	}
	// удачный повтор заменяет неудачную запись
	if err := m.repo.Delete(ctx, b.ID); err != nil {
		m.log.Warn("delete failed backup record", "id", b.ID, "error", err)
	}
	return next, nil
}

func (m *Manager) downloadURL(ctx context.Context, b *Backup) string {
	url, err := m.vault.URL(ctx, b.Artifact, m.cfg.URLTTL)
	if err != nil {
		m.log.Warn("presign download url", "id", b.ID, "error", err)
	}
	if url != "" {
		return url
	}
	return fmt.Sprintf(m.cfg.DownloadRoute, b.ID)
}

func (m *Manager) Get(ctx context.Context, id string) (*Backup, error) {
	return m.repo.Get(ctx, id)
}

// List копии, новые первыми
func (m *Manager) List(ctx context.Context, p Page) ([]*Backup, bool, error) {
	all, err := m.repo.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list backups: %w", err)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	page, limit := normalizePage(p.Page, p.Limit)
	start := (page - 1) * limit
	if start >= len(all) {
		return []*Backup{}, false, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], end < len(all), nil
}

// LastAutomatic время последней автоматической копии, кроме неудачных
func (m *Manager) LastAutomatic(ctx context.Context) (time.Time, error) {
	all, err := m.repo.List(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("list backups: %w", err)
	}
	var last time.Time
	for _, b := range all {
		if b.Type == TypeAutomatic && b.Status != StatusFailed && b.CreatedAt.After(last) {
			last = b.CreatedAt
		}
	}
	return last, nil
}

// Delete удаляет артефакт и метаданные
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.vault.Delete(ctx, b.Artifact); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	m.log.Info("backup deleted", "id", id)
	return nil
}

// Open открывает артефакт для скачивания
func (m *Manager) Open(ctx context.Context, id string) (io.ReadCloser, *Backup, error) {
	b, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !b.Available() {
		return nil, b, fmt.Errorf("%w: backup %s is %s", ErrNotAvailable, id, b.Status)
	}
	rc, err := m.vault.Open(ctx, b.Artifact)
	if err != nil {
		return nil, b, fmt.Errorf("open artifact: %w", err)
	}
	return rc, b, nil
}

// Load читает и проверяет снимок для восстановления. Несовпадение
// контрольной суммы или ошибка разбора дают ErrCorruptBackup.
func (m *Manager) Load(ctx context.Context, id string) (*Artifact, error) {
	rc, b, err := m.Open(ctx, id)
	if err != nil {
		if errors.Is(err, ErrArtifactAbsent) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptBackup, err)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	if Checksum(data) != b.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptBackup)
	}
	art, err := m.codec.Decode(data, b.Compression, b.Encrypted)
	if err != nil {
		return nil, err
	}
	if art.Counts != b.ItemsCount {
		return nil, fmt.Errorf("%w: item counts differ from metadata", ErrCorruptBackup)
	}
	return art, nil
}

func artifactKey(b *Backup) string {
	ext := ".json"
	switch b.Compression {
	case CompressionGzip:
		ext += ".gz"
	case CompressionSnappy:
		ext += ".sz"
	}
	if b.Encrypted {
		ext += ".age"
	}
	return "backups/" + b.ID + ext
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
