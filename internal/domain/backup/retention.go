package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"recipesync/internal/metrics"
)

// selectExpired выбирает копии сверх лимита max: сначала самые старые
// автоматические, затем самые старые ручные
func selectExpired(backups []*Backup, max int) []*Backup {
	var automatic, manual []*Backup
	for _, b := range backups {
		if b.Status != StatusCompleted {
			continue
		}
		if b.Type == TypeAutomatic {
			automatic = append(automatic, b)
		} else {
			manual = append(manual, b)
		}
	}

	excess := len(automatic) + len(manual) - max
	if max < 1 || excess <= 0 {
		return nil
	}
	sortOldestFirst(automatic)
	sortOldestFirst(manual)

	candidates := append(automatic, manual...)
	return candidates[:excess]
}

func sortOldestFirst(bs []*Backup) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].CreatedAt.Equal(bs[j].CreatedAt) {
			return bs[i].CreatedAt.Before(bs[j].CreatedAt)
		}
		return bs[i].ID < bs[j].ID
	})
}

// applyRetention вызывается под m.mu
func (m *Manager) applyRetention(ctx context.Context) (int, error) {
	all, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}

	max := m.settings.Get().MaxBackups
	var errs []error
	n := 0
	for _, b := range selectExpired(all, max) {
		if err := m.expire(ctx, b, "retention"); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Sweep принудительно истекают копии с наступившим expiresAt
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list backups: %w", err)
	}
	var errs []error
	n := 0
	for _, b := range all {
		if b.Status != StatusCompleted || b.ExpiresAt == nil || b.ExpiresAt.After(now) {
			continue
		}
		if err := m.expire(ctx, b, "expires_at"); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// expire удаляет артефакт; метаданные остаются для аудита
func (m *Manager) expire(ctx context.Context, b *Backup, reason string) error {
	if err := m.vault.Delete(ctx, b.Artifact); err != nil {
		return fmt.Errorf("delete artifact %s: %w", b.ID, err)
	}
	b.Status = StatusExpired
	b.DownloadURL = ""
	if err := m.repo.Save(ctx, b); err != nil {
		return fmt.Errorf("save backup %s: %w", b.ID, err)
	}
	metrics.BackupsExpired.Inc()
	m.log.Info("backup expired", "id", b.ID, "type", b.Type, "reason", reason)
	return nil
}
