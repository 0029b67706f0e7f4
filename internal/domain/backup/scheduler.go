package backup

import (
	"context"
	"time"

	"golang.org/x/exp/slog"

	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/utils/clock"
)

// CycleSource поток итогов циклов синхронизации
type CycleSource interface {
	Cycles() (<-chan syncdomain.CycleResult, func())
}

// Scheduler создает автоматические копии после чистых циклов синхронизации
// и истекает копии по expiresAt
type Scheduler struct {
	manager  *Manager
	cycles   CycleSource
	settings SettingsSource
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
}

func NewScheduler(m *Manager, cycles CycleSource, st SettingsSource, clk clock.Clock, sweepInterval time.Duration, log *slog.Logger) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = DefaultConfig().SweepInterval
	}
	return &Scheduler{
		manager:  m,
		cycles:   cycles,
		settings: st,
		clock:    clk,
		interval: sweepInterval,
		log:      log.With("component", "backup_scheduler"),
	}
}

// Serve работает до отмены ctx
func (s *Scheduler) Serve(ctx context.Context) error {
	results, cancel := s.cycles.Cycles()
	defer cancel()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		case res := <-results:
			s.OnCycle(ctx, res)
		}
	}
}

// OnCycle обрабатывает итог одного цикла
func (s *Scheduler) OnCycle(ctx context.Context, res syncdomain.CycleResult) *Backup {
	s.sweep(ctx)
	if !res.Clean() {
		return nil
	}

	st := s.settings.Get()
	if !st.AutoBackup {
		return nil
	}
	last, err := s.manager.LastAutomatic(ctx)
	if err != nil {
		s.log.Error("read last automatic backup", "error", err)
		return nil
	}
	if !st.BackupFrequency.Due(last, s.clock.Now()) {
		return nil
	}

	b, err := s.manager.Create(ctx, CreateRequest{Type: TypeAutomatic, Compression: CompressionGzip})
	if err != nil {
		s.log.Error("automatic backup failed", "cycle", res.ID, "error", err)
		return b
	}
	s.log.Info("automatic backup created", "id", b.ID, "cycle", res.ID)
	return b
}

func (s *Scheduler) sweep(ctx context.Context) {
	n, err := s.manager.Sweep(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("sweep expired backups", "error", err)
	}
	if n > 0 {
		s.log.Info("expired backups swept", "count", n)
	}
}

func (s *Scheduler) String() string {
	return "backup-scheduler"
}
