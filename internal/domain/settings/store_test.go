package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/conflict"
)

func TestStore_OpenSavesDefaults(t *testing.T) {
	repo := NewMemoryRepository()
	s, err := Open(context.Background(), repo, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, Default(), s.Get())

	saved, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), *saved)
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, NewMemoryRepository(), slog.Default())
	require.NoError(t, err)

	var notified Settings
	s.OnChange(func(next Settings) { notified = next })

	next := Default()
	next.SyncInterval = 30
	next.ConflictResolution = conflict.PolicyNewest
	got, err := s.Update(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, next, got)
	assert.Equal(t, next, s.Get())
	assert.Equal(t, next, notified)
}

func TestStore_UpdateValidation(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, NewMemoryRepository(), slog.Default())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero interval", func(s *Settings) { s.SyncInterval = 0 }},
		{"zero max backups", func(s *Settings) { s.MaxBackups = 0 }},
		{"merge is not a default policy", func(s *Settings) { s.ConflictResolution = conflict.PolicyMerge }},
		{"unknown frequency", func(s *Settings) { s.BackupFrequency = "hourly" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Default()
			tt.mutate(&next)
			_, err := s.Update(ctx, next)
			assert.ErrorIs(t, err, ErrInvalidSettings)
			assert.Equal(t, Default(), s.Get())
		})
	}
}

func TestFrequency_Due(t *testing.T) {
	last := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		f    Frequency
		now  time.Time
		want bool
	}{
		{FrequencyDaily, last.Add(23 * time.Hour), false},
		{FrequencyDaily, last.Add(24 * time.Hour), true},
		{FrequencyWeekly, last.AddDate(0, 0, 6), false},
		{FrequencyWeekly, last.AddDate(0, 0, 7), true},
		{FrequencyMonthly, last.AddDate(0, 0, 20), false},
		{FrequencyMonthly, last.AddDate(0, 1, 1), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.f.Due(last, tt.now), "%s at %s", tt.f, tt.now)
	}
	assert.True(t, FrequencyDaily.Due(time.Time{}, last))
}
