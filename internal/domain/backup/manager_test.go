package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/settings"
	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/testutil"
)

type staticSettings struct {
	s settings.Settings
}

func (s *staticSettings) Get() settings.Settings { return s.s }

type failingVault struct {
	*MemoryVault
	err error
}

func (v *failingVault) Put(ctx context.Context, key string, data []byte) error {
	if v.err != nil {
		return v.err
	}
	return v.MemoryVault.Put(ctx, key, data)
}

type fixture struct {
	manager  *Manager
	repo     *MemoryRepository
	vault    *failingVault
	settings *staticSettings
	clk      *testutil.StubClock
}

func newFixture(t *testing.T, codec *Codec, entities ...*entity.Entity) *fixture {
	t.Helper()
	c, err := cache.Open(context.Background(), cache.NewMemoryRepository(entities...), slog.Default())
	require.NoError(t, err)
	if codec == nil {
		codec, err = NewCodec("", "")
		require.NoError(t, err)
	}

	f := &fixture{
		repo:     NewMemoryRepository(),
		vault:    &failingVault{MemoryVault: NewMemoryVault()},
		settings: &staticSettings{s: settings.Default()},
		clk:      testutil.FixedClock(),
	}
	f.manager = NewManager(f.repo, f.vault, codec, c, f.settings, f.clk, testutil.NewStubIDGenerator("backup"), DefaultConfig(), slog.Default())
	return f
}

func recipes(n int) []*entity.Entity {
	out := make([]*entity.Entity, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &entity.Entity{
			Type:    entity.TypeRecipe,
			ID:      fmt.Sprintf("r%02d", i),
			Fields:  map[string]any{"title": fmt.Sprintf("Recipe %d", i), "image": "img.png"},
			Version: 1,
		})
	}
	return out
}

func TestManager_CreateAndLoad(t *testing.T) {
	entities := append(recipes(3),
		&entity.Entity{Type: entity.TypeList, ID: "l1", Fields: map[string]any{"items": []any{"milk"}}},
		&entity.Entity{Type: entity.TypePlan, ID: "p1", Fields: map[string]any{"week": "2024-03"}, Deleted: true},
	)

	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionSnappy} {
		t.Run(string(c), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil, entities...)

			b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual, IncludeImages: true, Compression: c})
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, b.Status)
			assert.Equal(t, entity.Counts{Recipes: 3, Lists: 1}, b.ItemsCount)
			assert.Positive(t, b.Size)
			assert.NotEmpty(t, b.Checksum)
			assert.Equal(t, "/api/v1/backups/backup-1/download", b.DownloadURL)
			require.NotNil(t, b.CompletedAt)
			assert.Nil(t, b.ExpiresAt)

			art, err := f.manager.Load(ctx, b.ID)
			require.NoError(t, err)
			require.Len(t, art.Entities, 4)
			assert.Equal(t, b.ItemsCount, entity.CountOf(art.Entities))
			assert.Equal(t, "img.png", art.Entities[1].Fields["image"])
		})
	}
}

func TestManager_CreateWithoutImages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(2)...)

	b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
	require.NoError(t, err)
	assert.Equal(t, CompressionGzip, b.Compression)

	art, err := f.manager.Load(ctx, b.ID)
	require.NoError(t, err)
	for _, e := range art.Entities {
		assert.NotContains(t, e.Fields, "image")
		assert.Contains(t, e.Fields, "title")
	}
}

func TestManager_Encrypted(t *testing.T) {
	ctx := context.Background()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	codec, err := NewCodec(id.Recipient().String(), id.String())
	require.NoError(t, err)
	f := newFixture(t, codec, recipes(2)...)

	b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual, Compression: CompressionSnappy})
	require.NoError(t, err)
	assert.True(t, b.Encrypted)

	art, err := f.manager.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, art.Entities, 2)

	// без приватного ключа копию прочитать нельзя
	writeOnly, err := NewCodec(id.Recipient().String(), "")
	require.NoError(t, err)
	rc, _, err := f.manager.Open(ctx, b.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_, err = writeOnly.Decode(data, b.Compression, b.Encrypted)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestManager_CreateValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.manager.Create(context.Background(), CreateRequest{Type: "hourly"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.manager.Create(context.Background(), CreateRequest{Type: TypeManual, Compression: "zstd"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestManager_FailedBackupKeepsError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(1)...)
	f.vault.err = errors.New("disk full")

	b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
	require.Error(t, err)
	require.NotNil(t, b)
	assert.Equal(t, StatusFailed, b.Status)
	assert.Contains(t, b.Error, "disk full")

	stored, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "disk full")

	_, err = f.manager.Load(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotAvailable)

	f.vault.err = nil
	retried, err := f.manager.Retry(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, retried.Status)
	_, err = f.manager.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.manager.Retry(ctx, retried.ID)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestManager_CorruptArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(3)...)

	b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual, Compression: CompressionGzip})
	require.NoError(t, err)

	f.vault.Corrupt(b.Artifact)
	_, err = f.manager.Load(ctx, b.ID)
	assert.ErrorIs(t, err, ErrCorruptBackup)

	require.NoError(t, f.vault.MemoryVault.Delete(ctx, b.Artifact))
	_, err = f.manager.Load(ctx, b.ID)
	assert.ErrorIs(t, err, ErrCorruptBackup)
}

func TestManager_RetentionExpiresAutomaticFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(1)...)
	f.settings.s.MaxBackups = 5

	var manual, automatic []*Backup
	for i := 0; i < 3; i++ {
		b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
		require.NoError(t, err)
		manual = append(manual, b)
		f.clk.Advance(time.Hour)
	}
	for i := 0; i < 5; i++ {
		b, err := f.manager.Create(ctx, CreateRequest{Type: TypeAutomatic})
		require.NoError(t, err)
		automatic = append(automatic, b)
		f.clk.Advance(time.Hour)
	}

	for _, b := range manual {
		got, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status, "manual %s must survive while older automatic exist", b.ID)
	}
	for i, b := range automatic {
		got, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, StatusExpired, got.Status)
			assert.Empty(t, got.DownloadURL)
		} else {
			assert.Equal(t, StatusCompleted, got.Status)
		}
	}
	assert.Equal(t, 5, f.vault.Len())

	// метаданные истекших копий сохраняются
	all, more, err := f.manager.List(ctx, Page{Limit: 100})
	require.NoError(t, err)
	assert.False(t, more)
	assert.Len(t, all, 8)
	assert.Equal(t, automatic[4].ID, all[0].ID, "newest first")

	_, _, err = f.manager.Open(ctx, automatic[0].ID)
	assert.ErrorIs(t, err, ErrNotAvailable)
}

func TestManager_RetentionFallsBackToManual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(1)...)
	f.settings.s.MaxBackups = 5

	var created []*Backup
	for i := 0; i < 7; i++ {
		b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
		require.NoError(t, err)
		created = append(created, b)
		f.clk.Advance(time.Minute)
	}

	for i, b := range created {
		got, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, StatusExpired, got.Status)
		} else {
			assert.Equal(t, StatusCompleted, got.Status)
		}
	}
}

func TestSelectExpired(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC) }
	backups := []*Backup{
		{ID: "m1", Type: TypeManual, Status: StatusCompleted, CreatedAt: at(1)},
		{ID: "a1", Type: TypeAutomatic, Status: StatusCompleted, CreatedAt: at(2)},
		{ID: "m2", Type: TypeManual, Status: StatusCompleted, CreatedAt: at(3)},
		{ID: "a2", Type: TypeAutomatic, Status: StatusCompleted, CreatedAt: at(4)},
		{ID: "f1", Type: TypeAutomatic, Status: StatusFailed, CreatedAt: at(0)},
		{ID: "x1", Type: TypeAutomatic, Status: StatusExpired, CreatedAt: at(0)},
	}

	tests := []struct {
		max  int
		want []string
	}{
		{max: 4, want: nil},
		{max: 3, want: []string{"a1"}},
		{max: 2, want: []string{"a1", "a2"}},
		{max: 1, want: []string{"a1", "a2", "m1"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("max=%d", tt.max), func(t *testing.T) {
			var got []string
			for _, b := range selectExpired(backups, tt.max) {
				got = append(got, b.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManager_SweepExpiresAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(1)...)

	auto, err := f.manager.Create(ctx, CreateRequest{Type: TypeAutomatic})
	require.NoError(t, err)
	require.NotNil(t, auto.ExpiresAt)
	assert.Equal(t, f.clk.Now().Add(DefaultConfig().AutomaticTTL), *auto.ExpiresAt)
	manual, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
	require.NoError(t, err)

	n, err := f.manager.Sweep(ctx, f.clk.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.manager.Sweep(ctx, auto.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.manager.Get(ctx, auto.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	got, err = f.manager.Get(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestManager_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(1)...)

	b, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
	require.NoError(t, err)
	require.Equal(t, 1, f.vault.Len())

	require.NoError(t, f.manager.Delete(ctx, b.ID))
	assert.Zero(t, f.vault.Len())
	_, err = f.manager.Get(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.manager.Delete(ctx, b.ID), ErrNotFound)
}

func TestScheduler_OnCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(2)...)
	f.settings.s.BackupFrequency = settings.FrequencyDaily
	s := NewScheduler(f.manager, nil, f.settings, f.clk, time.Hour, slog.Default())

	clean := syncdomain.CycleResult{ID: "c1", Pushed: 1}
	dirty := syncdomain.CycleResult{ID: "c2", Conflicts: 1}

	assert.Nil(t, s.OnCycle(ctx, dirty), "no backup after a conflicted cycle")

	first := s.OnCycle(ctx, clean)
	require.NotNil(t, first)
	assert.Equal(t, TypeAutomatic, first.Type)

	f.clk.Advance(time.Hour)
	assert.Nil(t, s.OnCycle(ctx, clean), "frequency not elapsed")

	f.clk.Advance(24 * time.Hour)
	second := s.OnCycle(ctx, clean)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	f.settings.s.AutoBackup = false
	f.clk.Advance(48 * time.Hour)
	assert.Nil(t, s.OnCycle(ctx, clean))
}

func TestManager_RecoverInterrupted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, recipes(2)...)

	done, err := f.manager.Create(ctx, CreateRequest{Type: TypeManual})
	require.NoError(t, err)
	stale := &Backup{ID: "stale", Type: TypeAutomatic, Status: StatusCreating, Compression: CompressionGzip, CreatedAt: f.clk.Now()}
	stale.Artifact = artifactKey(stale)
	require.NoError(t, f.repo.Save(ctx, stale))

	n, err := f.manager.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.manager.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, ErrInterrupted.Error(), got.Error)

	untouched, err := f.manager.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, untouched.Status)

	retried, err := f.manager.Retry(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, retried.Status)
	assert.Equal(t, 2, retried.ItemsCount.Recipes)
}
