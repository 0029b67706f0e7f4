package conflict

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	"recipesync/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *testutil.StubClock) {
	t.Helper()
	clk := testutil.FixedClock()
	s, err := Open(context.Background(), NewMemoryRepository(), clk, testutil.NewStubIDGenerator("conflict"), slog.Default())
	require.NoError(t, err)
	return s, clk
}

func openConflict(id string, localAt time.Time, fields ...string) Conflict {
	changes := make(map[string]any, len(fields))
	for _, f := range fields {
		changes[f] = "local " + f
	}
	return Conflict{
		EntityType:      entity.TypeRecipe,
		EntityID:        id,
		LocalVersion:    &entity.Entity{Type: entity.TypeRecipe, ID: id, Fields: changes},
		RemoteVersion:   &entity.Entity{Type: entity.TypeRecipe, ID: id, Fields: map[string]any{"title": "remote"}, Version: 2},
		LocalChanges:    changes,
		RemoteChanged:   fields,
		LocalTimestamp:  localAt,
		RemoteTimestamp: localAt.Add(time.Minute),
		ConflictFields:  fields,
	}
}

func TestStore_SupersedeInPlace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, superseded, err := s.Record(ctx, openConflict("r1", base.Add(time.Minute), "title"))
	require.NoError(t, err)
	assert.False(t, superseded)

	second, superseded, err := s.Record(ctx, openConflict("r1", base.Add(5*time.Minute), "notes"))
	require.NoError(t, err)
	assert.True(t, superseded)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []string{"notes", "title"}, second.ConflictFields)
	assert.Equal(t, base.Add(time.Minute), second.LocalTimestamp, "earliest local timestamp is carried forward")
	assert.Equal(t, 1, s.OpenCount())
}

func TestStore_ResolveIsFinal(t *testing.T) {
	ctx := context.Background()
	s, clk := newTestStore(t)

	c, _, err := s.Record(ctx, openConflict("r1", base, "title"))
	require.NoError(t, err)

	var applied []Decision
	apply := func(_ context.Context, _ *Conflict, d Decision) error {
		applied = append(applied, d)
		return nil
	}

	resolved, err := s.Resolve(ctx, c.ID, ResolutionLocal, nil, "user", apply)
	require.NoError(t, err)
	assert.Equal(t, ResolutionLocal, resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, clk.Now(), *resolved.ResolvedAt)
	assert.Equal(t, "user", resolved.ResolvedBy)
	require.Len(t, applied, 1)
	assert.Equal(t, map[string]any{"title": "local title"}, applied[0].Patch)

	_, err = s.Resolve(ctx, c.ID, ResolutionRemote, nil, "user", apply)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.Equal(t, 0, s.OpenCount())

	// a new divergence after resolution opens a fresh conflict
	next, superseded, err := s.Record(ctx, openConflict("r1", base, "title"))
	require.NoError(t, err)
	assert.False(t, superseded)
	assert.NotEqual(t, c.ID, next.ID)
}

func TestStore_MergeIrreconcilableStaysOpen(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	c, _, err := s.Record(ctx, openConflict("r1", base, "title", "notes"))
	require.NoError(t, err)

	got, err := s.Resolve(ctx, c.ID, ResolutionMerge, map[string]any{"notes": "merged"}, "user", nil)
	assert.ErrorIs(t, err, ErrIrreconcilable)
	assert.True(t, got.Open())
	assert.Equal(t, []string{"title"}, got.ConflictFields)
	assert.Equal(t, 1, s.OpenCount())

	_, err = s.Resolve(ctx, c.ID, ResolutionMerge, map[string]any{"notes": "merged", "title": "t"}, "user", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.OpenCount())
}

func TestStore_ResolveAll(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 1; i <= 3; i++ {
		_, _, err := s.Record(ctx, openConflict(fmt.Sprintf("r%d", i), base, "title"))
		require.NoError(t, err)
	}
	require.Equal(t, 3, s.OpenCount())

	// конфликт, открытый во время обхода, не должен попасть в него
	opened := false
	apply := func(ctx context.Context, _ *Conflict, _ Decision) error {
		if !opened {
			opened = true
			_, _, err := s.Record(ctx, openConflict("late", base, "title"))
			return err
		}
		return nil
	}

	n, err := s.ResolveAll(ctx, ResolutionRemote, "bulk", apply)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, s.OpenCount())

	all, _ := s.List(Page{Limit: 10})
	resolved := 0
	for _, c := range all {
		if c.EntityID == "late" {
			assert.True(t, c.Open())
			continue
		}
		assert.Equal(t, ResolutionRemote, c.Resolution)
		assert.NotNil(t, c.ResolvedAt)
		resolved++
	}
	assert.Equal(t, 3, resolved)
}

func TestStore_ReopenAndReset(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	clk := testutil.FixedClock()
	s, err := Open(ctx, repo, clk, testutil.NewStubIDGenerator("c"), slog.Default())
	require.NoError(t, err)

	c, _, err := s.Record(ctx, openConflict("r1", base, "title"))
	require.NoError(t, err)

	reopened, err := Open(ctx, repo, clk, testutil.NewStubIDGenerator("c2"), slog.Default())
	require.NoError(t, err)
	got, ok := reopened.OpenFor(entity.Key{Type: entity.TypeRecipe, ID: "r1"})
	require.True(t, ok)
	assert.Equal(t, c.ID, got.ID)

	require.NoError(t, reopened.Reset(ctx))
	assert.Equal(t, 0, reopened.OpenCount())
	_, err = reopened.Get(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

type flakyRepository struct {
	*MemoryRepository
	failSave bool
}

func (r *flakyRepository) Save(ctx context.Context, c *Conflict) error {
	if r.failSave {
		return errors.New("disk i/o error")
	}
	return r.MemoryRepository.Save(ctx, c)
}

func TestStore_ResolveFailureKeepsConflictOpen(t *testing.T) {
	tests := []struct {
		name      string
		failSave  bool
		applyErr  error
		wantApply int
	}{
		{name: "ошибка применения откатывает решение", applyErr: errors.New("queue full"), wantApply: 1},
		{name: "ошибка сохранения не доходит до применения", failSave: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := &flakyRepository{MemoryRepository: NewMemoryRepository()}
			s, err := Open(ctx, repo, testutil.FixedClock(), testutil.NewStubIDGenerator("conflict"), slog.Default())
			require.NoError(t, err)

			c, _, err := s.Record(ctx, openConflict("r1", base, "title"))
			require.NoError(t, err)

			applied := 0
			apply := func(context.Context, *Conflict, Decision) error {
				applied++
				return tt.applyErr
			}
			repo.failSave = tt.failSave
			_, err = s.Resolve(ctx, c.ID, ResolutionLocal, nil, "user", apply)
			require.Error(t, err)
			repo.failSave = false

			assert.Equal(t, tt.wantApply, applied)
			assert.Equal(t, 1, s.OpenCount())
			got, err := s.Get(c.ID)
			require.NoError(t, err)
			assert.True(t, got.Open())

			persisted, err := repo.LoadAll(ctx)
			require.NoError(t, err)
			require.Len(t, persisted, 1)
			assert.True(t, persisted[0].Open())

			// после устранения ошибки конфликт разрешается
			resolved, err := s.Resolve(ctx, c.ID, ResolutionLocal, nil, "user", func(context.Context, *Conflict, Decision) error { return nil })
			require.NoError(t, err)
			assert.Equal(t, ResolutionLocal, resolved.Resolution)
			assert.Zero(t, s.OpenCount())
		})
	}
}
