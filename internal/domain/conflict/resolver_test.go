package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipesync/internal/domain/entity"
)

var (
	base   = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	later  = base.Add(time.Minute)
	latest = base.Add(2 * time.Minute)
)

func recipe(fields map[string]any) *entity.Entity {
	return &entity.Entity{Type: entity.TypeRecipe, ID: "r1", Fields: fields, Version: 3, UpdatedAt: later}
}

// titleClash оба устройства изменили title
func titleClash(localAt, remoteAt time.Time) Input {
	local := recipe(map[string]any{"title": "Local pie", "servings": 4})
	remote := recipe(map[string]any{"title": "Remote pie", "servings": 4})
	return Input{
		Local:           local,
		Remote:          remote,
		LocalFields:     map[string]any{"title": "Local pie"},
		RemoteFields:    []string{"title"},
		LocalTimestamp:  localAt,
		RemoteTimestamp: remoteAt,
	}
}

func TestResolve_Policies(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		policy    Policy
		wantOpen  bool
		wantRes   Resolution
		wantTitle string
		wantPatch map[string]any
	}{
		{
			name:      "local keeps local",
			in:        titleClash(later, latest),
			policy:    PolicyLocal,
			wantRes:   ResolutionLocal,
			wantTitle: "Local pie",
			wantPatch: map[string]any{"title": "Local pie"},
		},
		{
			name:      "remote keeps remote",
			in:        titleClash(latest, later),
			policy:    PolicyRemote,
			wantRes:   ResolutionRemote,
			wantTitle: "Remote pie",
		},
		{
			name:      "newest picks later local",
			in:        titleClash(latest, later),
			policy:    PolicyNewest,
			wantRes:   ResolutionLocal,
			wantTitle: "Local pie",
			wantPatch: map[string]any{"title": "Local pie"},
		},
		{
			name:      "newest picks later remote",
			in:        titleClash(later, latest),
			policy:    PolicyNewest,
			wantRes:   ResolutionRemote,
			wantTitle: "Remote pie",
		},
		{
			name:      "newest tie goes to remote",
			in:        titleClash(later, later),
			policy:    PolicyNewest,
			wantRes:   ResolutionRemote,
			wantTitle: "Remote pie",
		},
		{
			name:     "ask leaves conflict open",
			in:       titleClash(later, latest),
			policy:   PolicyAsk,
			wantOpen: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Resolve(tt.in, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, []string{"title"}, d.ConflictFields)
			assert.Equal(t, tt.wantOpen, d.Open)
			if tt.wantOpen {
				assert.Nil(t, d.Entity)
				assert.False(t, d.Push())
				return
			}
			assert.Equal(t, tt.wantRes, d.Resolution)
			assert.Equal(t, tt.wantTitle, d.Entity.Fields["title"])
			if tt.wantPatch == nil {
				assert.False(t, d.Push())
			} else {
				assert.Equal(t, tt.wantPatch, d.Patch)
			}
		})
	}
}

func TestResolve_Deterministic(t *testing.T) {
	in := titleClash(later, later)
	first, err := Resolve(in, PolicyNewest)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := Resolve(in, PolicyNewest)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolve_DisjointFieldsMergeAutomatically(t *testing.T) {
	in := Input{
		Local:          recipe(map[string]any{"title": "Pie", "servings": 6}),
		Remote:         recipe(map[string]any{"title": "Apple pie", "servings": 4}),
		LocalFields:    map[string]any{"servings": 6},
		RemoteFields:   []string{"title"},
		LocalTimestamp: later,
	}

	for _, policy := range []Policy{PolicyLocal, PolicyRemote, PolicyNewest, PolicyAsk} {
		d, err := Resolve(in, policy)
		require.NoError(t, err)
		assert.False(t, d.Open, string(policy))
		assert.Empty(t, d.ConflictFields)
		assert.Equal(t, ResolutionMerge, d.Resolution)
		assert.Equal(t, "Apple pie", d.Entity.Fields["title"])
		assert.Equal(t, 6, d.Entity.Fields["servings"])
		assert.Equal(t, map[string]any{"servings": 6}, d.Patch)
	}
}

func TestResolve_Merge(t *testing.T) {
	in := Input{
		Local:        recipe(map[string]any{"title": "Local", "notes": "salt", "servings": 4}),
		Remote:       recipe(map[string]any{"title": "Remote", "notes": "", "servings": 8}),
		LocalFields:  map[string]any{"title": "Local", "notes": "salt"},
		RemoteFields: []string{"title", "servings"},
	}

	d, err := Resolve(in, PolicyMerge)
	assert.ErrorIs(t, err, ErrIrreconcilable)
	assert.True(t, d.Open)
	assert.Equal(t, []string{"title"}, d.ConflictFields)

	in.MergedData = map[string]any{"title": "Merged"}
	d, err = Resolve(in, PolicyMerge)
	require.NoError(t, err)
	assert.Equal(t, ResolutionMerge, d.Resolution)
	assert.Equal(t, map[string]any{"title": "Merged", "notes": "salt", "servings": 8}, d.Entity.Fields)
	assert.Equal(t, map[string]any{"title": "Merged", "notes": "salt"}, d.Patch)
}

func TestResolve_DeleteAgainstEdit(t *testing.T) {
	in := Input{
		Local:        recipe(map[string]any{"title": "Pie"}),
		Remote:       recipe(map[string]any{"title": "Better pie"}),
		LocalDeleted: true,
		RemoteFields: []string{"title"},
	}
	assert.Equal(t, []string{"title"}, Overlap(in))

	d, err := Resolve(in, PolicyLocal)
	require.NoError(t, err)
	assert.True(t, d.Delete)
	assert.True(t, d.Push())

	d, err = Resolve(in, PolicyRemote)
	require.NoError(t, err)
	assert.False(t, d.Push())
	assert.False(t, d.Entity.Deleted)
}

func TestResolve_MissingRemote(t *testing.T) {
	in := Input{
		Local:       recipe(map[string]any{"title": "New"}),
		LocalFields: map[string]any{"title": "New"},
	}
	d, err := Resolve(in, PolicyAsk)
	require.NoError(t, err)
	assert.False(t, d.Open)
	assert.Equal(t, map[string]any{"title": "New"}, d.Patch)
}

func TestResolve_InvalidPolicy(t *testing.T) {
	_, err := Resolve(titleClash(later, later), "coin-flip")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
