package restores

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/restore"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Start(ctx context.Context, req restore.Request) (*restore.Restore, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*restore.Restore)
	return r, args.Error(1)
}

func (m *MockEngine) Get(ctx context.Context, id string) (*restore.Restore, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*restore.Restore)
	return r, args.Error(1)
}

func (m *MockEngine) List(ctx context.Context) ([]*restore.Restore, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]*restore.Restore)
	return r, args.Error(1)
}

func (m *MockEngine) Cancel(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func setup(t *testing.T) (humatest.TestAPI, *MockEngine) {
	t.Helper()
	e := &MockEngine{}
	_, api := humatest.New(t)
	NewHandler(e, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, e
}

func TestHandler_Start(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		setup      func(e *MockEngine)
		wantStatus int
	}{
		{
			name: "запуск",
			body: restore.Request{BackupID: "b1", ConflictResolution: restore.PolicySkip},
			setup: func(e *MockEngine) {
				e.On("Start", mock.Anything, restore.Request{BackupID: "b1", ConflictResolution: restore.PolicySkip}).
					Return(&restore.Restore{ID: "r1", BackupID: "b1", Status: restore.StatusPreparing}, nil)
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "уже идет",
			body: restore.Request{BackupID: "b1", ConflictResolution: restore.PolicyReplace},
			setup: func(e *MockEngine) {
				e.On("Start", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w: r0", restore.ErrRestoreInProgress))
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "неизвестная политика",
			body:       map[string]any{"backup_id": "b1", "conflict_resolution": "newest", "restore_images": false},
			setup:      func(e *MockEngine) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "нет копии",
			body: restore.Request{BackupID: "missing", ConflictResolution: restore.PolicyAsk},
			setup: func(e *MockEngine) {
				e.On("Start", mock.Anything, mock.Anything).Return(nil, restore.ErrInvalidRequest)
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, e := setup(t)
			tt.setup(e)

			resp := api.Post("/api/v1/restores", tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			e.AssertExpectations(t)
		})
	}
}

func TestHandler_GetManifest(t *testing.T) {
	api, e := setup(t)
	e.On("Get", mock.Anything, "r1").Return(&restore.Restore{
		ID: "r1", Status: restore.StatusCompleted, Progress: 100,
		ItemsRestored: entity.Counts{Recipes: 7},
		Conflicts: []restore.Conflict{
			{EntityType: entity.TypeRecipe, EntityID: "x", Resolution: restore.ResolutionSkip},
		},
	}, nil)
	e.On("Get", mock.Anything, "nope").Return(nil, restore.ErrNotFound)

	resp := api.Get("/api/v1/restores/r1")
	require.Equal(t, http.StatusOK, resp.Code)
	var r restore.Restore
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &r))
	assert.Equal(t, 7, r.ItemsRestored.Recipes)
	require.Len(t, r.Conflicts, 1)
	assert.Equal(t, restore.ResolutionSkip, r.Conflicts[0].Resolution)

	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/restores/nope").Code)
}

func TestHandler_Cancel(t *testing.T) {
	api, e := setup(t)
	e.On("Cancel", mock.Anything, "r1").Return(nil)
	e.On("Cancel", mock.Anything, "r2").Return(restore.ErrNotActive)

	assert.Equal(t, http.StatusAccepted, api.Post("/api/v1/restores/r1/cancel").Code)
	assert.Equal(t, http.StatusConflict, api.Post("/api/v1/restores/r2/cancel").Code)
}

func TestHandler_ListEmpty(t *testing.T) {
	api, e := setup(t)
	e.On("List", mock.Anything).Return(nil, nil)

	resp := api.Get("/api/v1/restores")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"restores":[]`)
}
