package operations

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/testutil"
)

// direct пишет в журнал без координатора
type direct struct {
	*oplog.Log
}

func (d direct) Enqueue(ctx context.Context, op oplog.Operation) (*oplog.Operation, error) {
	return d.Append(ctx, op)
}

func setup(t *testing.T) (humatest.TestAPI, *oplog.Log) {
	t.Helper()
	cfg := oplog.Config{MaxRetryCount: 1, BaseDelay: time.Second, MaxDelay: time.Second, RetainCompleted: 10}
	l, err := oplog.Open(context.Background(), oplog.NewMemoryRepository(), testutil.FixedClock(),
		testutil.NewStubIDGenerator("op"), cfg, slog.Default())
	require.NoError(t, err)

	_, api := humatest.New(t)
	NewHandler(l, direct{l}, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, l
}

func TestHandler_EnqueueAndList(t *testing.T) {
	api, _ := setup(t)

	resp := api.Post("/api/v1/sync/operations", EnqueueRequest{
		Type: oplog.TypeCreate, EntityType: entity.TypeRecipe, EntityID: "r1",
		Fields: map[string]any{"title": "Soup"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var op oplog.Operation
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &op))
	assert.Equal(t, "op-1", op.ID)
	assert.Equal(t, int64(1), op.Seq)
	assert.Equal(t, oplog.StatusPending, op.Status)

	resp = api.Post("/api/v1/sync/operations", EnqueueRequest{
		Type: oplog.TypeUpdate, EntityType: entity.TypeRecipe, EntityID: "r1",
		Fields: map[string]any{"servings": 2},
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = api.Get("/api/v1/sync/operations?limit=1")
	require.Equal(t, http.StatusOK, resp.Code)
	var page OperationsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Len(t, page.Operations, 1)
	assert.Equal(t, "op-1", page.Operations[0].ID)
	assert.True(t, page.HasMore)

	resp = api.Get("/api/v1/sync/operations?status=failed")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"operations":[]`)
}

func TestHandler_EnqueueValidation(t *testing.T) {
	api, _ := setup(t)

	tests := []struct {
		name string
		body any
	}{
		{"неизвестный тип сущности", map[string]any{"type": "create", "entity_type": "note", "entity_id": "n1", "fields": map[string]any{"a": 1}}},
		{"пустой id", map[string]any{"type": "create", "entity_type": "recipe", "entity_id": "", "fields": map[string]any{"a": 1}}},
		{"обновление без полей", EnqueueRequest{Type: oplog.TypeUpdate, EntityType: entity.TypeRecipe, EntityID: "r1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := api.Post("/api/v1/sync/operations", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, resp.Body.String())
		})
	}
}

func TestHandler_RetryAndCancel(t *testing.T) {
	ctx := context.Background()
	api, l := setup(t)

	op, err := l.Append(ctx, oplog.Operation{
		Type: oplog.TypeDelete, EntityType: entity.TypeList, EntityID: "l1",
	})
	require.NoError(t, err)

	// pending нельзя повторить
	resp := api.Post("/api/v1/sync/operations/" + op.ID + "/retry")
	assert.Equal(t, http.StatusConflict, resp.Code)

	drained, err := l.Drain(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drained, 1)

	// в полете нельзя отменить
	resp = api.Post("/api/v1/sync/operations/" + op.ID + "/cancel")
	assert.Equal(t, http.StatusConflict, resp.Code)

	require.NoError(t, l.Fail(ctx, op.ID, errors.New("timeout")))

	resp = api.Post("/api/v1/sync/operations/" + op.ID + "/retry")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"status":"pending"`)
	assert.Contains(t, resp.Body.String(), `"retry_count":0`)

	resp = api.Post("/api/v1/sync/operations/" + op.ID + "/cancel")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.Post("/api/v1/sync/operations/" + op.ID + "/cancel")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
