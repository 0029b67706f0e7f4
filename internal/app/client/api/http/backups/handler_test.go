package backups

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/settings"
	"recipesync/internal/testutil"
)

func setup(t *testing.T) (humatest.TestAPI, *backup.Manager, *backup.MemoryVault) {
	t.Helper()
	ctx := context.Background()
	c, err := cache.Open(ctx, cache.NewMemoryRepository(
		&entity.Entity{Type: entity.TypeRecipe, ID: "r1", Fields: map[string]any{"title": "Soup"}, Version: 1},
		&entity.Entity{Type: entity.TypeList, ID: "l1", Fields: map[string]any{"items": []any{"salt"}}, Version: 1},
	), slog.Default())
	require.NoError(t, err)
	st, err := settings.Open(ctx, settings.NewMemoryRepository(), slog.Default())
	require.NoError(t, err)
	codec, err := backup.NewCodec("", "")
	require.NoError(t, err)

	vault := backup.NewMemoryVault()
	m := backup.NewManager(backup.NewMemoryRepository(), vault, codec, c, st, testutil.FixedClock(),
		testutil.NewStubIDGenerator("b"), backup.DefaultConfig(), slog.Default())

	_, api := humatest.New(t)
	NewHandler(m, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, m, vault
}

func TestHandler_CreateListDownloadDelete(t *testing.T) {
	api, m, vault := setup(t)

	resp := api.Post("/api/v1/backups", CreateRequest{Compression: backup.CompressionNone})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var b backup.Backup
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &b))
	assert.Equal(t, backup.TypeManual, b.Type)
	assert.Equal(t, backup.StatusCompleted, b.Status)
	assert.Equal(t, 1, b.ItemsCount.Recipes)
	assert.Equal(t, 1, b.ItemsCount.Lists)
	assert.Equal(t, "/api/v1/backups/"+b.ID+"/download", b.DownloadURL)

	resp = api.Get("/api/v1/backups")
	require.Equal(t, http.StatusOK, resp.Code)
	var page BackupsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Len(t, page.Backups, 1)
	assert.False(t, page.HasMore)

	resp = api.Get("/api/v1/backups/" + b.ID + "/download")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/octet-stream", resp.Header().Get("Content-Type"))
	assert.Equal(t, b.Checksum, resp.Header().Get("X-Checksum-SHA256"))
	assert.Equal(t, b.Checksum, backup.Checksum(resp.Body.Bytes()))

	art, err := m.Load(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, art.Entities, 2)

	resp = api.Delete("/api/v1/backups/" + b.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	assert.Zero(t, vault.Len())

	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/backups/"+b.ID).Code)
	assert.Equal(t, http.StatusNotFound, api.Get("/api/v1/backups/"+b.ID+"/download").Code)
}

func TestHandler_CreateInvalid(t *testing.T) {
	api, _, _ := setup(t)

	resp := api.Post("/api/v1/backups", map[string]any{"compression": "zstd"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestHandler_RetryCompletedBackup(t *testing.T) {
	api, m, _ := setup(t)

	b, err := m.Create(context.Background(), backup.CreateRequest{Type: backup.TypeManual})
	require.NoError(t, err)

	resp := api.Post("/api/v1/backups/" + b.ID + "/retry")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
