package client

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api/http/backups"
	"recipesync/internal/app/client/api/http/operations"
	syncAPI "recipesync/internal/app/client/api/http/sync"
	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/domain/restore"
	syncdomain "recipesync/internal/domain/sync"
)

func newAgentClient(t *testing.T) (*AgentClient, *testServer) {
	t.Helper()
	srv := newTestServer(t)
	app := newTestApp(t, srv.url)
	agent := httptest.NewServer(app.Handler())
	t.Cleanup(agent.Close)
	return NewAgentClient(agent.URL, 5*time.Second, slog.Default()), srv
}

func TestAgentClient_OperationsAndSync(t *testing.T) {
	c, srv := newAgentClient(t)
	ctx := context.Background()

	op, err := c.Enqueue(ctx, operations.EnqueueRequest{
		Type: oplog.TypeCreate, EntityType: entity.TypeList, EntityID: "l1",
		Fields: map[string]any{"items": []any{"milk"}},
	})
	require.NoError(t, err)
	assert.Equal(t, oplog.StatusPending, op.Status)

	page, err := c.Operations(ctx, 1, 10, oplog.StatusPending)
	require.NoError(t, err)
	require.Len(t, page.Operations, 1)
	assert.False(t, page.HasMore)

	resp, err := c.Sync(ctx, syncAPI.SyncRequest{Wait: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 1, resp.Result.Pushed)

	_, err = srv.entities.Get(ctx, 1, entity.Key{Type: entity.TypeList, ID: "l1"})
	require.NoError(t, err)

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.PendingChanges)

	_, err = c.RetryOperation(ctx, "missing")
	assert.Error(t, err)

	require.NoError(t, c.Pause(ctx))
	st, err = c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncdomain.StatePaused, st.State)
	require.NoError(t, c.Resume(ctx))

	assert.ErrorIs(t, c.Reset(ctx, false), syncdomain.ErrValidation)
	require.NoError(t, c.Reset(ctx, true))
}

func TestAgentClient_SettingsAndConflicts(t *testing.T) {
	c, _ := newAgentClient(t)
	ctx := context.Background()

	s, err := c.Settings(ctx)
	require.NoError(t, err)
	s.SyncInterval = 30
	updated, err := c.UpdateSettings(ctx, *s)
	require.NoError(t, err)
	assert.Equal(t, 30, updated.SyncInterval)

	list, err := c.Conflicts(ctx, 1, 20, true)
	require.NoError(t, err)
	assert.Empty(t, list.Conflicts)

	all, err := c.ResolveAll(ctx, conflict.ResolutionLocal)
	require.NoError(t, err)
	assert.Zero(t, all.Resolved)
}

func TestAgentClient_BackupRestore(t *testing.T) {
	c, _ := newAgentClient(t)
	ctx := context.Background()

	_, err := c.Enqueue(ctx, operations.EnqueueRequest{
		Type: oplog.TypeCreate, EntityType: entity.TypeRecipe, EntityID: "r1",
		Fields: map[string]any{"title": "Pancakes"},
	})
	require.NoError(t, err)

	b, err := c.CreateBackup(ctx, backups.CreateRequest{Compression: backup.CompressionSnappy})
	require.NoError(t, err)
	assert.Equal(t, backup.StatusCompleted, b.Status)

	var buf bytes.Buffer
	n, err := c.DownloadBackup(ctx, b.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, b.Size, n)

	list, err := c.Backups(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list.Backups, 1)

	r, err := c.StartRestore(ctx, restore.Request{BackupID: b.ID, ConflictResolution: restore.PolicySkip})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		got, err := c.Restore(ctx, r.ID)
		return err == nil && got.Status != restore.StatusPreparing && got.Status != restore.StatusRestoring
	}, 5*time.Second, 20*time.Millisecond)

	history, err := c.Restores(ctx)
	require.NoError(t, err)
	assert.Len(t, history.Restores, 1)

	require.NoError(t, c.DeleteBackup(ctx, b.ID))
	_, err = c.Backup(ctx, b.ID)
	assert.Error(t, err)
}
