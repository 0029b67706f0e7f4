package sync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/domain/entity"
	syncdomain "recipesync/internal/domain/sync"
)

type MockCoordinator struct {
	mock.Mock
	statuses chan syncdomain.Status
}

func (m *MockCoordinator) Status() syncdomain.Status {
	args := m.Called()
	return args.Get(0).(syncdomain.Status)
}

func (m *MockCoordinator) Subscribe() (<-chan syncdomain.Status, func()) {
	return m.statuses, func() {}
}

func (m *MockCoordinator) Sync(ctx context.Context, trig syncdomain.Trigger) (*syncdomain.CycleResult, error) {
	args := m.Called(ctx, trig)
	res, _ := args.Get(0).(*syncdomain.CycleResult)
	return res, args.Error(1)
}

func (m *MockCoordinator) Request(trig syncdomain.Trigger) (string, error) {
	args := m.Called(trig)
	return args.String(0), args.Error(1)
}

func (m *MockCoordinator) SyncEntity(ctx context.Context, key entity.Key) (*syncdomain.CycleResult, error) {
	args := m.Called(ctx, key)
	res, _ := args.Get(0).(*syncdomain.CycleResult)
	return res, args.Error(1)
}

func (m *MockCoordinator) Pause()  { m.Called() }
func (m *MockCoordinator) Resume() { m.Called() }

func (m *MockCoordinator) Reset(ctx context.Context, confirm bool) error {
	return m.Called(ctx, confirm).Error(0)
}

func setup(t *testing.T) (humatest.TestAPI, *MockCoordinator) {
	t.Helper()
	c := &MockCoordinator{statuses: make(chan syncdomain.Status, 1)}
	_, api := humatest.New(t)
	NewHandler(c, slog.Default(), huma.Middlewares{}).SetupRoutes(api)
	return api, c
}

func TestHandler_Status(t *testing.T) {
	api, c := setup(t)
	c.On("Status").Return(syncdomain.Status{State: syncdomain.StateIdle, IsOnline: true, PendingChanges: 3})

	resp := api.Get("/api/v1/sync/status")
	require.Equal(t, http.StatusOK, resp.Code)

	var st syncdomain.Status
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &st))
	assert.Equal(t, syncdomain.StateIdle, st.State)
	assert.Equal(t, 3, st.PendingChanges)
}

func TestHandler_Sync(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		setup      func(c *MockCoordinator)
		wantStatus int
		wantBody   string
	}{
		{
			name: "без тела - ручной цикл в фоне",
			setup: func(c *MockCoordinator) {
				c.On("Request", syncdomain.Trigger{Kind: syncdomain.TriggerManual}).Return("s-1", nil)
			},
			wantStatus: http.StatusAccepted,
			wantBody:   `"sync_id":"s-1"`,
		},
		{
			name: "foreground с сущностями",
			body: SyncRequest{Trigger: "foreground", Entities: []EntityRef{{Type: entity.TypeRecipe, ID: "r1"}}},
			setup: func(c *MockCoordinator) {
				c.On("Request", syncdomain.Trigger{
					Kind:     syncdomain.TriggerForeground,
					Entities: []entity.Key{{Type: entity.TypeRecipe, ID: "r1"}},
				}).Return("s-2", nil)
			},
			wantStatus: http.StatusAccepted,
			wantBody:   `"message":"sync started"`,
		},
		{
			name: "цикл уже идет",
			body: SyncRequest{Force: true},
			setup: func(c *MockCoordinator) {
				c.On("Request", syncdomain.Trigger{Kind: syncdomain.TriggerManual, Force: true}).
					Return("", syncdomain.ErrSyncInProgress)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "на паузе",
			body: SyncRequest{},
			setup: func(c *MockCoordinator) {
				c.On("Request", mock.Anything).Return("", syncdomain.ErrPaused)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "синхронно с итогом",
			body: SyncRequest{Wait: true, Force: true},
			setup: func(c *MockCoordinator) {
				c.On("Sync", mock.Anything, syncdomain.Trigger{Kind: syncdomain.TriggerManual, Force: true}).
					Return(&syncdomain.CycleResult{ID: "s-3", Pushed: 2}, nil)
			},
			wantStatus: http.StatusAccepted,
			wantBody:   `"pushed":2`,
		},
		{
			name: "синхронно без связи",
			body: SyncRequest{Wait: true},
			setup: func(c *MockCoordinator) {
				c.On("Sync", mock.Anything, mock.Anything).
					Return(&syncdomain.CycleResult{ID: "s-4", Error: "offline"}, syncdomain.ErrOffline)
			},
			wantStatus: http.StatusAccepted,
			wantBody:   syncdomain.ErrOffline.Error(),
		},
		{
			name:       "неизвестный триггер",
			body:       map[string]any{"trigger": "timer"},
			setup:      func(c *MockCoordinator) {},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, c := setup(t)
			tt.setup(c)

			var resp *httptest.ResponseRecorder
			if tt.body == nil {
				resp = api.Post("/api/v1/sync")
			} else {
				resp = api.Post("/api/v1/sync", tt.body)
			}
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
			c.AssertExpectations(t)
		})
	}
}

func TestHandler_PauseResume(t *testing.T) {
	api, c := setup(t)
	c.On("Pause").Once()
	c.On("Resume").Once()

	assert.Equal(t, http.StatusNoContent, api.Post("/api/v1/sync/pause").Code)
	assert.Equal(t, http.StatusNoContent, api.Post("/api/v1/sync/resume").Code)
	c.AssertExpectations(t)
}

func TestHandler_SyncEntity(t *testing.T) {
	api, c := setup(t)
	key := entity.Key{Type: entity.TypePlan, ID: "p1"}
	c.On("SyncEntity", mock.Anything, key).Return(&syncdomain.CycleResult{ID: "s-1", Pushed: 1}, nil)

	resp := api.Post("/api/v1/sync/entity/plan/p1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"pushed":1`)

	resp = api.Post("/api/v1/sync/entity/note/n1")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestHandler_Reset(t *testing.T) {
	api, c := setup(t)
	c.On("Reset", mock.Anything, false).Return(syncdomain.ErrNotConfirmed)
	c.On("Reset", mock.Anything, true).Return(nil)
	c.On("Status").Return(syncdomain.Status{State: syncdomain.StateIdle})

	resp := api.Post("/api/v1/sync/reset")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Post("/api/v1/sync/reset?confirm=true")
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"state":"idle"`)
}

func TestHandler_Stream(t *testing.T) {
	c := &MockCoordinator{statuses: make(chan syncdomain.Status, 1)}
	c.On("Status").Return(syncdomain.Status{State: syncdomain.StateIdle, PendingChanges: 1})
	h := NewHandler(c, slog.Default(), nil)

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first syncdomain.Status
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 1, first.PendingChanges)

	c.statuses <- syncdomain.Status{State: syncdomain.StateSyncing, SyncInProgress: true}

	var next syncdomain.Status
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, syncdomain.StateSyncing, next.State)
	assert.True(t, next.SyncInProgress)
}
