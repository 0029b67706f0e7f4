package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"recipesync/internal/app/server/api"
	"recipesync/internal/app/server/config"
	"recipesync/internal/domain/device"
	"recipesync/internal/domain/entity"
	"recipesync/internal/domain/session"
	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/domain/user"
	"recipesync/internal/testutil"
)

type staticTokens string

func (t staticTokens) Token() string { return string(t) }

type singleUser struct{}

func (singleUser) Register(_ context.Context, login, _ string) (int, error) {
	if login == "taken" {
		return 0, user.ErrLoginTaken
	}
	return 1, nil
}

func (singleUser) Authenticate(_ context.Context, login, password string) (user.User, error) {
	if login != "alice" || password != "secret-pass" {
		return user.User{}, user.ErrInvalidAuth
	}
	return user.User{ID: 1, Login: login}, nil
}

type singleSession struct{}

func (singleSession) Create(context.Context, int) (string, error) { return "tok", nil }

func (singleSession) Validate(_ context.Context, token string) (int, error) {
	if token != "tok" {
		return 0, session.ErrInvalidSession
	}
	return 1, nil
}

type testServer struct {
	url      string
	clock    *testutil.StubClock
	entities *entity.MemoryRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clk := testutil.FixedClock()
	repo := entity.NewMemoryRepository()
	devices := device.NewService(device.NewMemoryRepository(), clk, slog.Default())
	cfg := &config.Config{}
	cfg.Server.ChangesLimit = 100

	mux := api.New(&api.Services{
		Users:    singleUser{},
		Sessions: singleSession{},
		Entities: entity.NewService(repo, devices, clk, slog.Default()),
		Devices:  devices,
	}, cfg, slog.Default())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{url: srv.URL, clock: clk, entities: repo}
}

func (s *testServer) client(deviceID string) *HTTPClient {
	return NewHTTPClient(s.url, 5*time.Second, staticTokens("tok"), deviceID, slog.Default())
}

func TestHTTPClient_PingAndHealth(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client("phone")
	ctx := context.Background()

	require.NoError(t, c.HealthCheck(ctx))
	now, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, srv.clock.Now().Equal(now))
}

func TestHTTPClient_PushFetchChanges(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client("phone")
	ctx := context.Background()

	res, err := c.Push(ctx, entity.PushRequest{
		OperationID: "op-1", Type: entity.OpCreate, EntityType: entity.TypeRecipe,
		EntityID: "r1", Seq: 1, Fields: map[string]any{"title": "Soup", "servings": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Entity.Version)

	got, err := c.Fetch(ctx, entity.Key{Type: entity.TypeRecipe, ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "Soup", got.Fields["title"])
	assert.True(t, entity.ValueEqual(2, got.Fields["servings"]))

	_, err = c.Fetch(ctx, entity.Key{Type: entity.TypeRecipe, ID: "missing"})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	changes, err := c.Changes(ctx, entity.Cursor{}, 10)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	changes, err = c.Changes(ctx, entity.Cursor{Since: got.UpdatedAt}, 10)
	require.NoError(t, err)
	assert.Empty(t, changes)

	all, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHTTPClient_PushStale(t *testing.T) {
	srv := newTestServer(t)
	srv.entities.Put(1, &entity.Entity{
		Type: entity.TypeRecipe, ID: "r1", Fields: map[string]any{"title": "Server"},
		Version: 2, UpdatedAt: srv.clock.Now(),
	})

	_, err := srv.client("phone").Push(context.Background(), entity.PushRequest{
		Type: entity.OpUpdate, EntityType: entity.TypeRecipe, EntityID: "r1", Seq: 1,
		Fields: map[string]any{"title": "Mine"}, BaseTimestamp: srv.clock.Now().Add(-time.Minute),
	})

	var stale *entity.StaleError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, int64(2), stale.Current.Version)
	assert.Equal(t, syncdomain.KindConflict, syncdomain.Classify(err))
}

func TestHTTPClient_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	_, err := srv.client("phone").Push(context.Background(), entity.PushRequest{
		Type: entity.OpUpdate, EntityType: "note", EntityID: "n1", Seq: 1,
	})

	assert.ErrorIs(t, err, syncdomain.ErrValidation)
	assert.Equal(t, syncdomain.KindValidation, syncdomain.Classify(err))
}

func TestHTTPClient_DevicesAndRevocation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	phone := srv.client("phone")
	laptop := srv.client("laptop")

	d, err := phone.Touch(ctx, device.TouchRequest{Name: "Pixel", Type: "mobile"})
	require.NoError(t, err)
	assert.True(t, d.IsCurrentDevice)
	_, err = laptop.Touch(ctx, device.TouchRequest{Name: "ThinkPad", Type: "desktop"})
	require.NoError(t, err)

	list, err := laptop.Devices(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	renamed, err := laptop.RenameDevice(ctx, "phone", "Old phone")
	require.NoError(t, err)
	assert.Equal(t, "Old phone", renamed.Name)

	require.NoError(t, laptop.RevokeDevice(ctx, "phone"))
	assert.ErrorIs(t, laptop.RevokeDevice(ctx, "phone"), device.ErrDeviceNotFound)

	_, err = phone.Touch(ctx, device.TouchRequest{Name: "Pixel"})
	assert.ErrorIs(t, err, device.ErrDeviceRevoked)
	assert.Equal(t, syncdomain.KindRevoked, syncdomain.Classify(err))
}

func TestHTTPClient_Auth(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	anon := NewHTTPClient(srv.url, time.Second, nil, "phone", slog.Default())

	_, err := anon.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, anon.Register(ctx, user.Credentials{Login: "alice", Password: "secret-pass"}))
	assert.ErrorIs(t, anon.Register(ctx, user.Credentials{Login: "taken", Password: "secret-pass"}), ErrLoginTaken)

	token, err := anon.Login(ctx, user.Credentials{Login: "alice", Password: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	_, err = anon.Login(ctx, user.Credentials{Login: "alice", Password: "wrong-pass"})
	assert.ErrorIs(t, err, user.ErrInvalidAuth)
}

func TestHTTPClient_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	c := NewHTTPClient(srv.URL, time.Second, nil, "phone", slog.Default())

	_, err := c.Ping(context.Background())
	assert.ErrorIs(t, err, syncdomain.ErrServer)

	srv.Close()
	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, syncdomain.ErrNetwork)
	assert.Equal(t, syncdomain.KindNetwork, syncdomain.Classify(err))
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore(filepath.Join(t.TempDir(), "nested", "token"))

	assert.Empty(t, store.Token())
	require.NoError(t, store.Save("abc\n"))
	assert.Equal(t, "abc", store.Token())
	require.NoError(t, store.Clear())
	assert.Empty(t, store.Token())
	require.NoError(t, store.Clear())
}
