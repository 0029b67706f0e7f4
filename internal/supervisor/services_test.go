package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type mockHTTPServer struct {
	mu         sync.Mutex
	listenErr  error
	stop       chan struct{}
	shutdownCh chan struct{}
}

func newMockHTTPServer(listenErr error) *mockHTTPServer {
	return &mockHTTPServer{listenErr: listenErr, stop: make(chan struct{}), shutdownCh: make(chan struct{}, 1)}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stop
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.stop)
	m.shutdownCh <- struct{}{}
	return nil
}

func TestHTTPServerService_GracefulShutdown(t *testing.T) {
	srv := newMockHTTPServer(nil)
	svc := NewHTTPServerService("http", srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Len(t, srv.shutdownCh, 1)
	assert.Equal(t, "http", svc.String())
}

func TestHTTPServerService_ListenError(t *testing.T) {
	svc := NewHTTPServerService("http", newMockHTTPServer(errors.New("address in use")), 0)

	err := svc.Serve(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}

func TestPeriodicService_RunsUntilCanceled(t *testing.T) {
	var calls atomic.Int32
	svc := NewPeriodicService("janitor", 5*time.Millisecond, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTree_ServesAndStops(t *testing.T) {
	tree := NewTree("test", TreeConfig{ShutdownTimeout: time.Second}, slog.Default())
	var calls atomic.Int32
	tree.AddCore(NewPeriodicService("tick", time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, slog.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	cancel()
	<-errCh
}
