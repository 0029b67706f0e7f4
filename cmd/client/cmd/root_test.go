package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAgent(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"state":"idle","is_online":true,"pending_changes":2,"conflicts_count":0,"sync_errors":[]}`))
	})
	mux.HandleFunc("/api/v1/sync/pause", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/backups/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"Not Found","status":404,"detail":"backup not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("CONFIG_DIR", t.TempDir())
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestRoot_AgentCommands(t *testing.T) {
	agent := fakeAgent(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "статус", args: []string{"sync", "status"}},
		{name: "статус в JSON", args: []string{"sync", "status", "--json"}},
		{name: "пауза", args: []string{"sync", "pause"}},
		{name: "сброс без подтверждения", args: []string{"sync", "reset"}, wantErr: "--confirm"},
		{name: "неизвестная копия", args: []string{"backup", "show", "missing"}, wantErr: "backup not found"},
		{name: "неверный ключ сущности", args: []string{"sync", "ops", "add", "note/n1"}, wantErr: "invalid entity type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(t, append(tt.args, "--agent", agent.URL)...)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
