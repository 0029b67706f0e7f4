package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipesync/internal/infrastructure/vault"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL())
	assert.Equal(t, "http://127.0.0.1:7420", cfg.AgentURL())
	assert.Equal(t, filepath.Join(dir, "agent.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenPath)
	assert.Equal(t, filepath.Join(dir, "backups"), cfg.Vault.Dir)
	assert.Equal(t, vault.KindFile, cfg.Vault.Kind)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 5, cfg.Oplog.MaxRetryCount)
	assert.True(t, cfg.Backup.Encrypt)
	assert.NotEmpty(t, cfg.Device.Platform)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("SERVER_ADDRESS", "sync.example.com")
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("SYNC_BATCH_SIZE", "10")
	t.Setenv("OPLOG_BASE_DELAY", "500ms")
	t.Setenv("DB_PATH", "/var/lib/recipesync/agent.db")
	t.Setenv("DEVICE_NAME", "kitchen-tablet")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.ServerURL())
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Oplog.BaseDelay)
	assert.Equal(t, "/var/lib/recipesync/agent.db", cfg.DBPath)
	assert.Equal(t, "kitchen-tablet", cfg.Device.Name)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	file := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(file, []byte("agent_listen: 127.0.0.1:9999\nvault_kind: memory\n"), 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Listen)
	assert.Equal(t, vault.KindMemory, cfg.Vault.Kind)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown vault", map[string]string{"VAULT_KIND": "ftp"}},
		{"s3 without bucket", map[string]string{"VAULT_KIND": "s3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("VAULT_KIND", "ftp")

	assert.Panics(t, func() { MustLoad("") })
}
