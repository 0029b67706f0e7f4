package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/exp/slog"

	"recipesync/internal/app/client/api"
	"recipesync/internal/app/client/config"
	"recipesync/internal/app/client/crypto"
	"recipesync/internal/domain/backup"
	"recipesync/internal/domain/cache"
	"recipesync/internal/domain/conflict"
	"recipesync/internal/domain/oplog"
	"recipesync/internal/domain/restore"
	"recipesync/internal/domain/settings"
	syncdomain "recipesync/internal/domain/sync"
	"recipesync/internal/infrastructure/storage/sqlite"
	"recipesync/internal/infrastructure/vault"
	"recipesync/internal/supervisor"
	"recipesync/internal/utils/clock"
)

// App агент синхронизации одного устройства
type App struct {
	config   *config.Config
	log      *slog.Logger
	storage  *sqlite.Storage
	deviceID string

	tokens  *TokenStore
	gateway *HTTPClient

	ops         *oplog.Log
	conflicts   *conflict.Store
	settings    *settings.Store
	cache       *cache.Cache
	coordinator *syncdomain.Coordinator
	backups     *backup.Manager
	scheduler   *backup.Scheduler
	restores    *restore.Engine

	handler http.Handler
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	log = log.With("component", "agent")

	deviceID, err := crypto.DeviceID(cfg.DeviceIDPath, clock.UUID{})
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}

	storage, err := sqlite.Open(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		log:      log.With("device_id", deviceID),
		storage:  storage,
		deviceID: deviceID,
		tokens:   NewTokenStore(cfg.TokenPath),
	}
	if err := a.init(ctx); err != nil {
		_ = storage.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config
	ids := clock.UUID{}
	skew := clock.NewSkewed(clock.Real{})

	a.gateway = NewHTTPClient(cfg.ServerURL(), cfg.RequestTimeout, a.tokens, a.deviceID, a.log)

	var err error
	if a.ops, err = oplog.Open(ctx, sqlite.NewOplogRepository(a.storage), skew, ids, cfg.Oplog, a.log); err != nil {
		return fmt.Errorf("open oplog: %w", err)
	}
	if a.conflicts, err = conflict.Open(ctx, sqlite.NewConflictRepository(a.storage), skew, ids, a.log); err != nil {
		return fmt.Errorf("open conflicts: %w", err)
	}
	if a.settings, err = settings.Open(ctx, sqlite.NewSettingsRepository(a.storage), a.log); err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	if a.cache, err = cache.Open(ctx, sqlite.NewCacheRepository(a.storage), a.log); err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	syncCfg := cfg.Sync
	syncCfg.Device = cfg.Device
	a.coordinator = syncdomain.NewCoordinator(syncdomain.Deps{
		Gateway:   a.gateway,
		Log:       a.ops,
		Conflicts: a.conflicts,
		Cache:     a.cache,
		Settings:  a.settings,
		Clock:     skew,
		IDs:       ids,
		Skew:      skew,
		Probe:     syncdomain.AlwaysUnmetered{},
	}, syncCfg, a.log)

	store, err := vault.New(ctx, cfg.Vault)
	if err != nil {
		return fmt.Errorf("open vault: %w", err)
	}

	bcfg := backup.DefaultConfig()
	if cfg.Backup.AutomaticTTL > 0 {
		bcfg.AutomaticTTL = cfg.Backup.AutomaticTTL
	}
	if cfg.Backup.URLTTL > 0 {
		bcfg.URLTTL = cfg.Backup.URLTTL
	}
	if cfg.Backup.SweepInterval > 0 {
		bcfg.SweepInterval = cfg.Backup.SweepInterval
	}
	if cfg.Backup.Encrypt {
		id, err := crypto.LoadOrCreateIdentity(cfg.KeyPath)
		if err != nil {
			return fmt.Errorf("backup key: %w", err)
		}
		bcfg.Identity = id.String()
		bcfg.Recipient = id.Recipient().String()
	}
	codec, err := backup.NewCodec(bcfg.Recipient, bcfg.Identity)
	if err != nil {
		return err
	}

	a.backups = backup.NewManager(sqlite.NewBackupRepository(a.storage), store, codec, a.cache, a.settings, skew, ids, bcfg, a.log)
	a.scheduler = backup.NewScheduler(a.backups, a.coordinator, a.settings, skew, bcfg.SweepInterval, a.log)
	a.restores = restore.NewEngine(sqlite.NewRestoreRepository(a.storage), a.backups, a.cache, a.ops, a.coordinator, skew, ids, a.log)
	if _, err := a.backups.Recover(ctx); err != nil {
		return err
	}
	if _, err := a.restores.Recover(ctx); err != nil {
		return err
	}

	a.handler = api.New(&api.Services{
		Sync:       a.coordinator,
		Queue:      a.ops,
		Operations: a.coordinator,
		Conflicts:  a.conflicts,
		Resolver:   a.coordinator,
		Settings:   a.settings,
		Backups:    a.backups,
		Restores:   a.restores,
		Devices:    a.gateway,
		DeviceID:   a.deviceID,
	}, a.log)
	return nil
}

// Run обслуживает локальный API и фоновые циклы до отмены ctx
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.Listen,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	if a.config.ShutdownTimeout > 0 {
		treeCfg.ShutdownTimeout = a.config.ShutdownTimeout
	}
	tree := supervisor.NewTree("recipesync-agent", treeCfg, a.log)
	tree.AddCore(a.coordinator)
	tree.AddCore(a.scheduler)
	tree.AddAPI(supervisor.NewHTTPServerService("agent-api", srv, a.config.ShutdownTimeout))

	a.log.Info("agent started", "listen", a.config.Listen, "server", a.config.ServerURL())
	err := tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("agent stopped")
	return nil
}

// Close дожидается активных восстановлений и закрывает базу
func (a *App) Close() error {
	a.restores.Close()
	return a.storage.Close()
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) DeviceID() string {
	return a.deviceID
}

func (a *App) Gateway() *HTTPClient {
	return a.gateway
}

func (a *App) Tokens() *TokenStore {
	return a.tokens
}

func (a *App) Coordinator() *syncdomain.Coordinator {
	return a.coordinator
}
