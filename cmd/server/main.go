package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipesync/internal/app/server/api"
	"recipesync/internal/app/server/config"
	"recipesync/internal/infrastructure/storage/postgres"
	"recipesync/internal/supervisor"
	"recipesync/internal/utils/logger"
)

const sessionPurgeInterval = time.Hour

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)
	log.Info("starting recipesync server", "env", cfg.Env, "address", cfg.Server.RunAddress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", logger.Err(err))
		os.Exit(1)
	}
	defer storage.Close()

	services := api.NewServices(storage, cfg, log)
	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(services, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree("recipesync-server", supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, log)
	tree.AddAPI(supervisor.NewHTTPServerService("http-server", srv, cfg.Server.ShutdownTimeout))
	if purger, ok := services.Sessions.(interface {
		Purge(ctx context.Context) (int64, error)
	}); ok {
		tree.AddCore(supervisor.NewPeriodicService("session-purge", sessionPurgeInterval, func(ctx context.Context) error {
			_, err := purger.Purge(ctx)
			return err
		}, log))
	}

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped with error", logger.Err(err))
		os.Exit(1)
	}
	log.Info("server stopped")
}
