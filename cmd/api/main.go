// Package main provides the entry point for the organization API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/narvanalabs/expense-orgs/internal/api"
	"github.com/narvanalabs/expense-orgs/internal/auth"
	"github.com/narvanalabs/expense-orgs/internal/shutdown"
	"github.com/narvanalabs/expense-orgs/internal/store"
	"github.com/narvanalabs/expense-orgs/internal/store/memory"
	pgstore "github.com/narvanalabs/expense-orgs/internal/store/postgres"
	"github.com/narvanalabs/expense-orgs/pkg/config"
	"github.com/narvanalabs/expense-orgs/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "error", err, "store", cfg.Store)
		os.Exit(1)
	}

	authService := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
		Issuer:      cfg.JWTIssuer,
	}, log.Logger)

	server := api.NewServer(cfg, st, authService, api.Options{}, log.Logger)

	coordinator := shutdown.NewCoordinator(cfg.ShutdownTimeout, log.Logger)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(shutdown.NewFuncComponent("http", server.Shutdown))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			exitCode = 1
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	if err := coordinator.Shutdown(); err != nil {
		exitCode = shutdown.ExitCode(err)
	}
	log.Info("server stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.StorePostgres:
		storeCfg := pgstore.DefaultConfig(cfg.Database.DSN)
		storeCfg.MaxOpenConns = cfg.Database.MaxOpenConns
		storeCfg.MaxIdleConns = cfg.Database.MaxIdleConns
		storeCfg.ConnectRetries = cfg.Database.ConnectRetries
		storeCfg.AutoMigrate = cfg.Database.AutoMigrate
		return pgstore.NewPostgresStore(ctx, storeCfg, log.WithComponent("store").Logger)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
