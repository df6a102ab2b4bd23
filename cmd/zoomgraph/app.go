package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/zoomgraph/internal/config"
	"github.com/kailas-cloud/zoomgraph/internal/db"
	dbBadger "github.com/kailas-cloud/zoomgraph/internal/db/badger"
	dbRedis "github.com/kailas-cloud/zoomgraph/internal/db/redis"
	logpkg "github.com/kailas-cloud/zoomgraph/internal/logger"
	snapshotrepo "github.com/kailas-cloud/zoomgraph/internal/repository/snapshot"
	"github.com/kailas-cloud/zoomgraph/internal/version"
)

// app holds what every command needs: config, logger and an open store.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	repo   *snapshotrepo.Repo
}

// newApp loads config for the selected environment, builds the logger and
// connects to the configured store.
func newApp(ctx context.Context, command string) (*app, error) {
	cfg, err := config.Load(envFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger, err := logpkg.NewLogger(envFlag, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger = logger.With(zap.String("command", command))

	logger.Info("Starting zoomgraph",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", envFlag),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := openStore(cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	return &app{
		env:    envFlag,
		cfg:    cfg,
		logger: logger,
		store:  store,
		repo:   snapshotrepo.New(store, cfg.Storage.KeyPrefix),
	}, nil
}

// openStore creates the database store for the configured driver.
// valkey and redis share the rueidis backend.
func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		return dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case "badger":
		return dbBadger.NewStore(dbBadger.Config{Path: cfg.Path})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func (a *app) Close() {
	a.store.Close()
	_ = a.logger.Sync()
}
