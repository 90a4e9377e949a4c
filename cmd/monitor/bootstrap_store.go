package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	config "github.com/NordCoder/opsmonitor/internal/config/monitor"
	"github.com/NordCoder/opsmonitor/internal/domain/record"
	"github.com/NordCoder/opsmonitor/internal/repository/memory"
	pg "github.com/NordCoder/opsmonitor/internal/repository/postgres"
	"github.com/NordCoder/opsmonitor/internal/repository/sqlite"
)

type storeBundle struct {
	Repo   record.Repo
	Tx     record.Transactor
	Pruner record.Pruner
	close  func()
}

func openStore(ctx context.Context, c *config.Config, clock record.Clock, l *zap.Logger) (storeBundle, error) {
	cfg := c.Store
	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.NewStore(clock)
		return storeBundle{Repo: s, Tx: s, close: func() {}}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Path, clock)
		if err != nil {
			return storeBundle{}, err
		}
		return storeBundle{Repo: s, Tx: s, Pruner: s, close: func() { _ = s.Close() }}, nil

	case config.DriverPostgres:
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, cfg.DSN); err != nil {
				return storeBundle{}, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := pg.New(ctx, c.AsPostgresConfig())
		if err != nil {
			return storeBundle{}, err
		}
		repo := pg.NewRecordRepo(db, clock)
		return storeBundle{Repo: repo, Tx: pg.NewTransactor(db, l), Pruner: repo, close: db.Close}, nil
	}
	return storeBundle{}, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
