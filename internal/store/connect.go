package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
	"github.com/undefinedable/zeppelin-orderkuota/internal/database"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

// Migrator is implemented by backends that create their schema before first use.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Connect opens the connections backend needs, opens the store on top of them and runs its
// migrations. The returned func closes what was opened.
func Connect(ctx context.Context, cfg *config.Config, backend string, logger *zap.Logger) (Store, func(), error) {
	var (
		deps    Deps
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch backend {
	case config.BackendPostgres:
		db, err := database.OpenPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { closeDB(db, logger) })
		deps.DB = db
	case config.BackendRedis:
		rdb, err := database.OpenRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { closeRedis(rdb, logger) })
		deps.Redis = rdb
	}

	ledgerCfg := cfg.Ledger
	ledgerCfg.Backend = backend
	st, err := Open(ledgerCfg, deps)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	if m, ok := st.(Migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate %s store: %w", backend, err)
		}
	}

	logger.Info("ledger store opened", zap.String("backend", backend))
	return st, closeAll, nil
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close database", zap.Error(err))
	}
}

func closeRedis(rdb *redis.Client, logger *zap.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Warn("failed to close redis", zap.Error(err))
	}
}

// Copy loads the snapshot from src and saves it to dst. A corrupt source is never copied.
func Copy(ctx context.Context, src, dst Store) (*models.Snapshot, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if err := dst.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save target: %w", err)
	}
	return snap, nil
}
