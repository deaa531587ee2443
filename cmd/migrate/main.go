package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
	"github.com/undefinedable/zeppelin-orderkuota/internal/logging"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

// migrate copies the ledger between backends, e.g. from the JSON files to Postgres.
func main() {
	backends := []string{config.BackendFile, config.BackendRedis, config.BackendPostgres}

	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config.yml").String()
	from := kingpin.Flag("from", "Source backend").Required().Enum(backends...)
	to := kingpin.Flag("to", "Target backend").Required().Enum(backends...)
	kingpin.Parse()

	if *from == *to {
		log.Fatalf("source and target are both %s", *from)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Encoding, "topup-ledger-migrate")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := store.Connect(ctx, cfg, *from, logger)
	if err != nil {
		logger.Fatal("cannot open source store", zap.String("backend", *from), zap.Error(err))
	}
	defer closeSrc()

	dst, closeDst, err := store.Connect(ctx, cfg, *to, logger)
	if err != nil {
		logger.Fatal("cannot open target store", zap.String("backend", *to), zap.Error(err))
	}
	defer closeDst()

	snap, err := store.Copy(ctx, src, dst)
	if err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	records := 0
	for _, l := range snap.Transactions {
		if l != nil {
			records += len(l.Data)
		}
	}
	logger.Info("ledger migrated",
		zap.String("from", *from),
		zap.String("to", *to),
		zap.Int("users", len(snap.Transactions)),
		zap.Int("records", records),
		zap.Int("balances", len(snap.Balances)),
	)
}
