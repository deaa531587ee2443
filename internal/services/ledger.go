package services

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

// Ledger serializes every load-modify-save on the snapshot document. All users share the
// document, so one mutex covers all of them.
type Ledger struct {
	mu     sync.Mutex
	store  store.Store
	logger *zap.Logger
}

func NewLedger(st store.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: st, logger: logger.Named("ledger")}
}

func (l *Ledger) view(ctx context.Context, fn func(snap *models.Snapshot) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return err
	}
	return fn(snap)
}

// update saves the snapshot only when fn reports a change and returns no error.
func (l *Ledger) update(ctx context.Context, fn func(snap *models.Snapshot) (bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(snap)
	if err != nil || !changed {
		return err
	}
	if err := l.store.Save(ctx, snap); err != nil {
		l.logger.Warn("failed to save ledger", zap.Error(err))
		return err
	}
	return nil
}

func (l *Ledger) load(ctx context.Context) (*models.Snapshot, error) {
	snap, err := l.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorruptData) {
			l.logger.Error("ledger data is corrupt, refusing to continue", zap.Error(err))
		} else {
			l.logger.Warn("failed to load ledger", zap.Error(err))
		}
		return nil, err
	}
	return snap, nil
}
