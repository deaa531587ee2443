package services

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/audit"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

const unfinishedReason = "You still have an unfinished transaction. Complete or cancel it first."

// TransactionManager owns the per-user transaction state machine:
// pending -> success | failed | expired, with terminal states final.
type TransactionManager struct {
	ledger    *Ledger
	retention int
	audit     *audit.Logger
	logger    *zap.Logger
}

// NewTransactionManager builds a manager over ledger. retention caps the records kept per user;
// zero keeps everything.
func NewTransactionManager(ledger *Ledger, retention int, auditLogger *audit.Logger, logger *zap.Logger) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	return &TransactionManager{
		ledger:    ledger,
		retention: retention,
		audit:     auditLogger,
		logger:    logger.Named("transactions"),
	}
}

// Begin registers referenceID as the user's pending transaction.
func (m *TransactionManager) Begin(ctx context.Context, userID, referenceID string) error {
	if userID == "" || referenceID == "" {
		return &ValidationError{Field: "reference_id", Message: "User and reference id are required."}
	}

	err := m.ledger.update(ctx, func(snap *models.Snapshot) (bool, error) {
		if l, ok := snap.Lookup(userID); ok && l.HasPending() {
			return false, reject(unfinishedReason)
		}
		if owner, ok := findOwner(snap, referenceID); ok {
			m.logger.Warn("reference id already registered",
				zap.String("reference_id", referenceID),
				zap.String("owner", owner),
				zap.String("user_id", userID),
			)
			return false, reject("Reference id %s is already registered.", referenceID)
		}

		l := snap.Ledger(userID)
		l.Data = append(l.Data, models.TransactionRecord{ID: referenceID, Status: models.StatusPending})
		l.SyncLimit()
		if dropped := l.Trim(m.retention); dropped > 0 {
			m.logger.Debug("trimmed old transactions", zap.String("user_id", userID), zap.Int("dropped", dropped))
		}
		return true, nil
	})
	if err != nil {
		m.logRejection(err, "begin", userID, referenceID)
		return err
	}

	transactionEvents.WithLabelValues("begin").Inc()
	m.audit.LogBegin(referenceID, userID)
	return nil
}

// Transition moves a pending record to status without touching the balance. Settle is the only
// path that credits.
func (m *TransactionManager) Transition(ctx context.Context, userID, referenceID string, status models.TransactionStatus) (models.TransitionResult, error) {
	return m.apply(ctx, userID, referenceID, status, 0, false)
}

// Settle applies a gateway-reported status. When this call is the one that moves the record from
// pending to success, amount is credited in the same save and must be positive. Replays on a
// terminal record change nothing and report Applied=false whatever the amount.
func (m *TransactionManager) Settle(ctx context.Context, userID, referenceID string, status models.TransactionStatus, amount int64) (models.TransitionResult, error) {
	return m.apply(ctx, userID, referenceID, status, amount, true)
}

func (m *TransactionManager) apply(ctx context.Context, userID, referenceID string, status models.TransactionStatus, amount int64, credit bool) (models.TransitionResult, error) {
	if !status.Valid() {
		return models.TransitionResult{}, &ValidationError{Field: "status", Message: "Unknown transaction status."}
	}

	var result models.TransitionResult
	err := m.ledger.update(ctx, func(snap *models.Snapshot) (bool, error) {
		l, ok := snap.Lookup(userID)
		if !ok {
			return false, ErrNotFound
		}
		i := l.Find(referenceID)
		if i < 0 {
			return false, ErrNotFound
		}

		rec := &l.Data[i]
		result = models.TransitionResult{
			ReferenceID: referenceID,
			Previous:    rec.Status,
			Current:     rec.Status,
			Balance:     snap.Balances[userID],
		}
		if rec.Status.IsTerminal() || status == models.StatusPending {
			return false, nil
		}
		if credit && status == models.StatusSuccess && amount <= 0 {
			return false, ErrInvalidAmount
		}

		rec.Status = status
		l.SyncLimit()
		result.Current = status
		result.Applied = true

		if credit && status == models.StatusSuccess {
			result.Balance = applyCredit(snap, userID, amount)
			result.Credited = true
		}
		return true, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			m.logger.Warn("success reported without a positive amount",
				zap.String("user_id", userID),
				zap.String("reference_id", referenceID),
				zap.Int64("amount", amount),
			)
		case errors.Is(err, ErrNotFound):
			m.logger.Info("transition for unknown transaction",
				zap.String("user_id", userID),
				zap.String("reference_id", referenceID),
			)
		default:
			m.audit.LogError(referenceID, userID, err)
		}
		return models.TransitionResult{}, err
	}

	if !result.Applied {
		if result.Previous.IsTerminal() && status != models.StatusPending {
			transactionEvents.WithLabelValues("replay").Inc()
		}
		return result, nil
	}

	transactionEvents.WithLabelValues(string(status)).Inc()
	m.audit.LogTransition(referenceID, userID, string(result.Previous), string(result.Current))
	if result.Credited {
		recordCredit(amount)
		m.audit.LogCredit(referenceID, userID, amount, result.Balance)
	}
	return result, nil
}

// Owns reports whether referenceID is one of the user's own records.
func (m *TransactionManager) Owns(ctx context.Context, userID, referenceID string) (bool, error) {
	var owns bool
	err := m.ledger.view(ctx, func(snap *models.Snapshot) error {
		if l, ok := snap.Lookup(userID); ok {
			owns = l.Find(referenceID) >= 0
		}
		return nil
	})
	return owns, err
}

// CanCancel returns nil only for the user's own pending record.
func (m *TransactionManager) CanCancel(ctx context.Context, userID, referenceID string) error {
	return m.ledger.view(ctx, func(snap *models.Snapshot) error {
		l, ok := snap.Lookup(userID)
		if !ok {
			return ErrNotFound
		}
		i := l.Find(referenceID)
		if i < 0 {
			return ErrNotFound
		}
		if status := l.Data[i].Status; status != models.StatusPending {
			return reject("Transaction with status '%s' cannot be cancelled.", status)
		}
		return nil
	})
}

// RecentHistory returns up to limit records, most recent first.
func (m *TransactionManager) RecentHistory(ctx context.Context, userID string, limit int) ([]models.TransactionRecord, error) {
	history := []models.TransactionRecord{}
	if limit <= 0 {
		return history, nil
	}

	err := m.ledger.view(ctx, func(snap *models.Snapshot) error {
		l, ok := snap.Lookup(userID)
		if !ok {
			return nil
		}
		for i := len(l.Data) - 1; i >= 0 && len(history) < limit; i-- {
			history = append(history, l.Data[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// HasUnfinished reports whether the user has a pending record.
func (m *TransactionManager) HasUnfinished(ctx context.Context, userID string) (bool, error) {
	var pending bool
	err := m.ledger.view(ctx, func(snap *models.Snapshot) error {
		if l, ok := snap.Lookup(userID); ok {
			pending = l.HasPending()
		}
		return nil
	})
	return pending, err
}

// OwnerOf finds the user a reference id belongs to.
func (m *TransactionManager) OwnerOf(ctx context.Context, referenceID string) (string, error) {
	var owner string
	err := m.ledger.view(ctx, func(snap *models.Snapshot) error {
		var ok bool
		if owner, ok = findOwner(snap, referenceID); !ok {
			return ErrNotFound
		}
		return nil
	})
	return owner, err
}

func (m *TransactionManager) logRejection(err error, op, userID, referenceID string) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.String("reference_id", referenceID),
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		transactionEvents.WithLabelValues("rejected").Inc()
		m.logger.Info("request rejected", append(fields, zap.String("reason", err.Error()))...)
		return
	}
	m.audit.LogError(referenceID, userID, err)
}

func findOwner(snap *models.Snapshot, referenceID string) (string, bool) {
	users := make([]string, 0, len(snap.Transactions))
	for userID := range snap.Transactions {
		users = append(users, userID)
	}
	sort.Strings(users)

	for _, userID := range users {
		if l, ok := snap.Lookup(userID); ok && l.Find(referenceID) >= 0 {
			return userID, true
		}
	}
	return "", false
}
