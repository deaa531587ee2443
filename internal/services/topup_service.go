package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/audit"
	"github.com/undefinedable/zeppelin-orderkuota/internal/gateway"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

// PaymentGateway is the part of the gateway client the top-up flow needs.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, referenceID string, amount int64, expiryMinutes int) (*gateway.PaymentResult, error)
	CheckStatus(ctx context.Context, referenceID string) (*gateway.PaymentResult, error)
	CancelPayment(ctx context.Context, referenceID string) (bool, error)
}

type TopUpOptions struct {
	MinAmount     int64
	HistoryLimit  int
	ExpiryMinutes int
}

// TopUpService runs user commands end to end. Each command holds the user's lock for its whole
// duration; the ledger mutex is only taken inside the manager calls, never across a gateway call.
type TopUpService struct {
	transactions *TransactionManager
	balances     *BalanceAccountant
	gateway      PaymentGateway
	references   *ReferenceGenerator
	qr           *QRService
	locks        *KeyedLocker
	opts         TopUpOptions
	audit        *audit.Logger
	logger       *zap.Logger
}

func NewTopUpService(
	transactions *TransactionManager,
	balances *BalanceAccountant,
	gw PaymentGateway,
	qr *QRService,
	opts TopUpOptions,
	auditLogger *audit.Logger,
	logger *zap.Logger,
) *TopUpService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(logger)
	}
	return &TopUpService{
		transactions: transactions,
		balances:     balances,
		gateway:      gw,
		references:   NewReferenceGenerator(),
		qr:           qr,
		locks:        NewKeyedLocker(),
		opts:         opts,
		audit:        auditLogger,
		logger:       logger.Named("topup"),
	}
}

// TopUp creates a gateway payment and registers it as the user's pending transaction.
func (s *TopUpService) TopUp(ctx context.Context, userID string, amount int64) (*models.TopUpReceipt, error) {
	if amount < s.opts.MinAmount {
		return nil, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("Minimum top-up is %s.", Rupiah(s.opts.MinAmount)),
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	unfinished, err := s.transactions.HasUnfinished(ctx, userID)
	if err != nil {
		return nil, err
	}
	if unfinished {
		transactionEvents.WithLabelValues("rejected").Inc()
		return nil, reject(unfinishedReason)
	}

	requested := s.references.Generate(userID)
	res, err := s.gateway.CreatePayment(ctx, requested, amount, s.opts.ExpiryMinutes)
	if err == nil {
		err = res.Err(gateway.OpCreate)
	}
	gatewayOutcome(gateway.OpCreate, err)
	if err != nil {
		s.logger.Warn("failed to create payment",
			zap.String("user_id", userID),
			zap.String("reference_id", requested),
			zap.Error(err),
		)
		s.audit.LogError(requested, userID, err)
		return nil, err
	}

	payment := *res.Data
	if err := s.transactions.Begin(ctx, userID, payment.ReferenceID); err != nil {
		if errors.Is(err, ErrRejected) {
			s.abandon(ctx, userID, payment.ReferenceID)
		}
		return nil, err
	}

	receipt := &models.TopUpReceipt{Payment: payment}
	if s.qr != nil {
		if err := s.qr.Remember(ctx, userID, payment); err != nil {
			s.logger.Warn("failed to cache payment", zap.String("reference_id", payment.ReferenceID), zap.Error(err))
		}
		if png, err := s.qr.Render(payment); err == nil {
			receipt.QRImage = base64.StdEncoding.EncodeToString(png)
		}
	}

	s.logger.Info("top-up created",
		zap.String("user_id", userID),
		zap.String("reference_id", payment.ReferenceID),
		zap.Int64("amount", payment.Amount),
	)
	return receipt, nil
}

// abandon cancels a remote payment the ledger refused to register.
func (s *TopUpService) abandon(ctx context.Context, userID, referenceID string) {
	ok, err := s.gateway.CancelPayment(ctx, referenceID)
	gatewayOutcome(gateway.OpCancel, err)
	if err != nil || !ok {
		s.logger.Warn("failed to cancel unregistered payment",
			zap.String("user_id", userID),
			zap.String("reference_id", referenceID),
			zap.Bool("accepted", ok),
			zap.Error(err),
		)
	}
	s.audit.LogCancel(referenceID, userID, err == nil && ok)
}

// Check queries the gateway and settles the local record with the reported status.
func (s *TopUpService) Check(ctx context.Context, userID, referenceID string) (*models.CheckResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.check(ctx, userID, referenceID)
}

func (s *TopUpService) check(ctx context.Context, userID, referenceID string) (*models.CheckResult, error) {
	if err := s.requireOwner(ctx, userID, referenceID); err != nil {
		return nil, err
	}

	res, err := s.gateway.CheckStatus(ctx, referenceID)
	if err == nil {
		err = res.Err(gateway.OpStatus)
	}
	gatewayOutcome(gateway.OpStatus, err)
	if err != nil {
		s.logger.Warn("failed to check payment status",
			zap.String("user_id", userID),
			zap.String("reference_id", referenceID),
			zap.Error(err),
		)
		return nil, err
	}

	status, err := models.ParseTransactionStatus(res.Data.PaymentStatus)
	if err != nil {
		return nil, &gateway.GatewayError{Operation: gateway.OpStatus, Message: "invalid response", Err: err}
	}

	transition, err := s.transactions.Settle(ctx, userID, referenceID, status, res.Data.Amount)
	if err != nil {
		return nil, err
	}

	if transition.Current.IsTerminal() && s.qr != nil {
		if err := s.qr.Forget(ctx, referenceID); err != nil {
			s.logger.Debug("failed to drop cached payment", zap.String("reference_id", referenceID), zap.Error(err))
		}
	}
	return &models.CheckResult{Payment: *res.Data, Transition: transition}, nil
}

// Cancel cancels the user's pending payment at the gateway and marks it failed locally.
func (s *TopUpService) Cancel(ctx context.Context, userID, referenceID string) (models.TransitionResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.requireOwner(ctx, userID, referenceID); err != nil {
		return models.TransitionResult{}, err
	}
	if err := s.transactions.CanCancel(ctx, userID, referenceID); err != nil {
		return models.TransitionResult{}, err
	}

	ok, err := s.gateway.CancelPayment(ctx, referenceID)
	gatewayOutcome(gateway.OpCancel, err)
	if err != nil {
		return models.TransitionResult{}, err
	}
	s.audit.LogCancel(referenceID, userID, ok)
	if !ok {
		return models.TransitionResult{}, &gateway.GatewayError{
			Operation: gateway.OpCancel,
			Message:   fmt.Sprintf("failed to cancel transaction %s", referenceID),
		}
	}

	result, err := s.transactions.Transition(ctx, userID, referenceID, models.StatusFailed)
	if err != nil {
		return models.TransitionResult{}, err
	}
	if s.qr != nil {
		if err := s.qr.Forget(ctx, referenceID); err != nil {
			s.logger.Debug("failed to drop cached payment", zap.String("reference_id", referenceID), zap.Error(err))
		}
	}
	return result, nil
}

func (s *TopUpService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.balances.Read(ctx, userID)
}

// History returns the user's most recent transactions; limit <= 0 uses the configured default.
func (s *TopUpService) History(ctx context.Context, userID string, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	return s.transactions.RecentHistory(ctx, userID, limit)
}

// QRCode renders the PNG for an open payment of the user.
func (s *TopUpService) QRCode(ctx context.Context, userID, referenceID string) ([]byte, error) {
	if err := s.requireOwner(ctx, userID, referenceID); err != nil {
		return nil, err
	}
	if s.qr == nil {
		return nil, ErrNotFound
	}
	payment, err := s.qr.Lookup(ctx, userID, referenceID)
	if err != nil {
		return nil, err
	}
	return s.qr.Render(*payment)
}

// HandleWebhook reconciles a payment the gateway notified us about. The notification only names
// the payment; its status is always re-read from the gateway.
func (s *TopUpService) HandleWebhook(ctx context.Context, referenceID string) (*models.CheckResult, error) {
	owner, err := s.transactions.OwnerOf(ctx, referenceID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(owner)
	defer unlock()

	return s.check(ctx, owner, referenceID)
}

func (s *TopUpService) requireOwner(ctx context.Context, userID, referenceID string) error {
	owns, err := s.transactions.Owns(ctx, userID, referenceID)
	if err != nil {
		return err
	}
	if !owns {
		return ErrNotFound
	}
	return nil
}
