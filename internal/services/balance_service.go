package services

import (
	"context"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

// BalanceAccountant credits and reads per-user balances.
type BalanceAccountant struct {
	ledger *Ledger
}

func NewBalanceAccountant(ledger *Ledger) *BalanceAccountant {
	return &BalanceAccountant{ledger: ledger}
}

// Credit adds amount to the user's balance and returns the new total.
func (b *BalanceAccountant) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var balance int64
	err := b.ledger.update(ctx, func(snap *models.Snapshot) (bool, error) {
		balance = applyCredit(snap, userID, amount)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	recordCredit(amount)
	return balance, nil
}

// Read returns the user's balance; unknown users have 0.
func (b *BalanceAccountant) Read(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := b.ledger.view(ctx, func(snap *models.Snapshot) error {
		balance = snap.Balances[userID]
		return nil
	})
	return balance, err
}

func applyCredit(snap *models.Snapshot, userID string, amount int64) int64 {
	snap.Balances[userID] += amount
	return snap.Balances[userID]
}

func recordCredit(amount int64) {
	creditsTotal.Inc()
	creditedAmount.Add(float64(amount))
}
