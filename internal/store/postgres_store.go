package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_transactions (
	user_id      TEXT PRIMARY KEY,
	active_limit SMALLINT NOT NULL DEFAULT 0,
	records      JSONB NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS ledger_balances (
	user_id TEXT PRIMARY KEY,
	amount  BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0)
);`

// PostgresStore keeps one row per user in ledger_transactions and ledger_balances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables when they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Snapshot, error) {
	snap := models.NewSnapshot()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, active_limit, records
		FROM ledger_transactions
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			limit  int
			raw    []byte
		)
		if err := rows.Scan(&userID, &limit, &raw); err != nil {
			return nil, fmt.Errorf("scan ledger transactions: %w", err)
		}
		var data []models.TransactionRecord
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, corrupt("records of user "+userID, err)
		}
		snap.Transactions[userID] = &models.UserLedger{Limit: limit, Data: data}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger transactions: %w", err)
	}

	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT user_id, amount
		FROM ledger_balances
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger balances: %w", err)
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var (
			userID string
			amount int64
		)
		if err := balanceRows.Scan(&userID, &amount); err != nil {
			return nil, fmt.Errorf("scan ledger balances: %w", err)
		}
		snap.Balances[userID] = amount
	}
	if err := balanceRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger balances: %w", err)
	}

	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, corrupt("snapshot", err)
	}
	return snap, nil
}

// Save replaces both tables inside one transaction. Users are written in sorted order.
func (s *PostgresStore) Save(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		snap = models.NewSnapshot()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_transactions`); err != nil {
		return fmt.Errorf("clear ledger transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_balances`); err != nil {
		return fmt.Errorf("clear ledger balances: %w", err)
	}

	for _, userID := range sortedKeys(snap.Transactions) {
		l := snap.Transactions[userID]
		if l == nil {
			continue
		}
		l.SyncLimit()
		records, err := json.Marshal(l.Data)
		if err != nil {
			return fmt.Errorf("encode records of user %s: %w", userID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (user_id, active_limit, records)
			VALUES ($1, $2, $3)`,
			userID, l.Limit, string(records))
		if err != nil {
			return fmt.Errorf("insert ledger transactions of user %s: %w", userID, err)
		}
	}

	for _, userID := range sortedKeys(snap.Balances) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_balances (user_id, amount)
			VALUES ($1, $2)`,
			userID, snap.Balances[userID])
		if err != nil {
			return fmt.Errorf("insert ledger balance of user %s: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger save: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
