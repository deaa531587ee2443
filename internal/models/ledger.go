package models

import (
	"encoding/json"
	"fmt"
)

// TransactionStatus is the lifecycle state of a top-up transaction.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
	StatusExpired TransactionStatus = "expired"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusExpired:
		return true
	}
	return false
}

func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// ParseTransactionStatus converts a gateway payment_status into a TransactionStatus.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	s := TransactionStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", raw)
	}
	return s, nil
}

// TransactionRecord is one entry of a user's ledger. The ID is the gateway reference id.
type TransactionRecord struct {
	ID     string            `json:"id"`
	Status TransactionStatus `json:"status"`
}

// UnmarshalJSON accepts ids the bot stored as bare numbers; they are kept as their digit string.
func (r *TransactionRecord) UnmarshalJSON(b []byte) error {
	aux := struct {
		ID     json.RawMessage   `json:"id"`
		Status TransactionStatus `json:"status"`
	}{}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := decodeReferenceID(aux.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	r.ID = id
	r.Status = aux.Status
	return nil
}

// UserLedger is the persisted per-user record set.
// Limit is kept for layout compatibility only; HasPending is the source of truth.
type UserLedger struct {
	Limit int                 `json:"limit"`
	Data  []TransactionRecord `json:"data"`
}

func (l *UserLedger) HasPending() bool {
	for _, t := range l.Data {
		if t.Status == StatusPending {
			return true
		}
	}
	return false
}

// Find returns the index of the record with the given reference id, or -1.
func (l *UserLedger) Find(referenceID string) int {
	for i, t := range l.Data {
		if t.ID == referenceID {
			return i
		}
	}
	return -1
}

// SyncLimit recomputes Limit from the pending scan.
func (l *UserLedger) SyncLimit() {
	if l.HasPending() {
		l.Limit = 1
		return
	}
	l.Limit = 0
}

// Trim drops the oldest terminal records until at most max remain. Pending records are never
// dropped. A max of zero or less disables trimming.
func (l *UserLedger) Trim(max int) int {
	if max <= 0 || len(l.Data) <= max {
		return 0
	}

	excess := len(l.Data) - max
	kept := make([]TransactionRecord, 0, len(l.Data))
	dropped := 0
	for _, t := range l.Data {
		if dropped < excess && t.Status.IsTerminal() {
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	l.Data = kept
	return dropped
}

// Snapshot is the full ledger state: transactions-by-user and balance-by-user.
type Snapshot struct {
	Transactions map[string]*UserLedger `json:"transactions"`
	Balances     map[string]int64       `json:"balances"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Transactions: make(map[string]*UserLedger),
		Balances:     make(map[string]int64),
	}
}

// Ledger returns the user's ledger, creating it when absent.
func (s *Snapshot) Ledger(userID string) *UserLedger {
	if l, ok := s.Transactions[userID]; ok && l != nil {
		return l
	}
	l := &UserLedger{Data: []TransactionRecord{}}
	s.Transactions[userID] = l
	return l
}

// Lookup returns the user's ledger without creating it.
func (s *Snapshot) Lookup(userID string) (*UserLedger, bool) {
	l, ok := s.Transactions[userID]
	return l, ok && l != nil
}

// Normalize fills nil maps and slices left by decoding partial documents.
func (s *Snapshot) Normalize() {
	if s.Transactions == nil {
		s.Transactions = make(map[string]*UserLedger)
	}
	if s.Balances == nil {
		s.Balances = make(map[string]int64)
	}
	for id, l := range s.Transactions {
		if l == nil {
			delete(s.Transactions, id)
			continue
		}
		if l.Data == nil {
			l.Data = []TransactionRecord{}
		}
	}
}

// Validate checks the invariants a decoded snapshot must hold before it is trusted.
func (s *Snapshot) Validate() error {
	for userID, l := range s.Transactions {
		if userID == "" {
			return fmt.Errorf("empty user id in transactions")
		}
		seen := make(map[string]struct{}, len(l.Data))
		for i, t := range l.Data {
			if t.ID == "" {
				return fmt.Errorf("user %s: record %d has empty id", userID, i)
			}
			if !t.Status.Valid() {
				return fmt.Errorf("user %s: record %s has unknown status %q", userID, t.ID, t.Status)
			}
			if _, dup := seen[t.ID]; dup {
				return fmt.Errorf("user %s: duplicate record %s", userID, t.ID)
			}
			seen[t.ID] = struct{}{}
		}
	}
	for userID, amount := range s.Balances {
		if amount < 0 {
			return fmt.Errorf("user %s: negative balance %d", userID, amount)
		}
	}
	return nil
}
