package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

// ErrCorruptData means the persisted ledger could not be parsed. Callers must not replace it
// with an empty snapshot.
var ErrCorruptData = errors.New("ledger data is corrupt")

// Store persists the ledger snapshot. It provides no locking; callers serialize load-modify-save.
type Store interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, snap *models.Snapshot) error
}

// Deps carries the connections a backend may need.
type Deps struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Open selects the backend named by cfg.Backend.
func Open(cfg config.LedgerConfig, deps Deps) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.DataDir), nil
	case config.BackendRedis:
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis backend requires a redis client")
		}
		return NewRedisStore(deps.Redis, cfg.RedisPrefix), nil
	case config.BackendPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres backend requires a database connection")
		}
		return NewPostgresStore(deps.DB), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func corrupt(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorruptData, what, err)
}

// decodeDocuments parses the two persisted documents. A nil document means it does not exist yet.
func decodeDocuments(transactions, balances []byte) (*models.Snapshot, error) {
	snap := models.NewSnapshot()
	if transactions != nil {
		if err := json.Unmarshal(transactions, &snap.Transactions); err != nil {
			return nil, corrupt("transactions", err)
		}
	}
	if balances != nil {
		if err := json.Unmarshal(balances, &snap.Balances); err != nil {
			return nil, corrupt("balances", err)
		}
	}
	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, corrupt("snapshot", err)
	}
	return snap, nil
}

func encodeDocuments(snap *models.Snapshot, indent string) (transactions, balances []byte, err error) {
	if snap == nil {
		snap = models.NewSnapshot()
	}
	for _, l := range snap.Transactions {
		if l != nil {
			l.SyncLimit()
		}
	}

	marshal := json.Marshal
	if indent != "" {
		marshal = func(v any) ([]byte, error) { return json.MarshalIndent(v, "", indent) }
	}

	if transactions, err = marshal(snap.Transactions); err != nil {
		return nil, nil, fmt.Errorf("encode transactions: %w", err)
	}
	if balances, err = marshal(snap.Balances); err != nil {
		return nil, nil, fmt.Errorf("encode balances: %w", err)
	}
	return transactions, balances, nil
}
