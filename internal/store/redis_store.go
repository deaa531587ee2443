package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

// RedisStore keeps the two ledger documents under <prefix>:transactions and <prefix>:balances.
type RedisStore struct {
	client          *redis.Client
	transactionsKey string
	balancesKey     string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ledger"
	}
	return &RedisStore{
		client:          client,
		transactionsKey: prefix + ":transactions",
		balancesKey:     prefix + ":balances",
	}
}

// Client returns the connection the store writes through, for other Redis users in the process.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) Load(ctx context.Context) (*models.Snapshot, error) {
	values, err := s.client.MGet(ctx, s.transactionsKey, s.balancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load ledger from redis: %w", err)
	}

	docs := make([][]byte, 2)
	for i, v := range values {
		switch val := v.(type) {
		case nil:
		case string:
			docs[i] = []byte(val)
		default:
			return nil, corrupt("redis value", fmt.Errorf("unexpected type %T", v))
		}
	}
	return decodeDocuments(docs[0], docs[1])
}

func (s *RedisStore) Save(ctx context.Context, snap *models.Snapshot) error {
	transactions, balances, err := encodeDocuments(snap, "")
	if err != nil {
		return err
	}

	err = s.client.MSet(ctx,
		s.transactionsKey, string(transactions),
		s.balancesKey, string(balances),
	).Err()
	if err != nil {
		return fmt.Errorf("save ledger to redis: %w", err)
	}
	return nil
}
