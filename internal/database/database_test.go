package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: "5432", User: "ledger", Password: "pw", Name: "topup", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=ledger password=pw dbname=topup sslmode=disable", dsn)
}

func TestOpenRedis(t *testing.T) {
	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)

		rdb, err := OpenRedis(context.Background(), config.RedisConfig{Host: mr.Host(), Port: mr.Port()}, zap.NewNop())
		require.NoError(t, err)
		defer rdb.Close()

		require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
		got, err := mr.Get("k")
		require.NoError(t, err)
		assert.Equal(t, "v", got)
	})

	t.Run("unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		host, port := mr.Host(), mr.Port()
		mr.Close()

		_, err := OpenRedis(context.Background(), config.RedisConfig{Host: host, Port: port}, zap.NewNop())
		assert.Error(t, err)
	})
}
