package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

func TestQRService(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewQRService(rdb, 5*time.Minute)
	payment := createdPayment("ref-A", 10000)

	t.Run("remember and lookup", func(t *testing.T) {
		require.NoError(t, s.Remember(ctx, "42", payment))
		assert.Equal(t, 5*time.Minute, mr.TTL("qr:ref-A"))

		got, err := s.Lookup(ctx, "42", "ref-A")
		require.NoError(t, err)
		assert.Equal(t, payment.QRIS.ImageURL, got.QRIS.ImageURL)

		_, err = s.Lookup(ctx, "7", "ref-A")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired entries are gone", func(t *testing.T) {
		require.NoError(t, s.Remember(ctx, "42", payment))
		mr.FastForward(6 * time.Minute)

		_, err := s.Lookup(ctx, "42", "ref-A")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("forget", func(t *testing.T) {
		require.NoError(t, s.Remember(ctx, "42", payment))
		require.NoError(t, s.Forget(ctx, "ref-A"))

		_, err := s.Lookup(ctx, "42", "ref-A")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("render prefers the raw payload", func(t *testing.T) {
		p := payment
		p.QRIS = &models.QRIS{Content: "00020101021126570011ID.DANA.WWW", ImageURL: "https://img"}

		png, err := s.Render(p)
		require.NoError(t, err)
		assert.Equal(t, []byte("\x89PNG"), png[:4])
	})

	t.Run("render without qris", func(t *testing.T) {
		p := payment
		p.QRIS = nil

		_, err := s.Render(p)
		assert.Error(t, err)
	})

	t.Run("no redis", func(t *testing.T) {
		bare := NewQRService(nil, time.Minute)
		assert.NoError(t, bare.Remember(ctx, "42", payment))
		_, err := bare.Lookup(ctx, "42", "ref-A")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
