package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.GatewayConfig{
		APIURL:       srv.URL,
		AuthUsername: "merchant",
		AuthToken:    "token",
		Timeout:      2 * time.Second,
		Breaker:      config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute},
	}, nil)
}

func TestClient_CreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/payments/create", r.URL.Path)
			assert.Equal(t, "923957", r.URL.Query().Get("reference_id"))
			assert.Equal(t, "10000", r.URL.Query().Get("amount"))
			assert.Equal(t, "5", r.URL.Query().Get("expiry"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "merchant", creds["auth_username"])
			assert.Equal(t, "token", creds["auth_token"])

			w.Write([]byte(`{"success":true,"data":{"reference_id":"923957","amount":10000,"paid_amount":10123,"created_date_str":"2026-01-01 10:00","expired_date_str":"2026-01-01 10:05","qris":{"qris_image_url":"https://img/qr.png","qris_name":"Zeppelin"}}}`))
		})

		res, err := c.CreatePayment(ctx, "923957", 10000, 5)
		require.NoError(t, err)
		require.True(t, res.OK)
		assert.NoError(t, res.Err(OpCreate))
		assert.Equal(t, "923957", res.Data.ReferenceID)
		assert.Equal(t, int64(10123), res.Data.PaidAmount)
		assert.Equal(t, "https://img/qr.png", res.Data.QRIS.ImageURL)
	})

	t.Run("refused", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"success":false,"message":"amount too small"}`))
		})

		res, err := c.CreatePayment(ctx, "1", 10, 5)
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Nil(t, res.Data)
		assert.Equal(t, "amount too small", res.Message)

		var gwErr *GatewayError
		require.ErrorAs(t, res.Err(OpCreate), &gwErr)
		assert.Equal(t, "amount too small", gwErr.Message)
	})

	t.Run("success without data is rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true}`))
		})

		_, err := c.CreatePayment(ctx, "1", 1000, 5)
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, OpCreate, gwErr.Operation)
	})

	t.Run("body without success flag is rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"reference_id":"1"}}`))
		})

		_, err := c.CreatePayment(ctx, "1", 1000, 5)
		var gwErr *GatewayError
		assert.ErrorAs(t, err, &gwErr)
	})
}

func TestClient_CheckStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/payments/ref-A/status", r.URL.Path)
			w.Write([]byte(`{"success":true,"data":{"reference_id":"ref-A","payment_status":"pending","amount":10000}}`))
		})

		res, err := c.CheckStatus(ctx, "ref-A")
		require.NoError(t, err)
		assert.Equal(t, "pending", res.Data.PaymentStatus)
	})

	t.Run("unknown status is a gateway error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"data":{"reference_id":"ref-A","payment_status":"refunded"}}`))
		})

		_, err := c.CheckStatus(ctx, "ref-A")
		var gwErr *GatewayError
		assert.ErrorAs(t, err, &gwErr)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"upstream down"}`))
		})

		_, err := c.CheckStatus(ctx, "ref-A")
		var gwErr *GatewayError
		require.ErrorAs(t, err, &gwErr)
		assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
		assert.Equal(t, "upstream down", gwErr.Message)
	})
}

func TestClient_CancelPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/payments/ref-A/cancel", r.URL.Path)
			w.Write([]byte(`{"success":true}`))
		})

		ok, err := c.CancelPayment(ctx, "ref-A")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("refused", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"message":"already paid"}`))
		})

		ok, err := c.CancelPayment(ctx, "ref-A")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestClient_CircuitBreaker(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, err := c.CheckStatus(context.Background(), "ref-A")
		require.Error(t, err)
	}

	_, err := c.CheckStatus(context.Background(), "ref-A")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 2, calls)
}
