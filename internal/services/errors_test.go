package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/undefinedable/zeppelin-orderkuota/internal/gateway"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

func TestRejectedError(t *testing.T) {
	err := fmt.Errorf("begin: %w", reject("Transaction with status '%s' cannot be cancelled.", "success"))

	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Transaction with status 'success' cannot be cancelled.", UserMessage(err))
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "Transaction not found.", UserMessage(ErrNotFound))
	assert.Equal(t, "Minimum top-up is Rp 1.000.", UserMessage(&ValidationError{Field: "amount", Message: "Minimum top-up is Rp 1.000."}))
	assert.Equal(t,
		"Payment gateway error: amount too small. Please try again later.",
		UserMessage(&gateway.GatewayError{Operation: gateway.OpCreate, Message: "amount too small"}),
	)
	assert.Contains(t, UserMessage(fmt.Errorf("%w: bad json", store.ErrCorruptData)), "contact support")

	internal := UserMessage(errors.New("pq: relation does not exist"))
	assert.NotContains(t, internal, "pq")
}

func TestRupiah(t *testing.T) {
	assert.Equal(t, "Rp 0", Rupiah(0))
	assert.Equal(t, "Rp 10.000", Rupiah(10000))
	assert.Equal(t, "Rp 1.250.000", Rupiah(1250000))
}
