package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/undefinedable/zeppelin-orderkuota/internal/gateway"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

var (
	// ErrRejected matches every *RejectedError.
	ErrRejected      = errors.New("rejected")
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidAmount = errors.New("amount must be a positive integer")
)

// RejectedError is a business-rule refusal. Reason is safe to show to the user.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError is a bad request argument caught before the ledger is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func statusForInfrastructure(err error) int {
	var gwErr *gateway.GatewayError
	switch {
	case errors.As(err, &gwErr):
		if errors.Is(err, gateway.ErrUnavailable) {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.Is(err, store.ErrCorruptData):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const retryHint = "Please try again later."

// UserMessage renders err for display. Internal details never leak through it.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		rejected   *RejectedError
		validation *ValidationError
		gwErr      *gateway.GatewayError
	)
	switch {
	case errors.As(err, &rejected):
		return rejected.Reason
	case errors.As(err, &validation):
		return validation.Message
	case errors.Is(err, ErrNotFound):
		return "Transaction not found."
	case errors.Is(err, ErrInvalidAmount):
		return "Amount must be a positive number."
	case errors.As(err, &gwErr):
		if gwErr.Message != "" {
			return fmt.Sprintf("Payment gateway error: %s. %s", gwErr.Message, retryHint)
		}
		return "Payment gateway error. " + retryHint
	case errors.Is(err, store.ErrCorruptData):
		return "The ledger is temporarily unavailable. Please contact support."
	default:
		return "Something went wrong. " + retryHint
	}
}
