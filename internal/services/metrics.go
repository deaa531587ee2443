package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_transactions_total",
		Help: "Ledger transaction events by kind",
	}, []string{"event"})

	creditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_credits_total",
		Help: "Number of balance credits applied",
	})

	creditedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "topup_credited_amount_total",
		Help: "Sum of all credited amounts",
	})

	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "topup_gateway_requests_total",
		Help: "Payment gateway calls by operation and outcome",
	}, []string{"operation", "outcome"})
)

func gatewayOutcome(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayRequests.WithLabelValues(operation, outcome).Inc()
}
