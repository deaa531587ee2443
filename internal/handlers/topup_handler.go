package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	mW "github.com/undefinedable/zeppelin-orderkuota/internal/middleware"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
	"github.com/undefinedable/zeppelin-orderkuota/internal/services"
	"github.com/undefinedable/zeppelin-orderkuota/internal/store"
)

const maxBodyBytes = 1_048_576

type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type HistoryQuery struct {
	Limit int `validate:"omitempty,min=1,max=50"`
}

type BalanceResponse struct {
	Balance   int64  `json:"balance"`
	Formatted string `json:"formatted"`
}

type TopUpHandler struct {
	service   *services.TopUpService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewTopUpHandler(service *services.TopUpService, logger *zap.Logger) *TopUpHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopUpHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		logger:    logger.Named("http"),
	}
}

// CreateTopUp creates a QRIS payment for the authenticated user
// @Summary Create top-up
// @Description Create a QRIS payment at the gateway and register it as the user's pending transaction
// @Tags topups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TopUpRequest true "Top-up request"
// @Success 200 {object} services.APIResponse{data=models.TopUpReceipt}
// @Failure 400 {object} services.APIResponse
// @Failure 401 {object} services.APIResponse
// @Failure 409 {object} services.APIResponse
// @Failure 502 {object} services.APIResponse
// @Router /topups [post]
func (h *TopUpHandler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req TopUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	receipt, err := h.service.TopUp(r.Context(), userID, req.Amount)
	if err != nil {
		h.fail(w, err, "topup", userID, "")
		return
	}

	msg := fmt.Sprintf("Scan the QRIS to pay %s before %s.",
		services.Rupiah(receipt.Payment.PaidAmount), receipt.Payment.ExpiredDateStr)
	services.SendSuccess(w, msg, receipt)
}

// GetTopUp checks a top-up at the gateway and reconciles it locally
// @Summary Check top-up status
// @Tags topups
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Reference ID"
// @Success 200 {object} services.APIResponse{data=models.CheckResult}
// @Failure 404 {object} services.APIResponse
// @Failure 502 {object} services.APIResponse
// @Router /topups/{ref} [get]
func (h *TopUpHandler) GetTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	ref := chi.URLParam(r, "ref")

	result, err := h.service.Check(r.Context(), userID, ref)
	if err != nil {
		h.fail(w, err, "check", userID, ref)
		return
	}
	services.SendSuccess(w, statusMessage(result), result)
}

// CancelTopUp cancels a pending top-up
// @Summary Cancel top-up
// @Tags topups
// @Produce json
// @Security BearerAuth
// @Param ref path string true "Reference ID"
// @Success 200 {object} services.APIResponse{data=models.TransitionResult}
// @Failure 404 {object} services.APIResponse
// @Failure 409 {object} services.APIResponse
// @Failure 502 {object} services.APIResponse
// @Router /topups/{ref}/cancel [post]
func (h *TopUpHandler) CancelTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	ref := chi.URLParam(r, "ref")

	result, err := h.service.Cancel(r.Context(), userID, ref)
	if err != nil {
		h.fail(w, err, "cancel", userID, ref)
		return
	}
	services.SendSuccess(w, fmt.Sprintf("Transaction %s has been cancelled.", ref), result)
}

// GetQRCode renders the QRIS code of an open top-up
// @Summary Top-up QR code
// @Tags topups
// @Produce png
// @Security BearerAuth
// @Param ref path string true "Reference ID"
// @Success 200 {file} binary
// @Failure 404 {object} services.APIResponse
// @Router /topups/{ref}/qr [get]
func (h *TopUpHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	ref := chi.URLParam(r, "ref")

	png, err := h.service.QRCode(r.Context(), userID, ref)
	if err != nil {
		h.fail(w, err, "qr", userID, ref)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// GetBalance returns the user's balance
// @Summary Balance
// @Tags account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.APIResponse{data=BalanceResponse}
// @Router /balance [get]
func (h *TopUpHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	balance, err := h.service.Balance(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "balance", userID, "")
		return
	}

	msg := "Your balance is empty. Create a top-up to add funds."
	if balance > 0 {
		msg = "Your current balance is " + services.Rupiah(balance) + "."
	}
	services.SendSuccess(w, msg, BalanceResponse{Balance: balance, Formatted: services.Rupiah(balance)})
}

// GetHistory returns the user's most recent transactions
// @Summary Transaction history
// @Tags account
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of records (1-50, default 5)"
// @Success 200 {object} services.APIResponse{data=[]models.TransactionRecord}
// @Failure 400 {object} services.APIResponse
// @Router /history [get]
func (h *TopUpHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := mW.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var q HistoryQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			services.SendErrorResponse(w, "limit must be a number", http.StatusBadRequest, nil)
			return
		}
		q.Limit = limit
	}
	if err := h.validator.ValidateStruct(&q); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	history, err := h.service.History(r.Context(), userID, q.Limit)
	if err != nil {
		h.fail(w, err, "history", userID, "")
		return
	}

	msg := fmt.Sprintf("Your last %d transactions.", len(history))
	if len(history) == 0 {
		msg = "You have no transactions yet."
	}
	services.SendSuccess(w, msg, history)
}

// fail logs err at the severity its kind deserves and answers with a user-safe message.
func (h *TopUpHandler) fail(w http.ResponseWriter, err error, op, userID, ref string) {
	respondError(h.logger, w, err, op, userID, ref)
}

func respondError(logger *zap.Logger, w http.ResponseWriter, err error, op, userID, ref string) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.String("reference_id", ref),
		zap.Error(err),
	}
	status := services.StatusCode(err)
	switch {
	case errors.Is(err, store.ErrCorruptData):
		logger.Error("ledger unavailable", fields...)
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable:
		logger.Error("request failed", fields...)
	case status >= http.StatusBadGateway:
		logger.Warn("gateway call failed", fields...)
	default:
		logger.Info("request refused", fields...)
	}
	services.SendErrorResponse(w, services.UserMessage(err), status, nil)
}

func statusMessage(result *models.CheckResult) string {
	t := result.Transition
	switch t.Current {
	case models.StatusSuccess:
		if t.Credited {
			return "Payment received. Your balance is now " + services.Rupiah(t.Balance) + "."
		}
		return "Payment already received."
	case models.StatusPending:
		return "Waiting for your payment."
	case models.StatusFailed:
		return "Transaction cancelled."
	case models.StatusExpired:
		return "Transaction expired."
	}
	return ""
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
