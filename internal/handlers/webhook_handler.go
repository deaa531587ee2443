package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
	"github.com/undefinedable/zeppelin-orderkuota/internal/services"
)

const signatureHeader = "X-Signature"

type WebhookHandler struct {
	service *services.TopUpService
	secret  []byte
	logger  *zap.Logger
}

func NewWebhookHandler(service *services.TopUpService, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{service: service, secret: []byte(secret), logger: logger.Named("webhook")}
}

// Sign returns the hex HMAC-SHA256 of body, as expected in the X-Signature header.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleZeppelin reconciles a payment the gateway notified about
// @Summary Gateway payment notification
// @Description The body only identifies the payment; its status is re-read from the gateway
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Signature header string true "hex HMAC-SHA256 of the body"
// @Param request body object{reference_id=string} true "Notification"
// @Success 200 {object} services.APIResponse{data=models.TransitionResult}
// @Failure 401 {object} services.APIResponse
// @Failure 404 {object} services.APIResponse
// @Router /webhooks/zeppelin [post]
func (h *WebhookHandler) HandleZeppelin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if !h.verify(body, r.Header.Get(signatureHeader)) {
		h.logger.Warn("rejected webhook with bad signature", zap.String("remote_addr", r.RemoteAddr))
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	var notification models.PaymentData
	if err := json.Unmarshal(body, &notification); err != nil || notification.ReferenceID == "" {
		services.SendErrorResponse(w, "reference_id is required", http.StatusBadRequest, nil)
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), notification.ReferenceID)
	if err != nil {
		respondError(h.logger, w, err, "webhook", "", notification.ReferenceID)
		return
	}

	h.logger.Info("webhook processed",
		zap.String("reference_id", notification.ReferenceID),
		zap.String("status", string(result.Transition.Current)),
		zap.Bool("credited", result.Transition.Credited),
	)
	services.SendSuccess(w, statusMessage(result), result.Transition)
}

// verify refuses everything when no secret is configured.
func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
