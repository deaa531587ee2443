package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/undefinedable/zeppelin-orderkuota/internal/config"
	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

const (
	OpCreate = "create"
	OpStatus = "status"
	OpCancel = "cancel"

	maxResponseBytes = 1 << 20
)

// ErrUnavailable is wrapped by GatewayError when the circuit breaker refuses a call.
var ErrUnavailable = errors.New("payment gateway unavailable")

// GatewayError is any failed gateway call: transport error, unexpected HTTP status, undecodable
// body, or an explicit success:false answer.
type GatewayError struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s failed", e.Operation)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PaymentResult is the decoded gateway answer. Data is set iff OK; Message iff !OK.
type PaymentResult struct {
	OK      bool
	Data    *models.PaymentData
	Message string
}

// Err converts a refused result into a *GatewayError.
func (r *PaymentResult) Err(operation string) error {
	if r == nil {
		return &GatewayError{Operation: operation, Message: "empty response"}
	}
	if r.OK {
		return nil
	}
	return &GatewayError{Operation: operation, Message: r.Message}
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type credentials struct {
	AuthUsername string `json:"auth_username"`
	AuthToken    string `json:"auth_token"`
}

// Client talks to the Zeppelin payment API.
type Client struct {
	baseURL    string
	creds      credentials
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gateway")

	maxFailures := cfg.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:    "zeppelin",
		Timeout: cfg.Breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		creds:      credentials{AuthUsername: cfg.AuthUsername, AuthToken: cfg.AuthToken},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

func (c *Client) CreatePayment(ctx context.Context, referenceID string, amount int64, expiryMinutes int) (*PaymentResult, error) {
	query := url.Values{}
	query.Set("reference_id", referenceID)
	query.Set("amount", strconv.FormatInt(amount, 10))
	query.Set("expiry", strconv.Itoa(expiryMinutes))

	body, err := c.call(ctx, OpCreate, "/api/v1/payments/create", query)
	if err != nil {
		return nil, err
	}
	return decodePayment(OpCreate, body)
}

func (c *Client) CheckStatus(ctx context.Context, referenceID string) (*PaymentResult, error) {
	body, err := c.call(ctx, OpStatus, "/api/v1/payments/"+url.PathEscape(referenceID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	result, err := decodePayment(OpStatus, body)
	if err != nil {
		return nil, err
	}
	if result.OK {
		if _, err := models.ParseTransactionStatus(result.Data.PaymentStatus); err != nil {
			return nil, &GatewayError{Operation: OpStatus, Message: "invalid response", Err: err}
		}
	}
	return result, nil
}

// CancelPayment reports whether the gateway accepted the cancellation.
func (c *Client) CancelPayment(ctx context.Context, referenceID string) (bool, error) {
	body, err := c.call(ctx, OpCancel, "/api/v1/payments/"+url.PathEscape(referenceID)+"/cancel", nil)
	if err != nil {
		return false, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil {
		return false, &GatewayError{Operation: OpCancel, Message: "invalid response", Err: err}
	}
	return *env.Success, nil
}

// call runs one POST through the circuit breaker and returns the raw body. 4xx answers are
// handed back for decoding so a success:false message reaches the caller; only transport errors
// and 5xx answers count against the breaker.
func (c *Client) call(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, op, path, query)
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("gateway call rejected by circuit breaker", zap.String("operation", op))
			return nil, &GatewayError{Operation: op, Message: "service temporarily unavailable", Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
		}
		return nil, &GatewayError{Operation: op, Err: err}
	}
	return out.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	payload, err := json.Marshal(c.creds)
	if err != nil {
		return nil, &GatewayError{Operation: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &GatewayError{Operation: op, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed",
			zap.String("operation", op),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, &GatewayError{Operation: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{Operation: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	c.logger.Debug("gateway response",
		zap.String("operation", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &GatewayError{Operation: op, StatusCode: resp.StatusCode, Message: messageOf(body)}
	}
	if resp.StatusCode >= http.StatusBadRequest && !hasSuccessFlag(body) {
		return nil, &GatewayError{Operation: op, StatusCode: resp.StatusCode, Message: messageOf(body)}
	}
	return body, nil
}

func decodePayment(op string, body []byte) (*PaymentResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &GatewayError{Operation: op, Message: "invalid response", Err: err}
	}
	if env.Success == nil {
		return nil, &GatewayError{Operation: op, Message: "invalid response", Err: errors.New("missing success flag")}
	}

	if !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request was refused"
		}
		return &PaymentResult{OK: false, Message: msg}, nil
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &GatewayError{Operation: op, Message: "invalid response", Err: errors.New("success without data")}
	}
	var data models.PaymentData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &GatewayError{Operation: op, Message: "invalid response", Err: err}
	}
	if data.ReferenceID == "" {
		return nil, &GatewayError{Operation: op, Message: "invalid response", Err: errors.New("missing reference_id")}
	}
	return &PaymentResult{OK: true, Data: &data}, nil
}

func hasSuccessFlag(body []byte) bool {
	var env envelope
	return json.Unmarshal(body, &env) == nil && env.Success != nil
}

func messageOf(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Message != "" {
		return env.Message
	}
	return "unexpected response"
}
