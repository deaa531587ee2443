package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/undefinedable/zeppelin-orderkuota/internal/models"
)

const qrImageSize = 256

// QRService caches created payments in Redis so their QRIS code can be rendered again while the
// payment is open.
type QRService struct {
	redis *redis.Client
	ttl   time.Duration
}

type cachedPayment struct {
	UserID  string             `json:"user_id"`
	Payment models.PaymentData `json:"payment"`
}

// NewQRService returns a service that renders codes; with a nil client nothing is cached.
func NewQRService(redis *redis.Client, ttl time.Duration) *QRService {
	return &QRService{redis: redis, ttl: ttl}
}

func qrKey(referenceID string) string {
	return fmt.Sprintf("qr:%s", referenceID)
}

func (s *QRService) Remember(ctx context.Context, userID string, payment models.PaymentData) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(cachedPayment{UserID: userID, Payment: payment})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, qrKey(payment.ReferenceID), data, s.ttl).Err()
}

// Lookup returns the cached payment. Entries of other users read as not found.
func (s *QRService) Lookup(ctx context.Context, userID, referenceID string) (*models.PaymentData, error) {
	if s.redis == nil {
		return nil, ErrNotFound
	}

	data, err := s.redis.Get(ctx, qrKey(referenceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var cached cachedPayment
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	if cached.UserID != userID {
		return nil, ErrNotFound
	}
	return &cached.Payment, nil
}

func (s *QRService) Forget(ctx context.Context, referenceID string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, qrKey(referenceID)).Err()
}

// Render encodes the QRIS payload as a PNG. The image URL is encoded when the gateway sent no
// raw payload.
func (s *QRService) Render(payment models.PaymentData) ([]byte, error) {
	if payment.QRIS == nil {
		return nil, fmt.Errorf("payment %s has no QRIS data", payment.ReferenceID)
	}
	content := payment.QRIS.Content
	if content == "" {
		content = payment.QRIS.ImageURL
	}
	if content == "" {
		return nil, fmt.Errorf("payment %s has an empty QRIS payload", payment.ReferenceID)
	}

	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(qrImageSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
