package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// QRIS describes where the payer scans. Content is the raw QRIS payload when the gateway sends it.
type QRIS struct {
	ImageURL string `json:"qris_image_url"`
	Name     string `json:"qris_name"`
	Content  string `json:"qris_content,omitempty"`
}

// PaymentData is the gateway's view of a payment request.
type PaymentData struct {
	ReferenceID    string `json:"reference_id"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	Amount         int64  `json:"amount"`
	PaidAmount     int64  `json:"paid_amount"`
	CreatedDateStr string `json:"created_date_str"`
	ExpiredDateStr string `json:"expired_date_str"`
	QRIS           *QRIS  `json:"qris,omitempty"`
}

// UnmarshalJSON accepts reference_id as a JSON string or a bare number; the gateway echoes
// whichever form it was sent.
func (p *PaymentData) UnmarshalJSON(b []byte) error {
	type alias PaymentData
	aux := struct {
		ReferenceID json.RawMessage `json:"reference_id"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	id, err := decodeReferenceID(aux.ReferenceID)
	if err != nil {
		return fmt.Errorf("reference_id: %w", err)
	}
	p.ReferenceID = id
	return nil
}

// decodeReferenceID reads a reference id written as a JSON string or a bare number. Numbers keep
// every digit; null or absent yields "".
func decodeReferenceID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var id string
		err := json.Unmarshal(raw, &id)
		return id, err
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// TransitionResult reports what a transition did to the local record.
type TransitionResult struct {
	ReferenceID string            `json:"reference_id"`
	Previous    TransactionStatus `json:"previous"`
	Current     TransactionStatus `json:"current"`
	Applied     bool              `json:"applied"`
	Credited    bool              `json:"credited"`
	Balance     int64             `json:"balance"`
}

// TopUpReceipt is returned after a payment request is registered.
type TopUpReceipt struct {
	Payment PaymentData `json:"payment"`
	QRImage string      `json:"qr_image,omitempty"`
}

// CheckResult combines the gateway status with the local reconciliation outcome.
type CheckResult struct {
	Payment    PaymentData      `json:"payment"`
	Transition TransitionResult `json:"transition"`
}
