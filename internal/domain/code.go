package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrMalformedToken is returned when a scanned or pasted token does not
// decode into a payment code.
var ErrMalformedToken = errors.New("malformed payment token")

// PaymentCode is a short-lived, fare-bound reference issued by a driver.
// It is read-only once issued; expiry is set by the backend and treated as
// authoritative, the client never computes its own.
type PaymentCode struct {
	Reference    string    `json:"reference"`
	IssuerID     string    `json:"driver_id"`
	IssuerName   string    `json:"driver_name"`
	Fare         float64   `json:"fare"`
	RouteLabel   string    `json:"route"`
	VehicleLabel string    `json:"vehicle"`
	IssuedAt     time.Time `json:"timestamp"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the code is past its validity window at now.
func (c *PaymentCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// EncodeToken renders a payment code as the scannable token payload. The UI
// turns this into a QR image; the agent only owns the payload format.
func EncodeToken(code *PaymentCode) (string, error) {
	data, err := json.Marshal(code)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeToken parses a raw scanned/pasted token back into a payment code.
// Any shape failure is ErrMalformedToken; the raw decode error is not
// user-relevant.
func DecodeToken(raw string) (*PaymentCode, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrMalformedToken
	}

	var code PaymentCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, ErrMalformedToken
	}

	if code.Reference == "" || code.IssuerID == "" || code.Fare <= 0 || code.ExpiresAt.IsZero() {
		return nil, ErrMalformedToken
	}

	return &code, nil
}
