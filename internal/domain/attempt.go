package domain

import "time"

// AttemptStatus represents the current status of a payment attempt.
type AttemptStatus string

const (
	AttemptStatusInitiated AttemptStatus = "INITIATED"
	AttemptStatusSubmitted AttemptStatus = "SUBMITTED"
	AttemptStatusVerified  AttemptStatus = "VERIFIED"
	AttemptStatusFailed    AttemptStatus = "FAILED"
)

// Terminal reports whether the attempt can no longer change.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusVerified || s == AttemptStatusFailed
}

// AttemptKind distinguishes the two initiation paths that share the
// reconciliation state machine.
type AttemptKind string

const (
	AttemptKindProximity AttemptKind = "PROXIMITY"
	AttemptKindTopup     AttemptKind = "TOPUP"
)

// PaymentAttempt is one commitment to pay, keyed by the code or gateway
// reference. Terminal attempts are never retried automatically.
type PaymentAttempt struct {
	ID         string
	Reference  string
	PayerID    string
	Amount     float64
	Kind       AttemptKind
	Status     AttemptStatus
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// TopupIntent is the client's view of an initialized gateway session. The
// reference is the join key used later to verify; nothing else survives the
// redirect.
type TopupIntent struct {
	Reference          string  `json:"reference"`
	Amount             float64 `json:"amount"`
	GatewayRedirectURL string  `json:"authorization_url"`
}
