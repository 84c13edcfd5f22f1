package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttlepay/internal/domain"
)

// SessionStore persists the device session record in Redis.
type SessionStore struct {
	client *redis.Client
	key    string
}

// NewSessionStore creates a SessionStore scoped to one device.
func NewSessionStore(client *redis.Client, deviceID string) *SessionStore {
	return &SessionStore{
		client: client,
		key:    sessionKeyPrefix + deviceID,
	}
}

// RecordVersion is bumped whenever the record layout changes. A record with
// any other version is treated as absent.
const RecordVersion = 1

const sessionKeyPrefix = "session:device:"

// SessionRecord is the single persisted unit for a session. It is always
// written and read whole so hydration can never observe a partial session.
type SessionRecord struct {
	Version       int                `json:"version"`
	UserID        string             `json:"user_id"`
	Role          string             `json:"role"`
	Token         string             `json:"token"`
	Name          string             `json:"name"`
	Email         string             `json:"email"`
	Phone         string             `json:"phone"`
	WalletBalance float64            `json:"wallet_balance"`
	BankDetails   domain.BankDetails `json:"bank_details"`
	Stats         domain.Stats       `json:"stats"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Load reads the persisted session record. Returns nil on a miss.
func (s *SessionStore) Load(ctx context.Context) (*SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // No session persisted
		}
		return nil, err
	}

	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Save overwrites the session record as one unit. Old values are fully
// replaced, never merged.
func (s *SessionStore) Save(ctx context.Context, record *SessionRecord) error {
	record.Version = RecordVersion
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// Clear removes the session record. Safe to call when nothing is persisted.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
