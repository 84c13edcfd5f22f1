package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// GuardStore marks payment references as in-flight in Redis. It backs the
// in-process reference ledger when several agent processes share a device.
type GuardStore struct {
	client *redis.Client
}

// NewGuardStore creates a new GuardStore.
func NewGuardStore(client *redis.Client) *GuardStore {
	return &GuardStore{client: client}
}

// AcquireReference attempts to mark the given reference as in-flight.
// Returns true if the mark was placed, false if already held.
func (s *GuardStore) AcquireReference(ctx context.Context, reference string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("guard:reference:%s", reference)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseReference removes the in-flight mark for the given reference.
func (s *GuardStore) ReleaseReference(ctx context.Context, reference string) error {
	key := fmt.Sprintf("guard:reference:%s", reference)

	return s.client.Del(ctx, key).Err()
}
