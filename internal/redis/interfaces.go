package redis

import (
	"context"
	"time"
)

// SessionStoreInterface defines the interface for session record persistence.
type SessionStoreInterface interface {
	Load(ctx context.Context) (*SessionRecord, error)
	Save(ctx context.Context, record *SessionRecord) error
	Clear(ctx context.Context) error
}

// GuardStoreInterface defines the interface for cross-process reference guards.
type GuardStoreInterface interface {
	AcquireReference(ctx context.Context, reference string, ttl time.Duration) (bool, error)
	ReleaseReference(ctx context.Context, reference string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SessionStoreInterface = (*SessionStore)(nil)
	_ GuardStoreInterface   = (*GuardStore)(nil)
)
