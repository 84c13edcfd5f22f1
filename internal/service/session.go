package service

import (
	"context"
	"log"
	"sync"
	"time"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	internalRedis "shuttlepay/internal/redis"
)

// IdentityBackend is the slice of the campus backend the session service uses.
type IdentityBackend interface {
	Login(ctx context.Context, role domain.Role, creds backend.Credentials) (*backend.AuthResult, error)
	Register(ctx context.Context, role domain.Role, reg backend.Registration) (*backend.AuthResult, error)
	GetProfile(ctx context.Context, token string) (*backend.Profile, error)
	UpdateProfile(ctx context.Context, token string, patch map[string]any) (*backend.Profile, error)
}

// SessionService is the single source of truth for "who is acting" on this
// device. No other component mutates session fields; the wallet balance is
// written only through ApplyVerifiedBalance on a verified payment response.
type SessionService struct {
	records internalRedis.SessionStoreInterface
	backend IdentityBackend

	mu       sync.RWMutex
	hydrated bool
	current  *domain.Session
}

// NewSessionService creates a new SessionService.
func NewSessionService(records internalRedis.SessionStoreInterface, identityBackend IdentityBackend) *SessionService {
	return &SessionService{
		records: records,
		backend: identityBackend,
	}
}

// Hydrate restores the persisted session on startup. Any read/parse failure
// or partially valid record fails closed: the device is unauthenticated and
// the persisted state is cleared. Hydrate never returns an error for bad
// persisted data; only a crash-worthy condition would, and there is none.
func (s *SessionService) Hydrate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { s.hydrated = true }()

	record, err := s.records.Load(ctx)
	if err != nil {
		log.Printf("session hydrate: load failed, treating as no session: %v", err)
		s.current = nil
		_ = s.records.Clear(ctx)
		return
	}

	if record == nil {
		s.current = nil
		return
	}

	session, ok := sessionFromRecord(record)
	if !ok {
		log.Printf("session hydrate: malformed record, clearing persisted state")
		s.current = nil
		_ = s.records.Clear(ctx)
		return
	}

	s.current = session
}

// Hydrated reports whether hydration has completed. Callers must not branch
// on identity until it returns true.
func (s *SessionService) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Current returns a copy of the active session, or false when the device is
// unauthenticated or not yet hydrated.
func (s *SessionService) Current() (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hydrated || s.current == nil {
		return domain.Session{}, false
	}
	return *s.current, true
}

// Login authenticates and atomically replaces the persisted identity.
func (s *SessionService) Login(ctx context.Context, role domain.Role, creds backend.Credentials) (domain.Session, error) {
	if !role.Valid() {
		return domain.Session{}, ErrInvalidRole
	}

	result, err := s.backend.Login(ctx, role, creds)
	if err != nil {
		return domain.Session{}, err
	}

	return s.install(ctx, role, result)
}

// Register creates an account and signs the device in with the fresh identity.
func (s *SessionService) Register(ctx context.Context, role domain.Role, reg backend.Registration) (domain.Session, error) {
	if !role.Valid() {
		return domain.Session{}, ErrInvalidRole
	}

	result, err := s.backend.Register(ctx, role, reg)
	if err != nil {
		return domain.Session{}, err
	}

	return s.install(ctx, role, result)
}

// Logout clears all persisted identity and cached data. Idempotent.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	return s.records.Clear(ctx)
}

// UpdateProfile sends a profile patch and replaces the cached copy with the
// backend's authoritative snapshot. Stale local edits never survive a fetch.
func (s *SessionService) UpdateProfile(ctx context.Context, patch map[string]any) (domain.Session, error) {
	session, ok := s.Current()
	if !ok {
		return domain.Session{}, ErrNotAuthenticated
	}

	profile, err := s.backend.UpdateProfile(ctx, session.Token, patch)
	if err != nil {
		return domain.Session{}, err
	}

	return s.replaceProfile(ctx, profile)
}

// LoadUserData fetches the authoritative profile and replaces the cached copy.
func (s *SessionService) LoadUserData(ctx context.Context) (domain.Session, error) {
	session, ok := s.Current()
	if !ok {
		return domain.Session{}, ErrNotAuthenticated
	}

	profile, err := s.backend.GetProfile(ctx, session.Token)
	if err != nil {
		return domain.Session{}, err
	}

	return s.replaceProfile(ctx, profile)
}

// ApplyVerifiedBalance sets the cached wallet balance to the exact value the
// backend reported with a verified payment. This is the only balance write.
func (s *SessionService) ApplyVerifiedBalance(ctx context.Context, newBalance float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNotAuthenticated
	}

	s.current.WalletBalance = newBalance
	s.current.UpdatedAt = time.Now()
	return s.persistLocked(ctx)
}

// install replaces the whole session after a successful login/register.
func (s *SessionService) install(ctx context.Context, role domain.Role, result *backend.AuthResult) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &domain.Session{
		UserID:        result.Profile.UserID,
		Role:          role,
		Token:         result.Token,
		Name:          result.Profile.Name,
		Email:         result.Profile.Email,
		Phone:         result.Profile.Phone,
		WalletBalance: result.Profile.WalletBalance,
		BankDetails:   result.Profile.BankDetails,
		Stats:         result.Profile.Stats,
		UpdatedAt:     time.Now(),
	}
	s.hydrated = true

	if err := s.persistLocked(ctx); err != nil {
		return domain.Session{}, err
	}
	return *s.current, nil
}

// replaceProfile swaps the cached profile fields for a fresh backend snapshot.
// Identity and role stay untouched; they are immutable for the session.
func (s *SessionService) replaceProfile(ctx context.Context, profile *backend.Profile) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return domain.Session{}, ErrNotAuthenticated
	}

	s.current.Name = profile.Name
	s.current.Email = profile.Email
	s.current.Phone = profile.Phone
	s.current.WalletBalance = profile.WalletBalance
	s.current.BankDetails = profile.BankDetails
	s.current.Stats = profile.Stats
	s.current.UpdatedAt = time.Now()

	if err := s.persistLocked(ctx); err != nil {
		return domain.Session{}, err
	}
	return *s.current, nil
}

// persistLocked writes the full session record. Caller holds s.mu.
func (s *SessionService) persistLocked(ctx context.Context) error {
	return s.records.Save(ctx, &internalRedis.SessionRecord{
		UserID:        s.current.UserID,
		Role:          string(s.current.Role),
		Token:         s.current.Token,
		Name:          s.current.Name,
		Email:         s.current.Email,
		Phone:         s.current.Phone,
		WalletBalance: s.current.WalletBalance,
		BankDetails:   s.current.BankDetails,
		Stats:         s.current.Stats,
		UpdatedAt:     s.current.UpdatedAt,
	})
}

// sessionFromRecord validates a persisted record. A record missing any
// required field is rejected whole; there is no partial hydration.
func sessionFromRecord(record *internalRedis.SessionRecord) (*domain.Session, bool) {
	if record.Version != internalRedis.RecordVersion {
		return nil, false
	}

	role := domain.Role(record.Role)
	if record.UserID == "" || record.Token == "" || !role.Valid() {
		return nil, false
	}

	return &domain.Session{
		UserID:        record.UserID,
		Role:          role,
		Token:         record.Token,
		Name:          record.Name,
		Email:         record.Email,
		Phone:         record.Phone,
		WalletBalance: record.WalletBalance,
		BankDetails:   record.BankDetails,
		Stats:         record.Stats,
		UpdatedAt:     record.UpdatedAt,
	}, true
}
