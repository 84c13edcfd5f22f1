package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"shuttlepay/internal/backend"
	"shuttlepay/internal/domain"
	internalRedis "shuttlepay/internal/redis"
	"shuttlepay/internal/repository"
	"shuttlepay/internal/service"
)

// newHydratedSession builds a session service hydrated from a persisted
// record with the given role and wallet balance.
func newHydratedSession(role domain.Role, balance float64) (*service.SessionService, *MockSessionRecordStore) {
	store := NewMockSessionRecordStore()
	store.Seed(&internalRedis.SessionRecord{
		Version:       internalRedis.RecordVersion,
		UserID:        "user-1",
		Role:          string(role),
		Token:         "token-1",
		Name:          "Test User",
		Email:         "user@campus.edu",
		WalletBalance: balance,
		UpdatedAt:     time.Now(),
	})

	sessions := service.NewSessionService(store, NewMockIdentityBackend())
	sessions.Hydrate(context.Background())
	return sessions, store
}

// ──────────────────────────────────────────────
// MOCK SESSION RECORD STORE
// ──────────────────────────────────────────────

// MockSessionRecordStore is an in-memory implementation of the session
// record store.
type MockSessionRecordStore struct {
	mu     sync.Mutex
	record *internalRedis.SessionRecord

	// Counters for verification
	SaveCallCount  int32
	ClearCallCount int32

	// Error injection
	LoadError  error
	SaveError  error
	ClearError error
}

// NewMockSessionRecordStore creates a new mock session record store.
func NewMockSessionRecordStore() *MockSessionRecordStore {
	return &MockSessionRecordStore{}
}

// Seed places a record in the store.
func (m *MockSessionRecordStore) Seed(record *internalRedis.SessionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *record
	m.record = &copy
}

func (m *MockSessionRecordStore) Load(ctx context.Context) (*internalRedis.SessionRecord, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil, nil
	}
	copy := *m.record
	return &copy, nil
}

func (m *MockSessionRecordStore) Save(ctx context.Context, record *internalRedis.SessionRecord) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Version = internalRedis.RecordVersion
	copy := *record
	m.record = &copy
	return nil
}

func (m *MockSessionRecordStore) Clear(ctx context.Context) error {
	atomic.AddInt32(&m.ClearCallCount, 1)
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record = nil
	return nil
}

// Record returns the stored record for test assertions.
func (m *MockSessionRecordStore) Record() *internalRedis.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// ──────────────────────────────────────────────
// MOCK IDENTITY BACKEND
// ──────────────────────────────────────────────

// MockIdentityBackend is a mock implementation of service.IdentityBackend.
type MockIdentityBackend struct {
	AuthResult *backend.AuthResult
	Profile    *backend.Profile

	LoginCallCount      int32
	RegisterCallCount   int32
	GetProfileCallCount int32

	LoginError      error
	RegisterError   error
	GetProfileError error
}

// NewMockIdentityBackend creates a mock identity backend.
func NewMockIdentityBackend() *MockIdentityBackend {
	return &MockIdentityBackend{}
}

func (m *MockIdentityBackend) Login(ctx context.Context, role domain.Role, creds backend.Credentials) (*backend.AuthResult, error) {
	atomic.AddInt32(&m.LoginCallCount, 1)
	if m.LoginError != nil {
		return nil, m.LoginError
	}
	return m.AuthResult, nil
}

func (m *MockIdentityBackend) Register(ctx context.Context, role domain.Role, reg backend.Registration) (*backend.AuthResult, error) {
	atomic.AddInt32(&m.RegisterCallCount, 1)
	if m.RegisterError != nil {
		return nil, m.RegisterError
	}
	return m.AuthResult, nil
}

func (m *MockIdentityBackend) GetProfile(ctx context.Context, token string) (*backend.Profile, error) {
	atomic.AddInt32(&m.GetProfileCallCount, 1)
	if m.GetProfileError != nil {
		return nil, m.GetProfileError
	}
	return m.Profile, nil
}

func (m *MockIdentityBackend) UpdateProfile(ctx context.Context, token string, patch map[string]any) (*backend.Profile, error) {
	if m.GetProfileError != nil {
		return nil, m.GetProfileError
	}
	return m.Profile, nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT BACKEND
// ──────────────────────────────────────────────

// MockPaymentBackend is a mock implementation of service.PaymentBackend.
type MockPaymentBackend struct {
	Result *backend.PayResult
	Error  error

	// Block, when set, makes PayWithCode wait until it is closed. Used to
	// hold a submission in flight during concurrency tests.
	Block chan struct{}

	PayCallCount int32
}

// NewMockPaymentBackend creates a mock payment backend.
func NewMockPaymentBackend() *MockPaymentBackend {
	return &MockPaymentBackend{}
}

func (m *MockPaymentBackend) PayWithCode(ctx context.Context, token string, code *domain.PaymentCode) (*backend.PayResult, error) {
	atomic.AddInt32(&m.PayCallCount, 1)
	if m.Block != nil {
		<-m.Block
	}
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Result, nil
}

// ──────────────────────────────────────────────
// MOCK TOPUP BACKEND
// ──────────────────────────────────────────────

// MockTopupBackend is a mock implementation of service.TopupBackend.
type MockTopupBackend struct {
	Intent       *domain.TopupIntent
	VerifyResult *backend.VerifyResult

	InitializeError error
	VerifyError     error

	// Block, when set, makes VerifyTopup wait until it is closed.
	Block chan struct{}

	InitializeCallCount int32
	VerifyCallCount     int32
}

// NewMockTopupBackend creates a mock top-up backend.
func NewMockTopupBackend() *MockTopupBackend {
	return &MockTopupBackend{}
}

func (m *MockTopupBackend) InitializeTopup(ctx context.Context, token string, amount float64, email string) (*domain.TopupIntent, error) {
	atomic.AddInt32(&m.InitializeCallCount, 1)
	if m.InitializeError != nil {
		return nil, m.InitializeError
	}
	return m.Intent, nil
}

func (m *MockTopupBackend) VerifyTopup(ctx context.Context, token, reference string) (*backend.VerifyResult, error) {
	atomic.AddInt32(&m.VerifyCallCount, 1)
	if m.Block != nil {
		<-m.Block
	}
	if m.VerifyError != nil {
		return nil, m.VerifyError
	}
	return m.VerifyResult, nil
}

// ──────────────────────────────────────────────
// MOCK GENERATOR BACKEND
// ──────────────────────────────────────────────

// MockGeneratorBackend is a mock implementation of service.GeneratorBackend.
type MockGeneratorBackend struct {
	Code  *domain.PaymentCode
	Error error

	GenerateCallCount int32
}

// NewMockGeneratorBackend creates a mock generator backend.
func NewMockGeneratorBackend() *MockGeneratorBackend {
	return &MockGeneratorBackend{}
}

func (m *MockGeneratorBackend) GenerateCode(ctx context.Context, token string, fare float64, route string) (*domain.PaymentCode, error) {
	atomic.AddInt32(&m.GenerateCallCount, 1)
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Code, nil
}

// ──────────────────────────────────────────────
// MOCK ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockAttemptRepository is an in-memory implementation of AttemptRepository.
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]*domain.PaymentAttempt

	CreateCallCount int32
	CreateError     error
}

// NewMockAttemptRepository creates a new mock attempt repository.
func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{
		attempts: make(map[string]*domain.PaymentAttempt),
	}
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *attempt
	m.attempts[attempt.ID] = &copy
	return nil
}

func (m *MockAttemptRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.Reference == reference {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockAttemptRepository) UpdateStatus(ctx context.Context, id string, status domain.AttemptStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[id]
	if !ok {
		return repository.ErrNotFound
	}
	attempt.Status = status
	attempt.Message = message
	if status.Terminal() {
		attempt.FinishedAt = time.Now()
	}
	return nil
}

func (m *MockAttemptRepository) ListByPayer(ctx context.Context, payerID string) ([]*domain.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.PaymentAttempt
	for _, a := range m.attempts {
		if a.PayerID == payerID {
			copy := *a
			result = append(result, &copy)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK CAPTURE SESSION
// ──────────────────────────────────────────────

// MockCaptureSession is a mock scanning-hardware handle.
type MockCaptureSession struct {
	CloseCallCount int32
	CloseError     error
}

// NewMockCaptureSession creates a mock capture session.
func NewMockCaptureSession() *MockCaptureSession {
	return &MockCaptureSession{}
}

func (m *MockCaptureSession) Close() error {
	atomic.AddInt32(&m.CloseCallCount, 1)
	return m.CloseError
}
