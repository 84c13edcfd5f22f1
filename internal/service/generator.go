package service

import (
	"context"

	"shuttlepay/internal/domain"
)

// GeneratorBackend is the slice of the campus backend used to issue codes.
type GeneratorBackend interface {
	GenerateCode(ctx context.Context, token string, fare float64, route string) (*domain.PaymentCode, error)
}

// CodeService issues fare-bound proximity payment codes for drivers.
type CodeService struct {
	backend  GeneratorBackend
	sessions *SessionService
}

// NewCodeService creates a new CodeService.
func NewCodeService(generatorBackend GeneratorBackend, sessions *SessionService) *CodeService {
	return &CodeService{
		backend:  generatorBackend,
		sessions: sessions,
	}
}

// GenerateCodeRequest contains the parameters for generating a code.
type GenerateCodeRequest struct {
	Fare  float64
	Route string
}

// GeneratedCode pairs a fresh payment code with its scannable token.
type GeneratedCode struct {
	Code  *domain.PaymentCode
	Token string
}

// GenerateCode asks the backend for a new code and encodes it for display.
// Each call yields an independent reference; refreshing an expired or
// re-priced code is just another call; stale references are never reused.
// The route label is display text, validated (if at all) by the backend.
func (s *CodeService) GenerateCode(ctx context.Context, req GenerateCodeRequest) (*GeneratedCode, error) {
	session, ok := s.sessions.Current()
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if session.Role != domain.RoleDriver {
		return nil, ErrRoleNotAllowed
	}

	if req.Fare <= 0 {
		return nil, ErrInvalidFare
	}

	code, err := s.backend.GenerateCode(ctx, session.Token, req.Fare, req.Route)
	if err != nil {
		return nil, err
	}

	token, err := domain.EncodeToken(code)
	if err != nil {
		return nil, err
	}

	return &GeneratedCode{Code: code, Token: token}, nil
}
