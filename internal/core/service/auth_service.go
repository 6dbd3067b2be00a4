package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/pkg/logger"
)

// AuthService implements registration and login on top of the credential
// store. Both paths mint tokens through issueToken so the claims never differ.
type AuthService struct {
	store   ports.CredentialStore
	tokens  ports.TokenIssuer
	limiter ports.LoginLimiter
	log     zerolog.Logger
}

// NewAuthService wires the authenticator. A nil limiter disables throttling.
func NewAuthService(store ports.CredentialStore, tokens ports.TokenIssuer, limiter ports.LoginLimiter, log zerolog.Logger) *AuthService {
	if limiter == nil {
		limiter = noLimit{}
	}
	return &AuthService{store: store, tokens: tokens, limiter: limiter, log: log}
}

func (s *AuthService) Register(ctx context.Context, in ports.NewCredentialInput) (string, *domain.User, error) {
	user, err := s.store.Create(ctx, in)
	if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	log := logger.FromContext(ctx, s.log)
	allowed, err := s.limiter.Reserve(ctx, email)
	if err != nil {
		log.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
	} else if !allowed {
		return "", nil, domain.ErrTooManyAttempts
	}

	user, err := s.store.Verify(ctx, email, password)
	if err != nil {
		return "", nil, err
	}

	if rerr := s.limiter.Reset(ctx, email); rerr != nil {
		log.Warn().Err(rerr).Msg("failed to reset login failures")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	log.Info().Str("user_id", user.ID).Msg("user logged in")
	return token, user, nil
}

func (s *AuthService) issueToken(user *domain.User) (string, error) {
	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

type noLimit struct{}

func (noLimit) Reserve(context.Context, string) (bool, error) { return true, nil }
func (noLimit) Reset(context.Context, string) error           { return nil }
