package ports

import (
	"context"
	"time"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// NewCredentialInput carries registration data. Role may be empty.
type NewCredentialInput struct {
	Email    string
	Password string
	Name     string
	Role     domain.Role
}

// CredentialStore owns user identities. Nothing it returns carries a password hash.
type CredentialStore interface {
	Create(ctx context.Context, in NewCredentialInput) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Update accepts only the keys name, email and password.
	Update(ctx context.Context, id string, fields map[string]any) (*domain.User, error)
	// Verify checks a password and returns domain.ErrInvalidCredentials for
	// both unknown emails and wrong passwords.
	Verify(ctx context.Context, email, password string) (*domain.User, error)
}

// AuthService registers and logs in users, minting a session token on success.
type AuthService interface {
	Register(ctx context.Context, in NewCredentialInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

// TokenIssuer mints and validates stateless session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
	// Parse returns the token subject or domain.ErrInvalidToken.
	Parse(token string) (string, error)
}

// LoginLimiter throttles repeated logins per email.
type LoginLimiter interface {
	// Reserve atomically counts an attempt and reports whether it is within
	// the limit. It is called before the password is checked.
	Reserve(ctx context.Context, email string) (bool, error)
	// Reset clears the count after a successful login.
	Reset(ctx context.Context, email string) error
}
