package ports

import (
	"context"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// CredentialRepository persists credentials. Implementations must enforce
// email uniqueness atomically and report collisions as domain.ErrDuplicateEmail.
type CredentialRepository interface {
	Create(ctx context.Context, cred *domain.Credential) error
	// FindByEmail expects an already normalized address.
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	FindByID(ctx context.Context, id string) (*domain.Credential, error)
	// Update applies the non-nil fields of changes and returns the stored record.
	Update(ctx context.Context, id string, changes domain.CredentialChanges) (*domain.Credential, error)
}
