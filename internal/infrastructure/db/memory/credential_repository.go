// Package memory provides process-local repositories for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// CredentialRepository keeps credentials in a map guarded by a mutex. The
// email index is checked and written under the same lock, so concurrent
// creates with one email cannot both succeed.
type CredentialRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Credential
	byEmail map[string]string
}

func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		byID:    make(map[string]*domain.Credential),
		byEmail: make(map[string]string),
	}
}

func (r *CredentialRepository) Create(_ context.Context, cred *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[cred.Email]; exists {
		return domain.ErrDuplicateEmail
	}
	c := *cred
	r.byID[c.ID] = &c
	r.byEmail[c.Email] = c.ID
	return nil
}

func (r *CredentialRepository) FindByEmail(_ context.Context, email string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *r.byID[id]
	return &c, nil
}

func (r *CredentialRepository) FindByID(_ context.Context, id string) (*domain.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cred, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *cred
	return &c, nil
}

func (r *CredentialRepository) Update(_ context.Context, id string, changes domain.CredentialChanges) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cred, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if changes.Email != nil && *changes.Email != cred.Email {
		if _, taken := r.byEmail[*changes.Email]; taken {
			return nil, domain.ErrDuplicateEmail
		}
		delete(r.byEmail, cred.Email)
		r.byEmail[*changes.Email] = id
		cred.Email = *changes.Email
	}
	if changes.Name != nil {
		cred.Name = *changes.Name
	}
	if changes.PasswordHash != nil {
		cred.PasswordHash = *changes.PasswordHash
	}
	if !changes.UpdatedAt.IsZero() {
		cred.UpdatedAt = changes.UpdatedAt
	}
	c := *cred
	return &c, nil
}
