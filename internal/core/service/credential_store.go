package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/pkg/logger"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// mutableFields is the allow-list for profile updates, in application order.
var mutableFields = []string{"name", "email", "password"}

var validate = validator.New()

// CredentialStore implements ports.CredentialStore. Passwords are hashed
// explicitly before every write; hashes never leave this type.
type CredentialStore struct {
	repo   ports.CredentialRepository
	hasher ports.PasswordHasher
	log    zerolog.Logger
	now    func() time.Time

	dummyMu   sync.Mutex
	dummyHash string
}

func NewCredentialStore(repo ports.CredentialRepository, hasher ports.PasswordHasher, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		repo:   repo,
		hasher: hasher,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *CredentialStore) Create(ctx context.Context, in ports.NewCredentialInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be one of admin, manager, employee", domain.ErrValidation)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("create credential: %w", err)
	}

	now := s.now()
	cred := &domain.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	logger.FromContext(ctx, s.log).Info().Str("user_id", cred.ID).Str("role", string(role)).Msg("credential created")
	return cred.User(), nil
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	cred, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return cred.User(), nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	cred, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return cred.User(), nil
}

// Update rejects the whole request if any key is outside the allow-list,
// before anything is hashed or written. Concurrent updates are last-write-wins.
func (s *CredentialStore) Update(ctx context.Context, id string, fields map[string]any) (*domain.User, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}
	for key := range fields {
		if !isMutable(key) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidField, key)
		}
	}

	values := make(map[string]string, len(fields))
	for key, raw := range fields {
		v, ok := raw.(string)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s must be a non-empty string", domain.ErrValidation, key)
		}
		values[key] = v
	}

	changes := domain.CredentialChanges{UpdatedAt: s.now()}
	for _, key := range mutableFields {
		v, ok := values[key]
		if !ok {
			continue
		}
		switch key {
		case "name":
			name := strings.TrimSpace(v)
			changes.Name = &name
		case "email":
			email := domain.NormalizeEmail(v)
			if err := checkEmail(email); err != nil {
				return nil, err
			}
			changes.Email = &email
		case "password":
			if err := checkPassword(v); err != nil {
				return nil, err
			}
			hash, err := s.hasher.Hash(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("update credential: %w", err)
			}
			changes.PasswordHash = &hash
		}
	}

	cred, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}

	logger.FromContext(ctx, s.log).Info().Str("user_id", id).Bool("password_changed", changes.PasswordHash != nil).Msg("credential updated")
	return cred.User(), nil
}

// Verify returns domain.ErrInvalidCredentials for unknown emails and wrong
// passwords alike. Unknown emails still pay for one hash comparison.
func (s *CredentialStore) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	cred, err := s.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("verify credential: %w", err)
		}
		s.hasher.Verify(ctx, password, s.placeholderHash(ctx))
		return nil, domain.ErrInvalidCredentials
	}

	if !s.hasher.Verify(ctx, password, cred.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return cred.User(), nil
}

// WarmUp computes the hash that unknown-email logins are compared against,
// so the first such login costs the same as any other.
func (s *CredentialStore) WarmUp(ctx context.Context) error {
	if s.placeholderHash(ctx) == "" {
		return errors.New("placeholder hash unavailable")
	}
	return nil
}

// placeholderHash is computed on first use and retried until it succeeds.
// The request's cancellation does not reach the hasher.
func (s *CredentialStore) placeholderHash(ctx context.Context) string {
	s.dummyMu.Lock()
	defer s.dummyMu.Unlock()
	if s.dummyHash != "" {
		return s.dummyHash
	}

	hash, err := s.hasher.Hash(context.WithoutCancel(ctx), uuid.NewString())
	if err != nil {
		logger.FromContext(ctx, s.log).Warn().Err(err).Msg("placeholder hash unavailable")
		return ""
	}
	s.dummyHash = hash
	return hash
}

func isMutable(key string) bool {
	for _, f := range mutableFields {
		if f == key {
			return true
		}
	}
	return false
}

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: email must be a valid email", domain.ErrValidation)
	}
	return nil
}

func checkPassword(pw string) error {
	switch {
	case pw == "":
		return fmt.Errorf("%w: password is required", domain.ErrValidation)
	case len(pw) > maxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, maxPasswordBytes)
	}
	return nil
}
