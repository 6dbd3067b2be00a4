package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/pkg/logger"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// CacheInvalidator drops derived data after a record write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// RecordService implements ports.RecordService for one record kind. P is
// the pointer type of T, which carries the domain.Entity methods.
type RecordService[T any, P interface {
	*T
	domain.Entity
}] struct {
	kind  string
	repo  ports.RecordRepository[T]
	cache CacheInvalidator
	log   zerolog.Logger
	now   func() time.Time
}

// NewRecordService returns a service for records of the given kind. cache may be nil.
func NewRecordService[T any, P interface {
	*T
	domain.Entity
}](kind string, repo ports.RecordRepository[T], cache CacheInvalidator, log zerolog.Logger) *RecordService[T, P] {
	return &RecordService[T, P]{
		kind:  kind,
		repo:  repo,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *RecordService[T, P]) Create(ctx context.Context, rec *T) (*T, error) {
	now := s.now()
	meta := P(rec).Meta()
	meta.ID = uuid.NewString()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	P(rec).Normalize()

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.invalidate(ctx)

	s.logger(ctx).Info().Str("id", meta.ID).Msg("record created")
	return rec, nil
}

func (s *RecordService[T, P]) Get(ctx context.Context, id string) (*T, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.kind, err)
	}
	return rec, nil
}

func (s *RecordService[T, P]) List(ctx context.Context, filter ports.ListFilter) (*ports.RecordPage[T], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	if items == nil {
		items = []*T{}
	}
	return &ports.RecordPage[T]{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Update replaces the record, keeping its id and creation time.
func (s *RecordService[T, P]) Update(ctx context.Context, id string, rec *T) (*T, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", s.kind, err)
	}

	meta := P(rec).Meta()
	meta.ID = id
	meta.CreatedAt = P(existing).Meta().CreatedAt
	meta.UpdatedAt = s.now()
	P(rec).Normalize()

	if err := s.repo.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("update %s: %w", s.kind, err)
	}
	s.invalidate(ctx)
	return rec, nil
}

func (s *RecordService[T, P]) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	s.invalidate(ctx)

	s.logger(ctx).Info().Str("id", id).Msg("record deleted")
	return nil
}

func (s *RecordService[T, P]) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger(ctx).Warn().Err(err).Msg("failed to invalidate stats cache")
	}
}

func (s *RecordService[T, P]) logger(ctx context.Context) *zerolog.Logger {
	l := logger.FromContext(ctx, s.log).With().Str("kind", s.kind).Logger()
	return &l
}
