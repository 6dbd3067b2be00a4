package ports

import (
	"context"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// ListFilter carries paging and the optional status filter for record lists.
type ListFilter struct {
	Status string
	Page   int // 1-based
	Limit  int
}

// RecordRepository is the persistence contract shared by all CRM records.
type RecordRepository[T any] interface {
	Create(ctx context.Context, rec *T) error
	FindByID(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, filter ListFilter) ([]*T, int64, error)
	// Replace overwrites the stored record with the same id.
	Replace(ctx context.Context, rec *T) error
	Delete(ctx context.Context, id string) error
}

// StatsRepository computes dashboard aggregates.
type StatsRepository interface {
	Stats(ctx context.Context) (domain.DashboardStats, error)
}

// StatsCache memoizes dashboard aggregates.
type StatsCache interface {
	Get(ctx context.Context) (*domain.DashboardStats, error)
	Set(ctx context.Context, stats domain.DashboardStats) error
	Invalidate(ctx context.Context) error
}
