package ports

import (
	"context"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// RecordPage is one page of a record listing.
type RecordPage[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// RecordService exposes CRUD over one CRM record kind.
type RecordService[T any] interface {
	Create(ctx context.Context, rec *T) (*T, error)
	Get(ctx context.Context, id string) (*T, error)
	List(ctx context.Context, filter ListFilter) (*RecordPage[T], error)
	Update(ctx context.Context, id string, rec *T) (*T, error)
	Delete(ctx context.Context, id string) error
}

// DashboardService returns the landing page aggregate.
type DashboardService interface {
	Stats(ctx context.Context) (domain.DashboardStats, error)
}
