package memory

import (
	"context"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// Store bundles the in-memory repositories used when no database is configured.
type Store struct {
	Credentials *CredentialRepository
	Clients     *RecordRepository[domain.Client, *domain.Client]
	Employees   *RecordRepository[domain.Employee, *domain.Employee]
	Projects    *RecordRepository[domain.Project, *domain.Project]
	Revenue     *RecordRepository[domain.Revenue, *domain.Revenue]
}

func NewStore() *Store {
	return &Store{
		Credentials: NewCredentialRepository(),
		Clients:     NewRecordRepository[domain.Client, *domain.Client](func(c *domain.Client) string { return c.Status }),
		Employees:   NewRecordRepository[domain.Employee, *domain.Employee](func(e *domain.Employee) string { return e.Status }),
		Projects:    NewRecordRepository[domain.Project, *domain.Project](func(p *domain.Project) string { return p.Status }),
		Revenue:     NewRecordRepository[domain.Revenue, *domain.Revenue](func(r *domain.Revenue) string { return r.Status }),
	}
}

// Stats implements ports.StatsRepository.
func (s *Store) Stats(_ context.Context) (domain.DashboardStats, error) {
	stats := domain.DashboardStats{
		Employees: s.Employees.Count(),
		Clients:   s.Clients.Count(),
		Projects:  s.Projects.Count(),
	}
	s.Revenue.Each(func(r *domain.Revenue) { stats.Revenue += r.Amount })
	return stats, nil
}
