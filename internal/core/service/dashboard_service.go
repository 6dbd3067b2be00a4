package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/pkg/logger"
)

// DashboardService serves the landing page aggregate, read-through cached.
type DashboardService struct {
	repo  ports.StatsRepository
	cache ports.StatsCache
	log   zerolog.Logger
}

// NewDashboardService wires the aggregate source. cache may be nil.
func NewDashboardService(repo ports.StatsRepository, cache ports.StatsCache, log zerolog.Logger) *DashboardService {
	return &DashboardService{repo: repo, cache: cache, log: log}
}

func (s *DashboardService) Stats(ctx context.Context) (domain.DashboardStats, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			logger.FromContext(ctx, s.log).Warn().Err(err).Msg("stats cache read failed, computing")
		case cached != nil:
			return *cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			logger.FromContext(ctx, s.log).Warn().Err(err).Msg("stats cache write failed")
		}
	}
	return stats, nil
}
