package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

type stubStatsRepo struct {
	calls int
	stats domain.DashboardStats
	err   error
}

func (r *stubStatsRepo) Stats(context.Context) (domain.DashboardStats, error) {
	r.calls++
	return r.stats, r.err
}

type mapStatsCache struct {
	value  *domain.DashboardStats
	getErr error
}

func (c *mapStatsCache) Get(context.Context) (*domain.DashboardStats, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.value, nil
}

func (c *mapStatsCache) Set(_ context.Context, s domain.DashboardStats) error {
	c.value = &s
	return nil
}

func (c *mapStatsCache) Invalidate(context.Context) error {
	c.value = nil
	return nil
}

func TestDashboardService_ReadThrough(t *testing.T) {
	repo := &stubStatsRepo{stats: domain.DashboardStats{Clients: 2, Revenue: 150}}
	cache := &mapStatsCache{}
	svc := NewDashboardService(repo, cache, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if got != repo.stats {
			t.Fatalf("unexpected stats: %+v", got)
		}
	}
	if repo.calls != 1 {
		t.Fatalf("expected one computation, got %d", repo.calls)
	}

	_ = cache.Invalidate(ctx)
	_, _ = svc.Stats(ctx)
	if repo.calls != 2 {
		t.Fatalf("expected recompute after invalidation, got %d", repo.calls)
	}
}

func TestDashboardService_CacheErrorFallsBack(t *testing.T) {
	repo := &stubStatsRepo{stats: domain.DashboardStats{Employees: 4}}
	svc := NewDashboardService(repo, &mapStatsCache{getErr: errors.New("redis down")}, zerolog.Nop())

	got, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got.Employees != 4 {
		t.Fatalf("unexpected stats: %+v", got)
	}
}

func TestDashboardService_RepoError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewDashboardService(&stubStatsRepo{err: boom}, nil, zerolog.Nop())

	if _, err := svc.Stats(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped repo error, got %v", err)
	}
}
