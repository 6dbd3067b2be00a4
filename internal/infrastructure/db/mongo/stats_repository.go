package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

// StatsRepository computes dashboard aggregates across the record collections.
type StatsRepository struct {
	db *mongo.Database
}

func NewStatsRepository(db *mongo.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Stats(ctx context.Context) (domain.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats domain.DashboardStats
	counts := []struct {
		collection string
		dst        *int64
	}{
		{collectionEmployees, &stats.Employees},
		{collectionClients, &stats.Clients},
		{collectionProjects, &stats.Projects},
	}
	for _, c := range counts {
		n, err := r.db.Collection(c.collection).CountDocuments(ctx, bson.M{})
		if err != nil {
			return domain.DashboardStats{}, fmt.Errorf("count %s: %w", c.collection, err)
		}
		*c.dst = n
	}

	revenue, err := r.revenueTotal(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stats.Revenue = revenue
	return stats, nil
}

func (r *StatsRepository) revenueTotal(ctx context.Context) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}

	cur, err := r.db.Collection(collectionRevenue).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate revenue: %w", err)
	}
	defer cur.Close(ctx)

	var result []struct {
		Total float64 `bson:"total"`
	}
	if err := cur.All(ctx, &result); err != nil {
		return 0, fmt.Errorf("decode revenue total: %w", err)
	}
	if len(result) == 0 {
		return 0, nil
	}
	return result[0].Total, nil
}
