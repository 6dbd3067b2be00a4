package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bizdesk/crm-api/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// Pinger returns a readiness check for the client.
func Pinger(client *mongo.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	}
}

// Store bundles the Mongo-backed repositories.
type Store struct {
	Credentials *CredentialRepository
	Clients     *RecordRepository[domain.Client]
	Employees   *RecordRepository[domain.Employee]
	Projects    *RecordRepository[domain.Project]
	Revenue     *RecordRepository[domain.Revenue]
	Stats       *StatsRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		Credentials: NewCredentialRepository(db),
		Clients:     NewRecordRepository[domain.Client](db, collectionClients),
		Employees:   NewRecordRepository[domain.Employee](db, collectionEmployees),
		Projects:    NewRecordRepository[domain.Project](db, collectionProjects),
		Revenue:     NewRecordRepository[domain.Revenue](db, collectionRevenue),
		Stats:       NewStatsRepository(db),
	}
}

// EnsureIndexes creates the indexes every collection relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := s.Credentials.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("credential indexes: %w", err)
	}
	for _, ensure := range []func(context.Context) error{
		s.Clients.EnsureIndexes,
		s.Employees.EnsureIndexes,
		s.Projects.EnsureIndexes,
		s.Revenue.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			return fmt.Errorf("record indexes: %w", err)
		}
	}
	return nil
}
