// Command crmd serves the CRM HTTP API.
//
// @title                       CRM API
// @version                     1.0
// @description                 Accounts, sessions and CRM records for small businesses.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/bizdesk/crm-api/internal/api"
	"github.com/bizdesk/crm-api/internal/api/handler"
	"github.com/bizdesk/crm-api/internal/api/metrics"
	"github.com/bizdesk/crm-api/internal/core/domain"
	"github.com/bizdesk/crm-api/internal/core/ports"
	"github.com/bizdesk/crm-api/internal/core/service"
	"github.com/bizdesk/crm-api/internal/infrastructure/db/memory"
	"github.com/bizdesk/crm-api/internal/infrastructure/db/mongo"
	"github.com/bizdesk/crm-api/internal/infrastructure/db/redis"
	"github.com/bizdesk/crm-api/internal/infrastructure/hashing"
	"github.com/bizdesk/crm-api/internal/infrastructure/queue"
	"github.com/bizdesk/crm-api/internal/pkg/config"
	"github.com/bizdesk/crm-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	credentials ports.CredentialRepository
	clients     ports.RecordRepository[domain.Client]
	employees   ports.RecordRepository[domain.Employee]
	projects    ports.RecordRepository[domain.Project]
	revenue     ports.RecordRepository[domain.Revenue]
	stats       ports.StatsRepository
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		boot := logger.Init(logger.Options{})
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "crmd",
		Env:     cfg.Env,
	})

	ready := map[string]handler.PingFunc{}

	repos, closeStore, err := openStore(ctx, cfg, ready, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer closeStore()

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		ready["redis"] = redis.Pinger(rdb)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, login throttling and stats cache disabled")
	}

	// The pool outlives the signal context so in-flight requests can finish hashing.
	poolCtx, stopPool := context.WithCancel(context.Background())
	pool := queue.NewPool(cfg.Auth.HashWorkers, metrics.ObserveQueueDepth, log)
	pool.Start(poolCtx)

	hasher := hashing.NewBcrypt(cfg.Auth.BcryptCost,
		hashing.WithRunner(pool),
		hashing.WithObserver(metrics.ObserveHash),
	)
	creds := service.NewCredentialStore(repos.credentials, hasher, log)
	if err := creds.WarmUp(ctx); err != nil {
		log.Warn().Err(err).Msg("credential store warm-up failed, retrying on first use")
	}
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	throttle := redis.NewLoginThrottle(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow)
	cache := redis.NewStatsCache(rdb, cfg.Redis.StatsCacheTTL)

	e := api.NewRouter(api.Dependencies{
		Log:         log,
		Auth:        service.NewAuthService(creds, tokens, throttle, log),
		Credentials: creds,
		Tokens:      tokens,
		Clients:     service.NewRecordService[domain.Client, *domain.Client]("client", repos.clients, cache, log),
		Employees:   service.NewRecordService[domain.Employee, *domain.Employee]("employee", repos.employees, cache, log),
		Projects:    service.NewRecordService[domain.Project, *domain.Project]("project", repos.projects, cache, log),
		Revenue:     service.NewRecordService[domain.Revenue, *domain.Revenue]("revenue", repos.revenue, cache, log),
		Dashboard:   service.NewDashboardService(repos.stats, cache, log),
		Ready:       ready,
		Registerer:  prometheus.DefaultRegisterer,
		Gatherer:    prometheus.DefaultGatherer,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("driver", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	stopPool()
	pool.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, ready map[string]handler.PingFunc, log zerolog.Logger) (*repositories, func(), error) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		s := memory.NewStore()
		return &repositories{
			credentials: s.Credentials,
			clients:     s.Clients,
			employees:   s.Employees,
			projects:    s.Projects,
			revenue:     s.Revenue,
			stats:       s,
		}, func() {}, nil
	}

	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return nil, nil, err
	}
	s := mongo.NewStore(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	ready["mongodb"] = mongo.Pinger(client)

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("mongo disconnect failed")
		}
	}
	return &repositories{
		credentials: s.Credentials,
		clients:     s.Clients,
		employees:   s.Employees,
		projects:    s.Projects,
		revenue:     s.Revenue,
		stats:       s.Stats,
	}, closeFn, nil
}
