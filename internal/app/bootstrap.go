package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/yfarmers/feedledger/internal/balances"
	"github.com/yfarmers/feedledger/internal/catalog"
	jobmetrics "github.com/yfarmers/feedledger/internal/jobs"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/ledger/memstore"
	"github.com/yfarmers/feedledger/internal/ledger/pgstore"
	"github.com/yfarmers/feedledger/internal/ledger/redisstore"
	"github.com/yfarmers/feedledger/internal/observability"
	"github.com/yfarmers/feedledger/internal/platform/cache"
	"github.com/yfarmers/feedledger/internal/platform/db"
	"github.com/yfarmers/feedledger/internal/shared"
)

// Runtime holds the wired services shared by the server, the worker and the CLI.
type Runtime struct {
	Config        *Config
	Logger        *slog.Logger
	Pool          *pgxpool.Pool
	Redis         *redis.Client
	Store         ledger.Store
	Cache         *balances.Cache
	Catalog       *catalog.Service
	Ledger        *ledger.Service
	Balances      *balances.Service
	Metrics       *observability.Metrics
	LedgerMetrics *observability.LedgerMetrics
	JobMetrics    *jobmetrics.Metrics
}

// Bootstrap connects the configured backends and builds the services.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	rt.JobMetrics = jobmetrics.NewMetrics(rt.Metrics.Registerer())

	if cfg.StoreBackend == BackendPostgres {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		rt.Pool = pool
		if err := db.Migrate(ctx, pool); err != nil {
			rt.Close()
			return nil, err
		}
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		switch {
		case err == nil:
			rt.Redis = client
		case cfg.StoreBackend == BackendRedis:
			rt.Close()
			return nil, err
		default:
			logger.Warn("redis unavailable, running without balance cache", slog.Any("error", err))
		}
	}

	shopNames := cfg.Shops
	if len(shopNames) == 0 {
		shopNames = ledger.DefaultShops()
	}
	shops, err := ledger.NewShopSet(shopNames)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var (
		catalogRepo catalog.Repository
		idempotency shared.IdempotencyGuard
		audit       ledger.AuditPort = shared.LogAuditRecorder{Logger: logger}
	)
	switch cfg.StoreBackend {
	case BackendPostgres:
		rt.Store = pgstore.New(rt.Pool)
		catalogRepo = catalog.NewPGRepository(rt.Pool)
		idempotency = shared.NewIdempotencyStore(rt.Pool)
		audit = shared.NewAuditLogger(rt.Pool)
	case BackendRedis:
		rt.Store = redisstore.New(rt.Redis, cfg.RedisPrefix)
		catalogRepo = catalog.NewRedisRepository(rt.Redis)
	default:
		rt.Store = memstore.New()
		catalogRepo = catalog.NewMemoryRepository(nil)
	}
	// A memory store is private to its process, so Redis must not hold state
	// derived from it that other processes would read.
	stateClient := rt.Redis
	if cfg.StoreBackend == BackendMemory {
		stateClient = nil
	}
	if idempotency == nil && stateClient != nil {
		idempotency = shared.NewRedisIdempotencyStore(stateClient, 0)
	}

	rt.Cache = balances.NewCache(stateClient, cfg.BalanceCacheTTL)
	rt.Catalog = catalog.NewService(catalogRepo, rt.Cache, logger.With(slog.String("module", "catalog")))
	if cfg.CatalogSeed {
		added, err := rt.Catalog.Seed(ctx, catalog.DefaultProducts())
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("app: seed catalog: %w", err)
		}
		if added > 0 {
			logger.Info("catalog seeded", slog.Int("products", added))
		}
	}

	rt.LedgerMetrics = observability.NewLedgerMetrics(rt.Metrics.Registerer())
	rt.Ledger = ledger.NewService(ledger.ServiceConfig{
		Store:       rt.Store,
		Catalog:     rt.Catalog,
		Shops:       shops,
		Audit:       audit,
		Idempotency: idempotency,
		Notifier:    rt.Cache,
		Metrics:     rt.LedgerMetrics,
		Logger:      logger.With(slog.String("module", "ledger")),
	})
	rt.Balances = balances.NewService(rt.Store, rt.Catalog, shops.Names(), rt.Cache, logger.With(slog.String("module", "balances")))
	return rt, nil
}

// WatchCache follows invalidations published by every writer sharing the
// balances cache and exports the current version. It returns when ctx is done
// or when there is no shared cache.
func (rt *Runtime) WatchCache(ctx context.Context) {
	for version := range rt.Cache.Subscribe(ctx) {
		rt.LedgerMetrics.CacheVersion(version)
		rt.Logger.Debug("balances cache version changed", slog.Int64("version", version))
	}
}

// Health reports whether the connected backends answer.
func (rt *Runtime) Health(r *http.Request) error {
	if rt.Pool != nil {
		if err := rt.Pool.Ping(r.Context()); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(r.Context()).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases backend connections.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
