package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/readscape/readscape/internal/catalog"
	"github.com/readscape/readscape/internal/events"
	"github.com/readscape/readscape/internal/interactions"
	"github.com/readscape/readscape/internal/liked"
	"github.com/readscape/readscape/internal/recommend"
	"github.com/readscape/readscape/internal/search"
	"github.com/readscape/readscape/internal/search/cache"
	"github.com/readscape/readscape/internal/server"
	"github.com/readscape/readscape/internal/timerec"
	"github.com/readscape/readscape/pkg/config"
	"github.com/readscape/readscape/pkg/health"
	"github.com/readscape/readscape/pkg/kafka"
	"github.com/readscape/readscape/pkg/logger"
	"github.com/readscape/readscape/pkg/metrics"
	"github.com/readscape/readscape/pkg/postgres"
	pkgredis "github.com/readscape/readscape/pkg/redis"
)

const snapshotInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting reading service", "port", cfg.Server.Port)

	// The catalog and id map are independent sources; load them in parallel.
	var cat *catalog.Catalog
	var idMap map[string]string
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		cat, err = catalog.Load(cfg.Catalog)
		return err
	})
	g.Go(func() error {
		var err error
		idMap, err = interactions.LoadIDMap(cfg.Interactions.IDMapPath)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to load startup data", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	m.CatalogSize.Set(float64(cat.Len()))

	index := search.Build(cat)
	shelf := timerec.NewShelf(cat)
	scanner := interactions.NewScanner(cfg.Interactions.LogPath, idMap)
	recommender := recommend.New(cat, scanner, cfg.Recommend, m)

	queryCache, redisClient, closeCache := newQueryCache(cfg.Redis)
	defer closeCache()

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, usage snapshots disabled", "error", err)
		pgClient = nil
	} else {
		defer pgClient.Close()
	}

	likedStore, err := buildLikedStore(cfg.Liked, pgClient)
	if err != nil {
		slog.Error("failed to initialise liked store", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents)
	defer producer.Close()
	collector := events.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("events collector started", "topic", cfg.Kafka.Topics.UsageEvents)

	aggregator := events.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.UsageEvents, events.HandleEvent(aggregator))
	go func() {
		if err := aggregator.Start(ctx, consumer); err != nil && ctx.Err() == nil {
			slog.Error("events aggregator error", "error", err)
		}
	}()

	invalidate := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate,
		func(ctx context.Context, key, value []byte) error {
			return queryCache.Invalidate(ctx)
		})
	go func() {
		if err := invalidate.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("cache invalidation consumer error", "error", err)
		}
	}()

	if pgClient != nil {
		store, err := events.NewStore(pgClient)
		if err != nil {
			slog.Warn("usage snapshots disabled", "error", err)
		} else {
			store.StartPeriodicSave(ctx, aggregator, snapshotInterval)
		}
	}

	checker := health.NewChecker()
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		if cat.Len() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d books", cat.Len())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "empty catalog"}
	})
	checker.Register("interaction_log", func(ctx context.Context) health.ComponentHealth {
		if _, err := os.Stat(cfg.Interactions.LogPath); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(server.Options{
		Catalog:     cat,
		Index:       index,
		Cache:       queryCache,
		Shelf:       shelf,
		Recommender: recommender,
		LikedStore:  likedStore,
		Collector:   collector,
		Aggregator:  aggregator,
		Metrics:     m,
		DefaultTopK: cfg.Search.TopK,
		MaxResults:  cfg.Search.MaxResults,
	})
	router := server.NewRouter(h, checker, m, cfg.Server.WriteTimeout)

	if cfg.Metrics.Enabled {
		stopMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := stopMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays off: recommendation runs scan the interaction
		// log twice and may take minutes. Shorter routes are bounded by the
		// timeout middleware instead.
		WriteTimeout: 0,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("reading service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("reading service stopped")
}

// newQueryCache builds the query cache. Per-query memoization always runs in
// process; a reachable Redis only adds the shared layer on top. The returned
// client is nil when Redis is unavailable.
func newQueryCache(cfg config.RedisConfig) (*cache.QueryCache, *pkgredis.Client, func()) {
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		slog.Warn("redis unavailable, using in-process memo only", "error", err)
		return cache.New(nil, cfg), nil, func() {}
	}
	slog.Info("search cache enabled", "addr", cfg.Addr, "ttl", cfg.CacheTTL)
	return cache.New(client, cfg), client, func() { client.Close() }
}

// buildLikedStore selects the liked-list backend. CSV is the default; the
// postgres backend requires a reachable database.
func buildLikedStore(cfg config.LikedConfig, pg *postgres.Client) (liked.Store, error) {
	switch cfg.Backend {
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("liked backend is postgres but no database connection is available")
		}
		return liked.NewPostgresStore(pg)
	case "", "csv":
		return liked.NewCSVStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown liked backend %q", cfg.Backend)
	}
}
