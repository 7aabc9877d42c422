package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/goliatone/go-manufacture/config"
	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/dispatcher"
	"github.com/goliatone/go-manufacture/logger"
	"github.com/goliatone/go-manufacture/messenger"
	"github.com/goliatone/go-manufacture/metrics"
	"github.com/goliatone/go-manufacture/ports"
	"github.com/goliatone/go-manufacture/runner"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

// app holds the process-wide wiring shared by the commands.
type app struct {
	cfg    config.Config
	logger logger.Logger

	mongo *mongo.Client
	db    *mongo.Database
	redis *redis.Client

	repo      store.Repository
	dedup     *dedup.Deduplicator
	collector *metrics.Collector
	bus       *dispatcher.Bus

	closers []io.Closer
}

func newApp(ctx context.Context, cfg config.Config, lgr logger.Logger) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    logger.Normalize(lgr),
		collector: metrics.New(prometheus.NewRegistry()),
	}

	if cfg.UsesMongo() {
		if err := a.connectMongo(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.UsesRedis() {
		if err := a.connectRedis(ctx); err != nil {
			a.close(ctx)
			return nil, err
		}
	}

	a.repo = a.newRepository()
	a.dedup = dedup.New(a.newDedupStore(),
		dedup.WithNamespace(cfg.Dedup.Namespace),
		dedup.WithRetention(cfg.Dedup.Retention),
		dedup.WithLogger(a.logger),
		dedup.WithObserver(a.collector),
	)
	a.bus = dispatcher.New(
		dispatcher.WithLocker(a.newLocker()),
		dispatcher.WithLogger(a.logger),
		dispatcher.WithObserver(a.collector),
		dispatcher.WithRunnerDefaults(runner.FromConfig("handler", cfg.Bus.Handler)...),
	)
	return a, nil
}

func (a *app) connectMongo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongo: %w", err)
	}
	a.mongo = client
	a.db = client.Database(a.cfg.Mongo.Database)
	a.logger.Info("connected to mongo database %s", a.cfg.Mongo.Database)
	return nil
}

func (a *app) connectRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	a.redis = client
	a.closers = append(a.closers, client)
	a.logger.Info("connected to redis at %s", a.cfg.Redis.Addr)
	return nil
}

func (a *app) newRepository() store.Repository {
	if a.db != nil {
		return store.NewMongoRepository(a.db)
	}
	a.logger.Warn("batches are kept in memory; state is lost on restart")
	return store.NewMemoryRepository()
}

func (a *app) newDedupStore() dedup.Store {
	switch a.cfg.Dedup.Backend {
	case config.BackendMongo:
		return dedup.NewMongoStore(a.db, a.cfg.Mongo.DedupCollection)
	case config.BackendRedis:
		return dedup.NewRedisStore(a.redis, a.cfg.Redis.Prefix+"dedup:")
	default:
		return dedup.NewMemoryStore()
	}
}

func (a *app) newLocker() dispatcher.Locker {
	if a.cfg.Bus.Locker == config.BackendRedis {
		return dispatcher.NewRedisLocker(a.redis,
			dispatcher.WithLockPrefix(a.cfg.Redis.Prefix+"lock:"),
			dispatcher.WithLockTTL(a.cfg.Bus.LockTTL),
			dispatcher.WithLockRetry(a.cfg.Bus.LockBackoff, a.cfg.Bus.LockRetries),
			dispatcher.WithLockLogger(a.logger),
		)
	}
	return dispatcher.NewKeyedLocker()
}

// collaborators are the ports owned by other bounded contexts. The worker
// binary runs them in memory; embedding applications pass their own.
type collaborators struct {
	working    ports.WorkingLookup
	orders     *ports.MemoryOrders
	stock      *ports.MemoryStock
	timesheet  ports.TimesheetHandler
	identifier ports.ProductIdentifier
	profiles   ports.ProfileLookup
	notifier   ports.Notifier
	locks      ports.ProductLocks
}

func localCollaborators() collaborators {
	return collaborators{
		working:    ports.NewMemoryWorking(),
		orders:     ports.NewMemoryOrders(),
		stock:      ports.NewMemoryStock(),
		timesheet:  ports.NewMemoryTimesheet(),
		identifier: ports.NewMemoryIdentifier(),
		profiles:   ports.NewMemoryProfiles(),
		notifier:   ports.NewMemoryNotifier(),
		locks:      ports.NewMemoryProductLocks(),
	}
}

// deps guards every mutating downstream call with its own breaker.
func (a *app) deps(pub transport.Publisher, c collaborators) messenger.Deps {
	breakers := ports.NewBreakersFrom(a.cfg.Breaker, a.logger, a.collector.BreakerStateChanged)
	return messenger.Deps{
		Repo:         a.repo,
		Dedup:        a.dedup,
		Working:      c.working,
		Orders:       c.orders,
		Access:       c.orders,
		OrderStatus:  ports.GuardOrderStatus(c.orders, breakers.OrderStatus),
		NewOrder:     ports.GuardNewOrder(c.orders, breakers.NewOrder),
		Identifier:   c.identifier,
		Stock:        ports.GuardStock(c.stock.IncomeHandler(), breakers.Stock),
		PackageStock: ports.GuardPackageStock(c.stock.PackageHandler(), breakers.PackageStock),
		Timesheet:    ports.GuardTimesheet(c.timesheet, breakers.Timesheet),
		Profiles:     c.profiles,
		Notifier:     c.notifier,
		Locks:        c.locks,
		Publisher:    pub,
		Transitions:  a.collector,
		Logger:       a.logger,
	}
}

func (a *app) register(pub transport.Publisher, c collaborators) []dispatcher.Subscription {
	subs := messenger.Register(a.bus, a.deps(pub, c),
		messenger.WithPerOrderPackageDedup(a.cfg.Bus.PerOrderPackageDedup),
	)
	a.logger.Info("registered %d handlers", len(subs))
	return subs
}

// serveMetrics exposes the collector until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.collector.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	a.logger.Info("serving metrics on %s%s", a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("metrics server stopped: %v", err)
	}
}

func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
	a.closers = nil
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Warn("disconnect mongo: %v", err)
		}
		a.mongo = nil
	}
}
