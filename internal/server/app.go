// Package server assembles the users and auth services from their parts
// and runs them until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/broker"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
	"github.com/dmitrijs2005/streamflow/internal/server/config"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/replication"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/streamflow/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	gs "github.com/dmitrijs2005/streamflow/internal/server/grpc"
	hs "github.com/dmitrijs2005/streamflow/internal/server/http"
)

const limiterCleanupInterval = time.Minute

type runner struct {
	name string
	run  func(ctx context.Context) error
}

// App is a set of long-running components sharing one lifetime. When one
// of them fails the others are stopped; resources are released after all
// have returned.
type App struct {
	name    string
	logger  logging.Logger
	runners []runner
	closers []func() error
}

func (app *App) add(name string, run func(ctx context.Context) error) {
	app.runners = append(app.runners, runner{name: name, run: run})
}

func (app *App) onClose(fn func() error) {
	app.closers = append(app.closers, fn)
}

// NewUsersApp wires the identity owner: the UserService gRPC API behind
// the authorization interceptor, the outbox relay and the health and
// metrics endpoints.
func NewUsersApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel).With("service", "users")
	app := &App{name: "users", logger: logger}

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	app.onClose(db.Close)

	rm := repomanager.NewUsersRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	reg, rec := newMetrics()

	authConn, err := dial(cfg.AuthGRPCAddr)
	if err != nil {
		app.close()
		return nil, err
	}
	app.onClose(authConn.Close)

	users := services.NewUserService(db, rm, logger)
	authorizer := authz.NewAuthorizer(
		auth.NewVerifier([]byte(cfg.SecretKey)),
		rpc.NewRevocationServiceClient(authConn),
		users,
		authz.WithRevocationTimeout(cfg.RevocationTimeout),
		authz.WithLogger(logger),
		authz.WithMetrics(rec),
	)

	grpcServer := gs.NewServer(cfg.GRPCAddr, logger, authorizer, gs.UsersPolicy())
	rpc.RegisterUserServiceServer(grpcServer.Registrar(), gs.NewUsersHandler(users, logger))

	publisher := broker.NewAMQP(broker.AMQPConfig{
		URL:          cfg.AMQPURL,
		Exchange:     cfg.Exchange,
		MaxReconnect: cfg.PublishTimeout,
	}, logger)
	app.onClose(publisher.Close)

	relay := replication.NewRelay(db, rm, publisher, logger, rec,
		replication.WithBatchSize(cfg.OutboxBatchSize),
		replication.WithPollInterval(cfg.OutboxPollInterval),
		replication.WithPublishTimeout(cfg.PublishTimeout),
	)

	httpServer := hs.NewServer(cfg.HTTPAddr, hs.NewSideRouter(metrics.Handler(reg), logger), logger)

	app.add("grpc", grpcServer.Run)
	app.add("http", httpServer.Run)
	app.add("outbox relay", relay.Run)

	return app, nil
}

// NewAuthApp wires the token issuer: login, logout and password change
// over HTTP, the RevocationService gRPC API, the identity replica
// subscriber and the revocation pruner.
func NewAuthApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel).With("service", "auth")
	app := &App{name: "auth", logger: logger}

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	app.onClose(db.Close)

	rm := repomanager.NewAuthRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	reg, rec := newMetrics()

	usersConn, err := dial(cfg.UsersGRPCAddr)
	if err != nil {
		app.close()
		return nil, err
	}
	app.onClose(usersConn.Close)

	secret := []byte(cfg.SecretKey)
	verifier := auth.NewVerifier(secret)

	tokens := services.NewTokenService(db, rm, auth.NewIssuer(secret, cfg.TokenTTL), logger, rec)
	revocations := services.NewRevocationService(db, rm, verifier, logger, rec)
	replicas := services.NewReplicaService(db, rm, logger, rec)

	authorizer := authz.NewAuthorizer(verifier, revocations, replicas,
		authz.WithRevocationTimeout(cfg.RevocationTimeout),
		authz.WithLogger(logger),
		authz.WithMetrics(rec),
	)

	grpcServer := gs.NewServer(cfg.GRPCAddr, logger, authorizer, gs.AuthPolicy())
	rpc.RegisterRevocationServiceServer(grpcServer.Registrar(), gs.NewRevocationHandler(revocations, logger))

	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		app.close()
		return nil, err
	}
	limiter := hs.NewRateLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst, hs.WithTrustedProxies(proxies...))
	router := hs.NewRouter(hs.RouterDeps{
		Handler:    hs.NewHandler(tokens, revocations, hs.NewUsersForwarder(usersConn, cfg.PeerTimeout), logger),
		Authorizer: authorizer,
		LoginLimit: limiter,
		Metrics:    metrics.Handler(reg),
		Logger:     logger,
	})
	httpServer := hs.NewServer(cfg.HTTPAddr, router, logger)

	subscriber := broker.NewAMQP(broker.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.Exchange,
		Queue:    cfg.ReplicaQueue,
	}, logger)
	app.onClose(subscriber.Close)

	applier := replication.NewApplier(replicas, logger)
	pruner := replication.NewPruner(revocations, cfg.PruneInterval, logger)

	app.add("grpc", grpcServer.Run)
	app.add("http", httpServer.Run)
	app.add("replica applier", func(ctx context.Context) error { return applier.Run(ctx, subscriber) })
	app.add("revocation pruner", pruner.Run)
	app.add("login limiter cleanup", func(ctx context.Context) error {
		limiter.Run(ctx, limiterCleanupInterval)
		return nil
	})

	return app, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

func dial(address string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", address, err)
	}
	return conn, nil
}

func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}

// Run starts every component and blocks until ctx is done, a signal
// arrives or a component fails. It returns the first failure.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	stopSignals := app.initSignalHandler(cancelFunc)
	defer stopSignals()

	app.logger.Info(ctx, "Starting app...", "app", app.name)

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, r := range app.runners {
		wg.Add(1)
		go func(r runner) {
			defer wg.Done()
			if err := r.run(ctx); err != nil {
				app.logger.Error(ctx, "component failed", "component", r.name, "error", err)
				once.Do(func() { firstErr = fmt.Errorf("%s: %w", r.name, err) })
			}
			cancelFunc()
		}(r)
	}

	wg.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "Stopping app...", "app", app.name)

	return errors.Join(firstErr, app.close())
}

// close releases resources in reverse order of acquisition.
func (app *App) close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
