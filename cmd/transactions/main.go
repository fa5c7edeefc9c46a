package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/folio-backend/internal/adapter/cache"
	grpcadapter "github.com/simaogato/folio-backend/internal/adapter/grpc"
	httpadapter "github.com/simaogato/folio-backend/internal/adapter/http"
	"github.com/simaogato/folio-backend/internal/adapter/rabbitmq"
	"github.com/simaogato/folio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/folio-backend/internal/config"
	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
	"github.com/simaogato/folio-backend/internal/usecase/outbox"
	"github.com/simaogato/folio-backend/internal/usecase/transaction"
)

func main() {
	cfg, err := config.Load(config.ServiceTransactions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("transactions service stopped")
	}
	log.Info().Msg("transactions service stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// 1. Setup Database
	db, err := postgres.NewDB(ctx, cfg.Database.ConnStr, postgres.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.EnsureSchema(ctx, postgres.TransactionsSchema); err != nil {
		return err
	}

	transactionRepo := postgres.NewTransactionRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	// 2. Setup the notification channel
	conn, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	topology := rabbitmq.Topology{
		Exchange:           cfg.RabbitMQ.Exchange,
		RoutingKey:         cfg.RabbitMQ.RoutingKey,
		Queue:              cfg.RabbitMQ.Queue,
		DeadLetterExchange: cfg.RabbitMQ.DeadLetterExch,
		DeadLetterQueue:    cfg.RabbitMQ.DeadLetterQueue,
	}
	if err := topology.Declare(ch); err != nil {
		return err
	}

	rabbitPublisher, err := rabbitmq.NewPublisher(ch, topology,
		rabbitmq.WithConfirmTimeout(cfg.RabbitMQ.ConfirmTimeout),
		rabbitmq.WithLogger(log),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// 3. Pick how deltas reach the channel
	var publisher domain.NotificationPublisher = rabbitPublisher
	if cfg.Notification.Mode == config.NotificationModeOutbox {
		publisher = outbox.NewPublisher(outboxRepo)

		dispatcher := outbox.NewDispatcher(outboxRepo, db, rabbitPublisher,
			cfg.Notification.BatchSize, cfg.Notification.MaxAttempts, cfg.Notification.PollInterval)
		dispatcher.MaxRetryDelay = cfg.Notification.MaxRetryDelay
		g.Go(func() error {
			return dispatcher.Run(logger.WithContext(ctx, log.With().Str("component", "outbox").Logger()))
		})
	}
	log.Info().Str("mode", string(cfg.Notification.Mode)).Msg("notification mode selected")

	// 4. Initialize Services (Use Cases)
	var service transaction.UseCase = transaction.NewService(transactionRepo, db, publisher)

	checks := map[string]httpadapter.HealthCheck{
		"postgres": db.Ping,
		"rabbitmq": conn.Ping,
	}

	if cfg.Cache.Enabled {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		listCache := cache.NewTransactionListCache(client, cfg.Cache.Prefix, cfg.Cache.TTL)
		service = transaction.NewCachingService(service, listCache)
		checks["redis"] = listCache.Ping
	}

	// 5. Start HTTP and gRPC servers
	app := httpadapter.NewApp("folio-transactions", log)
	httpadapter.RegisterHealth(app, checks)
	httpadapter.NewTransactionHandler(service).Register(app)

	grpcChecks := make(map[string]grpcadapter.Check, len(checks))
	for name, check := range checks {
		grpcChecks[name] = grpcadapter.Check(check)
	}
	grpcServer := grpcadapter.NewServer(cfg.Service, grpcChecks, cfg.HealthCheckInterval, log)
	grpcServer.ShutdownTimeout = cfg.ShutdownTimeout

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		return httpadapter.Serve(ctx, app, httpLis, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return grpcServer.Serve(ctx, grpcLis)
	})

	return g.Wait()
}
