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

	grpcadapter "github.com/simaogato/folio-backend/internal/adapter/grpc"
	httpadapter "github.com/simaogato/folio-backend/internal/adapter/http"
	"github.com/simaogato/folio-backend/internal/adapter/rabbitmq"
	"github.com/simaogato/folio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/folio-backend/internal/config"
	"github.com/simaogato/folio-backend/internal/logger"
	"github.com/simaogato/folio-backend/internal/usecase/account"
	"github.com/simaogato/folio-backend/internal/usecase/seeder"
)

func main() {
	cfg, err := config.Load(config.ServiceAccounts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Service, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("accounts service stopped")
	}
	log.Info().Msg("accounts service stopped")
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

	if err := db.EnsureSchema(ctx, postgres.AccountsSchema); err != nil {
		return err
	}

	// 2. Initialize Repositories and Services
	accountRepo := postgres.NewAccountRepository(db)
	accountService := account.NewService(accountRepo)

	// 3. Seed configured broker accounts
	created, err := seeder.NewAccountSeeder(accountRepo, cfg.Accounts.SeedBrokers).Seed(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	log.Info().Int("created", created).Msg("account seeding finished")

	// 4. Setup the notification channel
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

	consumer := rabbitmq.NewConsumer(ch, accountService, rabbitmq.ConsumerConfig{
		Queue:    topology.Queue,
		Tag:      "folio-accounts",
		Prefetch: cfg.RabbitMQ.Prefetch,
		Workers:  cfg.RabbitMQ.ConsumerWorkers,
	}, log.With().Str("component", "consumer").Logger())

	// 5. Start HTTP and gRPC servers alongside the consumer
	checks := map[string]httpadapter.HealthCheck{
		"postgres": db.Ping,
		"rabbitmq": conn.Ping,
	}

	app := httpadapter.NewApp("folio-accounts", log)
	httpadapter.RegisterHealth(app, checks)
	httpadapter.NewAccountHandler(accountService).Register(app)

	grpcServer := grpcadapter.NewServer(cfg.Service, map[string]grpcadapter.Check{
		"postgres": db.Ping,
		"rabbitmq": conn.Ping,
	}, cfg.HealthCheckInterval, log)
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

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Run(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		return httpadapter.Serve(ctx, app, httpLis, cfg.ShutdownTimeout)
	})
	g.Go(func() error {
		return grpcServer.Serve(ctx, grpcLis)
	})

	return g.Wait()
}
