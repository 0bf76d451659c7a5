package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/grpcserver"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/kv"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	envPath := config.LoadEnv()
	log := logger.New(os.Getenv("LOG_LEVEL"))
	defer func() { _ = log.Sync() }()

	if envPath != "" {
		log.Info("Loaded environment variables", zap.String("path", envPath))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	backend, closeBackend, err := newBackend(ctx, cfg, log)
	if err != nil {
		log.Fatal("Backend init error", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	defer closeBackend()

	sizes := make([]orders.ContainerSize, 0, len(cfg.ContainerSizes))
	for _, s := range cfg.ContainerSizes {
		sizes = append(sizes, orders.ContainerSize(s))
	}
	catalog := orders.NewCatalog(sizes)

	grpcSrv := grpcserver.NewServer(log)

	store := storage.NewStore(backend, orders.NewValidator(catalog), log.Named("store"),
		storage.WithReadinessReporter(grpcSrv))

	if err := store.Load(ctx); err != nil {
		log.Error("Initial load failed, dashboard unavailable until POST /dashboard/reload", zap.Error(err))
	}

	var producer kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
	} else {
		producer = kafka.NewConsoleProducer(log)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error("Failed to close producer", zap.Error(err))
		}
	}()

	auditManager := server.NewAuditManager(cfg.Audit.Workers, cfg.Audit.BatchSize, cfg.Audit.FlushInterval,
		producer, cfg.Kafka.Topic, log)

	srv := server.New(store, catalog, log,
		server.WithLocation(cfg.Timezone),
		server.WithAuditManager(auditManager),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})

	g.Go(func() error {
		return grpcSrv.Run(cfg.GRPCPort)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		grpcSrv.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("Dashboard started",
		zap.String("backend", cfg.Backend),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("grpc_port", cfg.GRPCPort),
		zap.String("timezone", cfg.Timezone.String()),
	)

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return
	}
	log.Info("Server gracefully stopped")
}

// newBackend builds the persistence variant named by the configuration. The
// returned func releases its resources.
func newBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendRemote:
		database, err := db.NewDb(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure database pool: %w", err)
		}
		log.Info("Using remote backend", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.Name))
		backend := storage.NewPostgresStorage(postgresql.NewOrderRepo(database), log,
			storage.WithMigration(func(ctx context.Context) error { return db.Migrate(ctx, database) }))
		return backend, database.Close, nil

	default:
		fileStore := kv.NewFileStore(cfg.DataFile)
		log.Info("Using local backend", zap.String("file", fileStore.Path()))
		return storage.NewLocalStorage(fileStore, log), func() {}, nil
	}
}
