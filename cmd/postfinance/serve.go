package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postfinance/internal/app/postfinance"
	"postfinance/internal/app/shop"
	"postfinance/internal/config"
	postfinance_http "postfinance/internal/handler/http/postfinance"
	kafka_handler "postfinance/internal/handler/kafka"
	"postfinance/internal/infrastructure/database"
	kafka_infra "postfinance/internal/infrastructure/kafka"
	"postfinance/internal/outbox"
	"postfinance/internal/repository/notification_repo"
	notification_memory "postfinance/internal/repository/notification_repo/memory"
	notification_postgres "postfinance/internal/repository/notification_repo/postgres"
	order_postgres "postfinance/internal/repository/order_repo/postgres"
	outbox_postgres "postfinance/internal/repository/outbox_repo/postgres"
)

func serveCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP endpoints, the outbox relay and the order events consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServe(cmd.Context(), cfg, skipMigrations, logger)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config, skipMigrations bool, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("PostFinance backend starting...", zap.String("version", Version))

	db, err := database.Connect(ctx, database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}, 10, 5*time.Second, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", zap.Error(err))
		}
	}()
	logger.Info("Connected to PostgreSQL")

	if !skipMigrations {
		if err := runMigrations(cfg, "up", 0, logger); err != nil {
			return err
		}
	}

	var store notification_repo.NotificationRepository
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("Notifications are kept in memory and lost on restart; run a single instance only")
		store = notification_memory.NewNotificationRepository()
	default:
		store = notification_postgres.NewNotificationRepository(db)
	}

	orderRepository := order_postgres.NewOrderRepository(db, logger.With(zap.String("component", "OrderRepository")))
	outboxRepository := outbox_postgres.NewOutboxRepository()

	directory := shop.NewDirectory(
		db,
		orderRepository,
		outboxRepository,
		cfg.KafkaPaymentStatusTopic,
		cfg.Shop.FinishedURL,
		logger.With(zap.String("component", "ShopDirectory")),
	)

	backend, err := postfinance.NewBackend(cfg.PostFinance, directory, store, logger.With(zap.String("component", "PostFinanceBackend")))
	if err != nil {
		return err
	}
	logger.Info("PostFinance backend initialized",
		zap.String("psp_id", cfg.PostFinance.PSPID),
		zap.String("hash_algorithm", string(backend.Signer().Algorithm())),
		zap.String("entry_url", backend.EntryURL()),
	)

	router := postfinance_http.NewRouter(backend, cfg.Shop.CancelPath, cfg.CORSAllowedOrigins, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var consumer *kafka_infra.Consumer
	var producer kafka_infra.Producer
	if cfg.KafkaEnabled {
		brokers := cfg.GetKafkaBrokers()
		topicsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := kafka_infra.EnsureTopics(topicsCtx, brokers, []string{cfg.KafkaOrderEventsTopic, cfg.KafkaPaymentStatusTopic}, logger)
		cancel()
		if err != nil {
			logger.Error("Failed to ensure Kafka topics", zap.Error(err))
		}

		producer = kafka_infra.NewProducer(brokers, logger.With(zap.String("component", "KafkaProducer")))
		processor := outbox.NewProcessor(
			db,
			outboxRepository,
			producer,
			cfg.OutboxPollInterval,
			cfg.OutboxPollTimeout,
			cfg.OutboxBatchSize,
			logger.With(zap.String("component", "OutboxProcessor")),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Start(ctx)
		}()

		consumer = kafka_infra.NewConsumer(
			brokers,
			cfg.KafkaOrderEventsTopic,
			cfg.KafkaConsumerGroup,
			kafka_handler.OrderCreatedMessageHandler(directory, logger.With(zap.String("component", "OrderCreatedHandler"))),
			logger.With(zap.String("component", "OrderEventsConsumer")),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Consume(ctx); err != nil {
				logger.Error("Order events consumer failed", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("Kafka disabled: orders must be inserted into shop_orders directly and payment events stay in the outbox")
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case runErr = <-serverErr:
		logger.Error("HTTP server failed", zap.Error(runErr))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("Error closing order events consumer", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("Background workers did not stop in time")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}
	logger.Info("PostFinance backend stopped")
	return runErr
}
