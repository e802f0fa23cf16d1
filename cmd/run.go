package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"fitpledge/application"
	"fitpledge/auth"
	"fitpledge/config"
	"fitpledge/database"
	"fitpledge/events"
	"fitpledge/httpapi"
	"fitpledge/infrastructure"
	"fitpledge/infrastructure/observability"
	"fitpledge/repository"
	"fitpledge/service"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets the logrus level and formatter for the environment
func ConfigureLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "development" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting fitpledge...")

	// Initialize metrics
	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	unsubscribeMetrics := service.RegisterLedgerMetrics(eventBus)
	defer unsubscribeMetrics()

	// Initialize NATS when enabled; committed events go nowhere else otherwise
	var natsClient *infrastructure.NATSClient
	var remote events.Publisher = infrastructure.NewNoopEventPublisher()
	if cfg.NATSEnabled {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		publisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := publisher.EnsureDomainEventStream(natsClient); err != nil {
			natsClient.Close()
			db.Close()
			return fmt.Errorf("failed to create domain event stream: %w", err)
		}
		remote = publisher
		log.Info("NATS connection established successfully")
	} else {
		log.Info("NATS disabled, domain events stay in-process")
	}

	// Initialize unit of work factory
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus, remote)

	// Initialize services
	ledgerService := service.NewLedgerService(uowFactory, eventBus, cfg)
	paymentService := service.NewPaymentService(uowFactory, cfg)
	commitmentService := service.NewCommitmentService(uowFactory, cfg)
	contestService := service.NewContestService(uowFactory, cfg)
	workoutService := service.NewWorkoutService(uowFactory, commitmentService, contestService, cfg)
	log.Info("Services initialized successfully")

	// Start settlement worker
	interval := time.Duration(cfg.SettlementIntervalMinutes) * time.Minute
	settlementWorker := application.NewSettlementWorker(uowFactory, paymentService, commitmentService, contestService, interval, cfg.WithdrawalResendAfter)
	stopWorker := settlementWorker.Start(ctx)

	// Start message consumer
	var consumer *infrastructure.MessageConsumer
	consumerDone := make(chan struct{})
	if natsClient != nil {
		consumer = infrastructure.NewMessageConsumer(natsClient)
		application.NewMessageHandlers(paymentService, workoutService).Register(consumer)
		go func() {
			defer close(consumerDone)
			if err := consumer.Start(ctx); err != nil {
				log.WithError(err).Error("Message consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	// Start HTTP server
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTokenTTL)
	server := httpapi.NewServer(cfg, httpapi.Services{
		Ledger:      ledgerService,
		Payments:    paymentService,
		Commitments: commitmentService,
		Contests:    contestService,
		Workouts:    workoutService,
	}, jwtManager)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for context cancellation or a server failure
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
	}

	// Cleanup resources
	log.Info("Shutting down fitpledge...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down HTTP server")
	}

	stopWorker()

	if consumer != nil {
		consumer.Stop()
	}
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		log.Warn("Message consumer did not stop before the shutdown timeout")
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}

	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}

	// Close database connection
	log.Info("Closing database connection...")
	db.Close()

	log.Info("Shutdown completed")
	return runErr
}
