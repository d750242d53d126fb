package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/api"
	"github.com/akylbek/payment-system/event-certificates/internal/certificate"
	"github.com/akylbek/payment-system/event-certificates/internal/config"
	"github.com/akylbek/payment-system/event-certificates/internal/events"
	"github.com/akylbek/payment-system/event-certificates/internal/gateway"
	"github.com/akylbek/payment-system/event-certificates/internal/handlers"
	"github.com/akylbek/payment-system/event-certificates/internal/interfaces"
	"github.com/akylbek/payment-system/event-certificates/internal/notify"
	"github.com/akylbek/payment-system/event-certificates/internal/repository"
	"github.com/akylbek/payment-system/event-certificates/internal/service"
	"github.com/akylbek/payment-system/event-certificates/internal/storage"
	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

const (
	serviceName    = "event-certificates"
	paymentLockTTL = 30 * time.Second
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Event fee payments and certificate issuance",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return repository.InitDB(cmd.Context(), db)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	// Initialize telemetry
	if err := telemetry.InitTelemetry(serviceName, cfg.JaegerEndpoint); err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting event certificates service")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.InitDB(context.Background(), db); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	eventPaymentRepo := repository.NewEventPaymentRepository(db)
	aggregateRepo := repository.NewOrderAggregateRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	// Connect to Redis
	var locker interfaces.Locker
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer redisClient.Close()
		locker = service.NewRedisLocker(redisClient, paymentLockTTL)
	}

	// Connect to NATS
	var notifier interfaces.Notifier
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer nc.Close()
		notifier = notify.NewNatsNotifier(nc)
	}

	// Connect to Kafka
	var publisher interfaces.Publisher
	if cfg.KafkaBrokers != "" {
		kafkaWriter := events.NewKafkaWriter(cfg.KafkaBrokers)
		defer kafkaWriter.Close()
		publisher = events.NewKafkaPublisher(kafkaWriter)
	}

	// Artifact storage
	var (
		store    interfaces.ArtifactStore
		filesDir string
	)
	if cfg.Storage.Bucket != "" {
		s3Store, err := storage.NewS3Store(context.Background(), storage.S3Options{
			Bucket:        cfg.Storage.Bucket,
			AccountID:     cfg.Storage.R2AccountID,
			AccessKeyID:   cfg.Storage.AccessKeyID,
			SecretKey:     cfg.Storage.SecretKey,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize artifact bucket: %w", err)
		}
		store = s3Store
	} else {
		fileStore, err := storage.NewFileStore(cfg.Storage.ArtifactDir, cfg.Storage.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("initialize artifact directory: %w", err)
		}
		store = fileStore
		filesDir = cfg.Storage.ArtifactDir
	}

	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.Timeout)

	// Initialize services
	orders := service.NewOrderManager(service.OrderManagerDeps{
		Payments:      paymentRepo,
		Events:        eventRepo,
		Registrations: registrationRepo,
		Students:      studentRepo,
		Gateway:       gatewayClient,
	}, cfg.Fees, cfg.Plans, cfg.Currency)

	verification := service.NewVerificationEngine(service.VerificationDeps{
		Payments:      paymentRepo,
		Events:        eventRepo,
		Registrations: registrationRepo,
		EventPayments: eventPaymentRepo,
		Students:      studentRepo,
		Users:         userRepo,
		Gateway:       gatewayClient,
		Verifier:      gateway.NewHMACVerifier(cfg.Gateway.KeySecret),
		Locker:        locker,
		Publisher:     publisher,
		Notifier:      notifier,
	})

	resolver := service.NewEligibilityResolver(service.EligibilityDeps{
		Events:          eventRepo,
		Registrations:   registrationRepo,
		EventPayments:   eventPaymentRepo,
		OrderAggregates: aggregateRepo,
		Payments:        paymentRepo,
		Certificates:    certificateRepo,
		Students:        studentRepo,
	})

	renderer := certificate.NewPooledRenderer(certificate.NewDocumentRenderer(), cfg.Certs.RenderConcurrency, cfg.Certs.RenderTimeout)
	generator := certificate.NewGenerator(cfg.Certs.IDPrefix, renderer, store, certificateRepo)
	// Workers may wait on the render pool, so the item budget covers queueing as well.
	coordinator := certificate.NewCoordinator(generator, cfg.Certs.RenderConcurrency*2, 2*cfg.Certs.RenderTimeout)

	certificates := service.NewCertificateService(service.CertificateDeps{
		Events:        eventRepo,
		Registrations: registrationRepo,
		Students:      studentRepo,
		Certificates:  certificateRepo,
		Resolver:      resolver,
		Bulk:          coordinator,
		Publisher:     publisher,
		Notifier:      notifier,
	})

	// Setup Gin router
	r := api.NewRouter(api.RouterDeps{
		Payments:     handlers.NewPaymentHandler(orders, verification),
		Certificates: handlers.NewCertificateHandler(certificates),
		JWTSecret:    cfg.JWTSecret,
		FilesDir:     filesDir,
	})

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Event certificates service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}
