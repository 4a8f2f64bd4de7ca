package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/internal/carlock"
	"github.com/AzizTN01/autorent-back/internal/config"
	"github.com/AzizTN01/autorent-back/internal/domain/car"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/internal/domain/user"
	rentalEvents "github.com/AzizTN01/autorent-back/internal/events"
	"github.com/AzizTN01/autorent-back/internal/handler"
	"github.com/AzizTN01/autorent-back/internal/jobs"
	"github.com/AzizTN01/autorent-back/internal/ledger"
	"github.com/AzizTN01/autorent-back/internal/metrics"
	"github.com/AzizTN01/autorent-back/internal/repository"
	"github.com/AzizTN01/autorent-back/internal/repository/memory"
	mongorepo "github.com/AzizTN01/autorent-back/internal/repository/mongo"
	"github.com/AzizTN01/autorent-back/migrations"
	"github.com/AzizTN01/autorent-back/pkg/database"
	"github.com/AzizTN01/autorent-back/pkg/health"
	"github.com/AzizTN01/autorent-back/pkg/kafka"
	"github.com/AzizTN01/autorent-back/pkg/logger"
	"github.com/AzizTN01/autorent-back/pkg/middleware"
)

const serviceName = "autorent-rental"

// stores bundles the repositories and lock selected by configuration.
type stores struct {
	rentals rental.RentalRepository
	users   user.UserRepository
	cars    car.CarRepository
	locker  carlock.Locker
	checks  map[string]health.CheckFunc
	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func main() {
	// A missing .env file is fine; the environment is used as is.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.StorageDriver),
		zap.String("lock", cfg.Lock.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer func() {
		for i := len(st.closers) - 1; i >= 0; i-- {
			_ = st.closers[i].Close()
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.New(registry)

	// Event publishing
	var publisher application.EventPublisher = application.NopPublisher{}
	var kafkaProducer *kafka.Producer
	if cfg.KafkaConfig.Enabled {
		kafkaProducer = kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
		defer func() { _ = kafkaProducer.Close() }()
		publisher = kafkaProducer
	}

	rentalLedger := ledger.New(st.rentals, st.locker, bookingMetrics, log.Named("ledger"), cfg.Ledger)
	rentalService := application.NewRentalService(
		rentalLedger,
		st.users,
		st.cars,
		publisher,
		bookingMetrics,
		log,
	)

	// Payment events move rentals' payment status.
	if cfg.KafkaConfig.Enabled {
		groupID := cfg.KafkaConfig.GroupPrefix + "rental-service"
		paymentConsumer := rentalEvents.NewPaymentEventConsumer(
			cfg.KafkaConfig.Brokers,
			groupID,
			rentalService,
			log,
		)
		defer func() { _ = paymentConsumer.Close() }()

		go func() {
			log.Info("starting payment event consumer")
			if err := paymentConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("payment event consumer error", zap.Error(err))
			}
		}()
	}

	sweeper, err := jobs.NewLifecycleJob(cfg.SweepSpec, rentalService, log.Named("lifecycle"))
	if err != nil {
		log.Fatal("failed to schedule lifecycle sweep", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Start()
		defer sweeper.Stop()
	}

	// Setup Gin router
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	if cfg.MetricsEnabled {
		router.Use(middleware.NewHTTPMetrics(registry, "autorent").Middleware())
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	health.NewHandler(serviceName, st.checks).RegisterRoutes(router)

	handler.NewRentalHandler(rentalService).RegisterRoutes(&router.RouterGroup)
	handler.NewAdminRentalHandler(rentalService).RegisterRoutes(&router.RouterGroup)

	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Stop consumers before draining HTTP.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}

// openStores connects the configured storage and lock backends.
func openStores(ctx context.Context, cfg *config.ServiceConfig, log *zap.Logger) (*stores, error) {
	st := &stores{checks: map[string]health.CheckFunc{}}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		st.rentals = memory.NewRentalRepository()
		st.users = memory.NewUserRepository()
		st.cars = memory.NewCarRepository()

	case config.StoragePostgres:
		if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), migrations.FS, log); err != nil {
			return nil, err
		}
		db, err := database.Connect(cfg.DBConfig, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		st.closers = append(st.closers, sqlDB)
		st.checks["postgres"] = sqlDB.PingContext
		st.rentals = repository.NewGormRentalRepository(db)
		st.users = repository.NewGormUserRepository(db)
		st.cars = repository.NewGormCarRepository(db)

	case config.StorageMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, closerFunc(func() error { return client.Disconnect(context.Background()) }))
		st.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }

		rentals := mongorepo.NewRentalRepository(db)
		if err := rentals.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		st.rentals = rentals
		st.users = mongorepo.NewUserRepository(db)
		st.cars = mongorepo.NewCarRepository(db)

		if cfg.Lock.Driver == config.LockMongo {
			locker := carlock.NewMongo(db.Collection(mongorepo.LocksCollection), cfg.Lock.TTL)
			if err := locker.EnsureIndexes(ctx); err != nil {
				return nil, err
			}
			st.locker = locker
		}
	}

	switch cfg.Lock.Driver {
	case config.LockLocal:
		st.locker = carlock.NewLocal()
	case config.LockRedis:
		client, err := database.ConnectRedis(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client)
		st.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		st.locker = carlock.NewRedis(client, "autorent:carlock:", cfg.Lock.TTL)
	}

	return st, nil
}
