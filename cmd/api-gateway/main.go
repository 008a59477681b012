package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/handler"
	"github.com/noah-isme/elective-seat-api/internal/repository"
	"github.com/noah-isme/elective-seat-api/internal/router"
	"github.com/noah-isme/elective-seat-api/internal/service"
	"github.com/noah-isme/elective-seat-api/pkg/broker"
	"github.com/noah-isme/elective-seat-api/pkg/cache"
	"github.com/noah-isme/elective-seat-api/pkg/config"
	"github.com/noah-isme/elective-seat-api/pkg/database"
	"github.com/noah-isme/elective-seat-api/pkg/jobs"
	"github.com/noah-isme/elective-seat-api/pkg/logger"
	"github.com/noah-isme/elective-seat-api/pkg/signing"
)

// @title Elective Seat API
// @version 1.0.0
// @description Course seat and waitlist admission service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db, logr); err != nil {
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and live seat updates disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Cache.CourseTTL,
		logr,
		cfg.Cache.Enabled && redisClient != nil,
	)
	broadcaster := cache.NewBroadcaster(redisClient)

	var messages interface {
		Publish(ctx context.Context, queue string, payload interface{}) error
	}
	if cfg.RabbitMQ.URL != "" {
		publisher := broker.NewPublisher(cfg.RabbitMQ.URL, logr)
		defer publisher.Close() //nolint:errcheck
		messages = publisher
	} else {
		logr.Warn("rabbitmq url not set, offer and confirmation messages will not be published")
	}

	worker := service.NewNotificationWorker(broadcaster, messages, cacheSvc, service.NotificationRoutes{
		SeatUpdatesChannel: cfg.Notifications.SeatUpdatesChannel,
		PromotedQueue:      cfg.Notifications.PromotedQueue,
		ConfirmedQueue:     cfg.Notifications.ConfirmedQueue,
	}, metricsSvc, logr)

	var dispatcher interface{ Enqueue(job jobs.Job) error }
	if cfg.Notifications.Enabled {
		queue := jobs.NewQueue("notifications", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
			OnDrop:     worker.Dropped,
		})
		queue.Start(context.Background())
		defer queue.Stop()
		dispatcher = queue
	}

	signer := signing.NewOfferSigner(cfg.Offers.SigningSecret)
	notifier := service.NewNotificationService(dispatcher, signer, cfg.Offers.AcceptBaseURL, metricsSvc, logr)

	courseRepo := repository.NewCourseRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	ledgerStore := repository.NewLedgerStore(db)
	seats := service.NewSeatLedger(cfg.Registration.OfferTTL, nil)

	courseSvc := service.NewCourseService(courseRepo, registrationRepo, ledgerStore, seats, cacheSvc, notifier, validator.New(), metricsSvc, logr)
	registrationSvc := service.NewRegistrationService(
		courseRepo,
		registrationRepo,
		ledgerStore,
		seats,
		service.NewConflictValidator(cfg.Registration.MaxCredits),
		notifier,
		signer,
		metricsSvc,
		logr,
		service.RegistrationServiceConfig{StudentLock: cfg.Registration.StudentLock},
	)
	expirySvc := service.NewExpiryService(registrationRepo, ledgerStore, seats, notifier, metricsSvc, logr, cfg.Expiry.BatchLimit)
	authSvc := service.NewAuthService(service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, redisClient) }
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		CronSecret:     cfg.Expiry.CronSecret,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Auth:           authSvc,
		Metrics:        metricsSvc,
		Logger:         logr,
		Courses:        handler.NewCourseHandler(courseSvc, service.NewRosterExporter(courseSvc)),
		Registrations:  handler.NewRegistrationHandler(registrationSvc),
		SeatStream:     handler.NewSeatStreamHandler(seatSubscriber(broadcaster, redisClient), cfg.Notifications.SeatUpdatesChannel, 0, logr),
		Expiry:         handler.NewExpiryHandler(expirySvc),
		Observability:  handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// seatSubscriber returns nil when Redis is absent so the stream endpoint answers 503.
func seatSubscriber(b *cache.Broadcaster, client *redis.Client) interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
} {
	if client == nil {
		return nil
	}
	return b
}
