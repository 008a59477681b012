// Command expiry-sweep runs one pass of the pending-offer expiry sweep and
// exits. It is meant for schedulers that prefer a process over the
// /internal/waitlist/expire endpoint.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/dto"
	"github.com/noah-isme/elective-seat-api/internal/repository"
	"github.com/noah-isme/elective-seat-api/internal/service"
	"github.com/noah-isme/elective-seat-api/pkg/broker"
	"github.com/noah-isme/elective-seat-api/pkg/cache"
	"github.com/noah-isme/elective-seat-api/pkg/config"
	"github.com/noah-isme/elective-seat-api/pkg/database"
	"github.com/noah-isme/elective-seat-api/pkg/jobs"
	"github.com/noah-isme/elective-seat-api/pkg/logger"
	"github.com/noah-isme/elective-seat-api/pkg/signing"
)

// inlineDispatcher delivers each event before returning, since the process
// exits as soon as the sweep finishes.
type inlineDispatcher struct {
	worker *service.NotificationWorker
}

func (d inlineDispatcher) Enqueue(job jobs.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.worker.Handle(ctx, job); err != nil {
		d.worker.Dropped(job, err)
	}
	return nil
}

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, seat updates will not be broadcast", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metricsSvc, cfg.Cache.CourseTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	var messages interface {
		Publish(ctx context.Context, queue string, payload interface{}) error
	}
	if cfg.RabbitMQ.URL != "" {
		publisher := broker.NewPublisher(cfg.RabbitMQ.URL, logr)
		defer publisher.Close() //nolint:errcheck
		messages = publisher
	}

	worker := service.NewNotificationWorker(cache.NewBroadcaster(redisClient), messages, cacheSvc, service.NotificationRoutes{
		SeatUpdatesChannel: cfg.Notifications.SeatUpdatesChannel,
		PromotedQueue:      cfg.Notifications.PromotedQueue,
		ConfirmedQueue:     cfg.Notifications.ConfirmedQueue,
	}, metricsSvc, logr)
	notifier := service.NewNotificationService(inlineDispatcher{worker: worker}, signing.NewOfferSigner(cfg.Offers.SigningSecret), cfg.Offers.AcceptBaseURL, metricsSvc, logr)

	sweeper := service.NewExpiryService(
		repository.NewRegistrationRepository(db),
		repository.NewLedgerStore(db),
		service.NewSeatLedger(cfg.Registration.OfferTTL, nil),
		notifier,
		metricsSvc,
		logr,
		cfg.Expiry.BatchLimit,
	)

	ranAt := time.Now().UTC()
	summary := dto.NewSweepResponse(ranAt, sweeper.Sweep(context.Background(), ranAt))
	logr.Info("expiry sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("promoted", summary.Promoted),
		zap.Int("seats_returned", summary.SeatsReturned),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
	)
	if summary.Errors > 0 {
		logr.Sync() //nolint:errcheck
		os.Exit(1)
	}
}
