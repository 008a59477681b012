package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/pkg/jobs"
	"github.com/noah-isme/elective-seat-api/pkg/signing"
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type offerTokenSigner interface {
	Generate(claims signing.OfferClaims) (string, error)
}

// NotificationService turns committed ledger changes into events and hands
// them to the dispatch queue. It never returns an error: delivery problems are
// logged and counted.
type NotificationService struct {
	queue         jobDispatcher
	signer        offerTokenSigner
	acceptBaseURL string
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewNotificationService constructs the producer. A nil queue disables dispatch.
func NewNotificationService(queue jobDispatcher, signer offerTokenSigner, acceptBaseURL string, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		queue:         queue,
		signer:        signer,
		acceptBaseURL: acceptBaseURL,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SeatStateChanged announces the live counters of a course.
func (s *NotificationService) SeatStateChanged(state models.SeatStateChanged) {
	s.dispatch(models.EventSeatStateChanged, state)
}

// OfferPromoted tells a student a seat is held for them.
func (s *NotificationService) OfferPromoted(course models.Course, reg models.Registration) {
	if reg.ConfirmationExpiresAt == nil {
		s.logger.Warn("promoted registration without deadline", zap.String("registration_id", reg.ID))
		return
	}
	payload := models.OfferPromoted{
		RegistrationID: reg.ID,
		StudentID:      reg.StudentID,
		CourseID:       course.ID,
		CourseCode:     course.CourseCode,
		CourseTitle:    course.Title,
		ExpiresAt:      *reg.ConfirmationExpiresAt,
	}
	if s.signer != nil {
		token, err := s.signer.Generate(signing.OfferClaims{
			RegistrationID: reg.ID,
			StudentID:      reg.StudentID,
			ExpiresAt:      *reg.ConfirmationExpiresAt,
		})
		if err != nil {
			s.logger.Warn("failed to sign offer link", zap.String("registration_id", reg.ID), zap.Error(err))
		} else {
			payload.AcceptURL = signing.AcceptURL(s.acceptBaseURL, token)
		}
	}
	s.dispatch(models.EventOfferPromoted, payload)
}

// EnrollmentConfirmed records that an offer was accepted.
func (s *NotificationService) EnrollmentConfirmed(course models.Course, reg models.Registration) {
	s.dispatch(models.EventEnrollmentConfirmed, models.EnrollmentConfirmed{
		RegistrationID: reg.ID,
		StudentID:      reg.StudentID,
		CourseID:       course.ID,
		CourseCode:     course.CourseCode,
		CourseTitle:    course.Title,
		ConfirmedAt:    s.now(),
	})
}

// Released emits the events for a committed release.
func (s *NotificationService) Released(course models.Course, result *models.ReleaseResult) {
	if result == nil {
		return
	}
	s.SeatStateChanged(result.SeatState)
	if result.Promoted != nil {
		s.OfferPromoted(course, *result.Promoted)
	}
}

func (s *NotificationService) dispatch(eventType models.EventType, payload interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	event := models.Event{Type: eventType, OccurredAt: s.now(), Payload: payload}
	job := jobs.Job{ID: uuid.NewString(), Type: string(eventType), Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.metrics.RecordNotificationFailure(eventType)
		s.logger.Warn("notification dropped", zap.String("event", string(eventType)), zap.Error(err))
	}
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

type queuePublisher interface {
	Publish(ctx context.Context, queue string, payload interface{}) error
}

type courseCacheInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string) error
}

// NotificationRoutes names the destinations for each event type.
type NotificationRoutes struct {
	SeatUpdatesChannel string
	PromotedQueue      string
	ConfirmedQueue     string
}

// NotificationWorker delivers queued events. Seat updates go to Redis pub/sub
// and invalidate the course cache; offers and confirmations go to RabbitMQ.
type NotificationWorker struct {
	seats    channelPublisher
	messages queuePublisher
	cache    courseCacheInvalidator
	routes   NotificationRoutes
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationWorker constructs a worker.
func NewNotificationWorker(seats channelPublisher, messages queuePublisher, cache courseCacheInvalidator, routes NotificationRoutes, metrics *MetricsService, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if routes.SeatUpdatesChannel == "" {
		routes.SeatUpdatesChannel = "seat-updates"
	}
	if routes.PromotedQueue == "" {
		routes.PromotedQueue = "waitlist.promoted"
	}
	if routes.ConfirmedQueue == "" {
		routes.ConfirmedQueue = "enrollment.confirmed"
	}
	return &NotificationWorker{seats: seats, messages: messages, cache: cache, routes: routes, metrics: metrics, logger: logger}
}

// Handle delivers one event. A returned error makes the queue retry.
func (w *NotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.Event)
	if !ok {
		w.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}

	switch event.Type {
	case models.EventSeatStateChanged:
		state, _ := event.Payload.(models.SeatStateChanged)
		if w.cache != nil {
			if err := w.cache.InvalidateCourse(ctx, state.CourseID); err != nil {
				w.logger.Warn("course cache invalidation failed", zap.String("course_id", state.CourseID), zap.Error(err))
			}
		}
		if w.seats == nil {
			return nil
		}
		return w.seats.Publish(ctx, w.routes.SeatUpdatesChannel, event)
	case models.EventOfferPromoted:
		return w.publishMessage(ctx, w.routes.PromotedQueue, event)
	case models.EventEnrollmentConfirmed:
		return w.publishMessage(ctx, w.routes.ConfirmedQueue, event)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

// Dropped is the queue's give-up hook.
func (w *NotificationWorker) Dropped(job jobs.Job, err error) {
	w.metrics.RecordNotificationFailure(models.EventType(job.Type))
	w.logger.Error("notification abandoned", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
}

func (w *NotificationWorker) publishMessage(ctx context.Context, queue string, event models.Event) error {
	if w.messages == nil {
		return nil
	}
	return w.messages.Publish(ctx, queue, event)
}

// notifySafely hands committed changes to notifier. The ledger change is
// already durable, so a panicking sink is logged and never reaches the caller.
func notifySafely(notifier seatNotifier, logger *zap.Logger, fn func(n seatNotifier)) {
	if notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification panicked", zap.Any("panic", r))
		}
	}()
	fn(notifier)
}
