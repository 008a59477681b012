package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/repository"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/signing"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type registrationReader interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)
}

type seatNotifier interface {
	SeatStateChanged(state models.SeatStateChanged)
	OfferPromoted(course models.Course, reg models.Registration)
	EnrollmentConfirmed(course models.Course, reg models.Registration)
	Released(course models.Course, result *models.ReleaseResult)
}

type offerTokenParser interface {
	Parse(token string, now time.Time) (*signing.OfferClaims, error)
}

// RegistrationServiceConfig toggles the optional per-student serialisation.
type RegistrationServiceConfig struct {
	// StudentLock takes a per-student lock inside the course transaction and
	// re-validates credits and timetable there, so concurrent admissions of
	// one student to different courses cannot jointly break the limits.
	StudentLock bool
}

// RegistrationService is the admission controller and the student-facing
// entry point for drop and confirm.
type RegistrationService struct {
	courses       courseReader
	registrations registrationReader
	ledger        ledgerStore
	seats         *SeatLedger
	validator     *ConflictValidator
	notifier      seatNotifier
	tokens        offerTokenParser
	metrics       *MetricsService
	logger        *zap.Logger
	cfg           RegistrationServiceConfig
}

// NewRegistrationService constructs the service.
func NewRegistrationService(
	courses courseReader,
	registrations registrationReader,
	ledger ledgerStore,
	seats *SeatLedger,
	validator *ConflictValidator,
	notifier seatNotifier,
	tokens offerTokenParser,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg RegistrationServiceConfig,
) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seats == nil {
		seats = NewSeatLedger(DefaultOfferTTL, nil)
	}
	if validator == nil {
		validator = NewConflictValidator(DefaultMaxCredits)
	}
	return &RegistrationService{
		courses:       courses,
		registrations: registrations,
		ledger:        ledger,
		seats:         seats,
		validator:     validator,
		notifier:      notifier,
		tokens:        tokens,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
	}
}

// Register validates the request against the student's timetable and credit
// total, then admits them to a seat or the waitlist under the course lock.
func (s *RegistrationService) Register(ctx context.Context, studentID, courseID string) (*models.AdmissionResult, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, ledgerError(err, "course")
	}
	active, err := s.registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load registrations")
	}
	if err := s.validator.Validate(*course, active); err != nil {
		s.metrics.RecordRejection(appErrors.FromError(err).Code)
		return nil, err
	}

	var result *models.AdmissionResult
	err = runLedger(ctx, s.ledger, s.metrics, "admit", courseID, func(tx repository.LedgerTx) error {
		if err := s.revalidate(ctx, tx, studentID); err != nil {
			return err
		}
		admitted, err := s.seats.Admit(ctx, tx, studentID)
		if err != nil {
			return err
		}
		result = admitted
		return nil
	})
	if err != nil {
		err = ledgerError(err, "course")
		if appErrors.HasCode(err, appErrors.ErrValidationFailed) || appErrors.HasCode(err, appErrors.ErrResourceExhausted) {
			s.metrics.RecordRejection(appErrors.FromError(err).Code)
		}
		return nil, err
	}

	s.metrics.RecordAdmission(result.Outcome)
	s.logger.Info("registration admitted",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("registration_id", result.Registration.ID),
	)
	s.notify(func(n seatNotifier) { n.SeatStateChanged(result.SeatState) })
	return result, nil
}

// revalidate repeats the pre-checks that can race with other transactions.
func (s *RegistrationService) revalidate(ctx context.Context, tx repository.LedgerTx, studentID string) error {
	if !s.cfg.StudentLock {
		_, err := tx.FindStudentRegistration(ctx, studentID)
		switch {
		case err == nil:
			return appErrors.WithDetails(appErrors.ErrValidationFailed, "registration already exists",
				models.ValidationRejection{Reason: models.RejectionDuplicate, ConflictCourseID: tx.Course().ID, ConflictCourseCode: tx.Course().CourseCode})
		case errors.Is(err, sql.ErrNoRows):
			return nil
		default:
			return err
		}
	}
	if err := tx.LockStudent(ctx, studentID); err != nil {
		return err
	}
	active, err := tx.StudentRegistrations(ctx, studentID)
	if err != nil {
		return err
	}
	return s.validator.Validate(*tx.Course(), active)
}

// Drop withdraws the student's registration from any state. Freed seats are
// offered to the next waiter in the same transaction.
func (s *RegistrationService) Drop(ctx context.Context, studentID, registrationID string) (*models.ReleaseResult, error) {
	reg, err := s.ownedRegistration(ctx, studentID, registrationID)
	if err != nil {
		return nil, err
	}

	var (
		result *models.ReleaseResult
		course models.Course
	)
	err = runLedger(ctx, s.ledger, s.metrics, "release", reg.CourseID, func(tx repository.LedgerTx) error {
		current, err := tx.FindRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if current.StudentID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
		}
		released, err := s.seats.Release(ctx, tx, current)
		if err != nil {
			return err
		}
		result = released
		course = *tx.Course()
		return nil
	})
	if err != nil {
		return nil, ledgerError(err, "registration")
	}

	cause := causeDrop
	if result.Released.Status == models.RegistrationStatusPendingConfirmation {
		cause = causeDecline
	}
	s.metrics.RecordRelease(result.Released.Status, string(cause), result.Promoted != nil)
	fields := []zap.Field{
		zap.String("student_id", studentID),
		zap.String("registration_id", registrationID),
		zap.String("course_id", course.ID),
		zap.String("status", string(result.Released.Status)),
	}
	if result.Promoted != nil {
		fields = append(fields, zap.String("promoted_registration_id", result.Promoted.ID))
	}
	s.logger.Info("registration released", fields...)
	s.notify(func(n seatNotifier) { n.Released(course, result) })
	return result, nil
}

// Confirm accepts a pending offer owned by the student. The deadline is
// checked against the wall clock, so an offer the sweep has not yet reached
// is still refused once it has lapsed.
func (s *RegistrationService) Confirm(ctx context.Context, studentID, registrationID string) (*models.Registration, error) {
	reg, err := s.ownedRegistration(ctx, studentID, registrationID)
	if err != nil {
		return nil, err
	}

	var (
		confirmed models.Registration
		course    models.Course
	)
	err = runLedger(ctx, s.ledger, s.metrics, "confirm", reg.CourseID, func(tx repository.LedgerTx) error {
		current, err := tx.FindRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if current.StudentID != studentID {
			return appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
		}
		if err := s.seats.Confirm(ctx, tx, current); err != nil {
			return err
		}
		confirmed = *current
		course = *tx.Course()
		return nil
	})
	if err != nil {
		return nil, ledgerError(err, "registration")
	}

	s.logger.Info("offer confirmed",
		zap.String("student_id", studentID),
		zap.String("registration_id", registrationID),
		zap.String("course_id", course.ID),
	)
	s.notify(func(n seatNotifier) {
		n.EnrollmentConfirmed(course, confirmed)
		n.SeatStateChanged(course.SeatState())
	})
	return &confirmed, nil
}

// ConfirmWithToken accepts an offer from a signed link.
func (s *RegistrationService) ConfirmWithToken(ctx context.Context, token string) (*models.Registration, error) {
	if s.tokens == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceOffline, "offer links are not configured")
	}
	claims, err := s.tokens.Parse(token, s.seats.now())
	if err != nil {
		if errors.Is(err, signing.ErrTokenExpired) {
			return nil, appErrors.ErrOfferExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid offer link")
	}
	return s.Confirm(ctx, claims.StudentID, claims.RegistrationID)
}

// ListMine partitions the student's registrations and totals registered credits.
func (s *RegistrationService) ListMine(ctx context.Context, studentID string) (*models.StudentRegistrations, error) {
	details, err := s.registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load registrations")
	}
	out := &models.StudentRegistrations{
		Registered: []models.RegistrationDetail{},
		Waitlisted: []models.RegistrationDetail{},
		Pending:    []models.RegistrationDetail{},
	}
	for _, d := range details {
		switch d.Status {
		case models.RegistrationStatusRegistered:
			out.Registered = append(out.Registered, d)
			out.TotalCredits += d.Course.Credits
		case models.RegistrationStatusWaitlisted:
			out.Waitlisted = append(out.Waitlisted, d)
		case models.RegistrationStatusPendingConfirmation:
			out.Pending = append(out.Pending, d)
		}
	}
	return out, nil
}

func (s *RegistrationService) ownedRegistration(ctx context.Context, studentID, registrationID string) (*models.Registration, error) {
	reg, err := s.registrations.FindByID(ctx, registrationID)
	if err != nil {
		return nil, ledgerError(err, "registration")
	}
	if reg.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registration belongs to another student")
	}
	return reg, nil
}

func (s *RegistrationService) notify(fn func(n seatNotifier)) {
	notifySafely(s.notifier, s.logger, fn)
}
