package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/repository"
)

type expiredOfferFinder interface {
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Registration, error)
}

// ExpiryService reclaims offers whose confirmation window has passed. It is
// driven by an external trigger and keeps no timer of its own.
type ExpiryService struct {
	registrations expiredOfferFinder
	ledger        ledgerStore
	seats         *SeatLedger
	notifier      seatNotifier
	metrics       *MetricsService
	logger        *zap.Logger
	batchLimit    int
}

// NewExpiryService constructs the sweeper.
func NewExpiryService(registrations expiredOfferFinder, ledger ledgerStore, seats *SeatLedger, notifier seatNotifier, metrics *MetricsService, logger *zap.Logger, batchLimit int) *ExpiryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seats == nil {
		seats = NewSeatLedger(DefaultOfferTTL, nil)
	}
	if batchLimit <= 0 {
		batchLimit = 500
	}
	return &ExpiryService{
		registrations: registrations,
		ledger:        ledger,
		seats:         seats,
		notifier:      notifier,
		metrics:       metrics,
		logger:        logger,
		batchLimit:    batchLimit,
	}
}

// Sweep expires every pending offer with a deadline at or before now. Offers
// are listed in pages of batchLimit and each runs in its own course
// transaction; a failure is recorded in the result and the sweep continues.
// The method never fails as a whole. If ctx ends mid-sweep the offers of the
// current page that were not reached are reported as ERROR.
func (s *ExpiryService) Sweep(ctx context.Context, now time.Time) []models.SweepResult {
	results := make([]models.SweepResult, 0)
	seen := make(map[string]struct{})

	for {
		offers, err := s.registrations.ListExpiredPending(ctx, now, s.batchLimit)
		if err != nil {
			s.logger.Error("failed to list expired offers", zap.Error(err))
			s.metrics.RecordSweepOutcome(models.SweepError)
			return append(results, models.SweepResult{Outcome: models.SweepError, Error: err.Error()})
		}

		fresh := 0
		for _, offer := range offers {
			if _, done := seen[offer.ID]; done {
				continue
			}
			seen[offer.ID] = struct{}{}
			fresh++

			var result models.SweepResult
			if ctxErr := ctx.Err(); ctxErr != nil {
				result = models.SweepResult{
					RegistrationID: offer.ID,
					CourseID:       offer.CourseID,
					StudentID:      offer.StudentID,
					Outcome:        models.SweepError,
					Error:          ctxErr.Error(),
				}
			} else {
				result = s.expireOne(ctx, offer, now)
			}
			s.metrics.RecordSweepOutcome(result.Outcome)
			results = append(results, result)
		}

		// A short page is the last one. Offers that failed stay pending and
		// are listed again, so a page with nothing new also ends the sweep.
		if len(offers) < s.batchLimit || fresh == 0 || ctx.Err() != nil {
			break
		}
	}

	if len(results) > 0 {
		s.logger.Info("offer sweep finished", zap.Int("processed", len(results)), zap.Time("now", now))
	}
	return results
}

func (s *ExpiryService) expireOne(ctx context.Context, offer models.Registration, now time.Time) models.SweepResult {
	result := models.SweepResult{RegistrationID: offer.ID, CourseID: offer.CourseID, StudentID: offer.StudentID}

	var (
		released *models.ReleaseResult
		course   models.Course
		skipped  bool
	)
	err := runLedger(ctx, s.ledger, s.metrics, "expire", offer.CourseID, func(tx repository.LedgerTx) error {
		current, err := tx.FindRegistration(ctx, offer.ID)
		if errors.Is(err, sql.ErrNoRows) {
			skipped = true
			return nil
		}
		if err != nil {
			return err
		}
		// Confirmed or re-promoted with a fresh deadline since the listing.
		if current.Status != models.RegistrationStatusPendingConfirmation ||
			current.ConfirmationExpiresAt == nil || current.ConfirmationExpiresAt.After(now) {
			skipped = true
			return nil
		}
		released, err = s.seats.Release(ctx, tx, current)
		if err != nil {
			return err
		}
		course = *tx.Course()
		return nil
	})

	switch {
	case err != nil:
		result.Outcome = models.SweepError
		result.Error = err.Error()
		s.logger.Warn("failed to expire offer", zap.String("registration_id", offer.ID), zap.Error(err))
		return result
	case skipped:
		result.Outcome = models.SweepSkipped
		return result
	}

	s.metrics.RecordRelease(models.RegistrationStatusPendingConfirmation, string(causeExpire), released.Promoted != nil)
	if released.Promoted != nil {
		result.Outcome = models.SweepExpiredPromoted
		result.PromotedRegistrationID = released.Promoted.ID
	} else {
		result.Outcome = models.SweepExpiredSeatReturned
	}
	s.logger.Info("offer expired",
		zap.String("registration_id", offer.ID),
		zap.String("course_id", offer.CourseID),
		zap.String("outcome", string(result.Outcome)),
	)
	notifySafely(s.notifier, s.logger, func(n seatNotifier) { n.Released(course, released) })
	return result
}
