package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/repository"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

// DefaultOfferTTL is how long a promoted student has to confirm.
const DefaultOfferTTL = 24 * time.Hour

type ledgerStore interface {
	WithinCourse(ctx context.Context, courseID string, fn func(tx repository.LedgerTx) error) error
}

// releaseCause distinguishes why a registration left the ledger.
type releaseCause string

const (
	causeDrop    releaseCause = "drop"
	causeDecline releaseCause = "decline"
	causeExpire  releaseCause = "expire"
)

// SeatLedger holds the counter transitions for one locked course. Every
// method must run inside LedgerStore.WithinCourse; nothing else writes
// remaining_seats or waitlist_current.
//
// A PENDING_CONFIRMATION offer holds an earmarked seat and no waitlist slot,
// so for every committed state
// remaining_seats + count(REGISTERED, PENDING_CONFIRMATION) == total_seats.
type SeatLedger struct {
	offerTTL time.Duration
	now      func() time.Time
}

// NewSeatLedger constructs the ledger with the given offer window and clock.
func NewSeatLedger(offerTTL time.Duration, now func() time.Time) *SeatLedger {
	if offerTTL <= 0 {
		offerTTL = DefaultOfferTTL
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SeatLedger{offerTTL: offerTTL, now: now}
}

// Admit places the student in a free seat, else on the waitlist, else fails
// with RESOURCE_EXHAUSTED without touching anything.
func (l *SeatLedger) Admit(ctx context.Context, tx repository.LedgerTx, studentID string) (*models.AdmissionResult, error) {
	course := tx.Course()
	reg := &models.Registration{StudentID: studentID, CourseID: course.ID, RegisteredAt: l.now()}
	outcome := models.AdmissionAdmitted

	switch {
	case course.RemainingSeats > 0:
		course.RemainingSeats--
		reg.Status = models.RegistrationStatusRegistered
	case course.WaitlistCurrent < course.WaitlistCapacity:
		course.WaitlistCurrent++
		reg.Status = models.RegistrationStatusWaitlisted
		outcome = models.AdmissionWaitlisted
	default:
		return nil, appErrors.Clone(appErrors.ErrResourceExhausted,
			fmt.Sprintf("%s has no free seat and a full waitlist", course.CourseCode))
	}

	if err := tx.InsertRegistration(ctx, reg); err != nil {
		return nil, err
	}
	if err := tx.SaveCounters(ctx); err != nil {
		return nil, err
	}
	return &models.AdmissionResult{Outcome: outcome, Registration: *reg, SeatState: course.SeatState()}, nil
}

// Release removes reg and applies the accounting for its status. A held seat
// (REGISTERED or PENDING_CONFIRMATION) passes to the longest waiter if there
// is one and otherwise returns to the pool; a waitlist slot is simply freed.
func (l *SeatLedger) Release(ctx context.Context, tx repository.LedgerTx, reg *models.Registration) (*models.ReleaseResult, error) {
	course := tx.Course()
	if err := tx.DeleteRegistration(ctx, reg.ID); err != nil {
		return nil, err
	}
	result := &models.ReleaseResult{Released: *reg}

	switch reg.Status {
	case models.RegistrationStatusWaitlisted:
		course.WaitlistCurrent--
	case models.RegistrationStatusRegistered, models.RegistrationStatusPendingConfirmation:
		promoted, err := l.promote(ctx, tx)
		if err != nil {
			return nil, err
		}
		if promoted == nil {
			course.RemainingSeats++
			result.SeatReturned = true
		}
		result.Promoted = promoted
	default:
		return nil, fmt.Errorf("release registration %s: unknown status %q", reg.ID, reg.Status)
	}

	if err := tx.SaveCounters(ctx); err != nil {
		return nil, err
	}
	result.SeatState = course.SeatState()
	return result, nil
}

// Confirm turns a live offer into a registration. The seat was earmarked at
// promotion so no counter moves.
func (l *SeatLedger) Confirm(ctx context.Context, tx repository.LedgerTx, reg *models.Registration) error {
	if reg.Status != models.RegistrationStatusPendingConfirmation {
		return appErrors.Clone(appErrors.ErrNotPending, fmt.Sprintf("registration is %s", reg.Status))
	}
	if reg.OfferExpired(l.now()) {
		return appErrors.ErrOfferExpired
	}
	reg.Status = models.RegistrationStatusRegistered
	reg.ConfirmationExpiresAt = nil
	return tx.UpdateRegistration(ctx, reg)
}

// AdjustCapacity applies new totals. Seats cannot drop below the number held
// and the waitlist cannot shrink below its occupancy. Newly freed seats are
// offered to waiters in arrival order.
func (l *SeatLedger) AdjustCapacity(ctx context.Context, tx repository.LedgerTx, totalSeats, waitlistCapacity int) ([]models.Registration, error) {
	course := tx.Course()
	holders, err := tx.CountSeatHolders(ctx)
	if err != nil {
		return nil, err
	}
	if totalSeats < holders {
		return nil, appErrors.Clone(appErrors.ErrCapacityViolation,
			fmt.Sprintf("total_seats %d is below the %d seats currently held", totalSeats, holders))
	}
	if waitlistCapacity < course.WaitlistCurrent {
		return nil, appErrors.Clone(appErrors.ErrCapacityViolation,
			fmt.Sprintf("waitlist_capacity %d is below the %d students waiting", waitlistCapacity, course.WaitlistCurrent))
	}

	course.TotalSeats = totalSeats
	course.WaitlistCapacity = waitlistCapacity
	course.RemainingSeats = totalSeats - holders

	var promoted []models.Registration
	for course.RemainingSeats > 0 {
		next, err := l.promote(ctx, tx)
		if err != nil {
			return nil, err
		}
		if next == nil {
			break
		}
		course.RemainingSeats--
		promoted = append(promoted, *next)
	}

	if err := tx.SaveCounters(ctx); err != nil {
		return nil, err
	}
	return promoted, nil
}

// promote offers the held seat to the oldest waiter. It frees that waiter's
// slot and never touches remaining_seats; the caller decides where the seat
// came from.
func (l *SeatLedger) promote(ctx context.Context, tx repository.LedgerTx) (*models.Registration, error) {
	next, err := tx.NextWaitlisted(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find next waitlisted: %w", err)
	}
	deadline := l.now().Add(l.offerTTL)
	next.Status = models.RegistrationStatusPendingConfirmation
	next.ConfirmationExpiresAt = &deadline
	if err := tx.UpdateRegistration(ctx, next); err != nil {
		return nil, err
	}
	tx.Course().WaitlistCurrent--
	return next, nil
}

// runLedger executes fn under the course lock and records its duration.
func runLedger(ctx context.Context, store ledgerStore, metrics *MetricsService, operation, courseID string, fn func(tx repository.LedgerTx) error) error {
	start := time.Now()
	err := store.WithinCourse(ctx, courseID, fn)
	metrics.ObserveLedgerTx(operation, time.Since(start))
	return err
}

// ledgerError maps store failures onto the domain taxonomy. Typed errors pass
// through untouched; a missing row becomes NOT_FOUND; anything else is a
// retryable STORAGE_FAILURE.
func ledgerError(err error, subject string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, subject+" not found")
	}
	if repository.IsUniqueViolation(err) {
		return appErrors.WithDetails(appErrors.ErrValidationFailed, "registration already exists",
			models.ValidationRejection{Reason: models.RejectionDuplicate})
	}
	return appErrors.Storage(err, "could not commit "+subject+" change")
}
