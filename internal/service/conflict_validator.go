package service

import (
	"fmt"

	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

// DefaultMaxCredits caps the credits a student may hold as REGISTERED.
const DefaultMaxCredits = 20

// ConflictValidator decides whether a student may request a course before any
// ledger mutation. It performs no I/O.
type ConflictValidator struct {
	maxCredits int
}

// NewConflictValidator constructs a validator; non-positive limits fall back to DefaultMaxCredits.
func NewConflictValidator(maxCredits int) *ConflictValidator {
	if maxCredits <= 0 {
		maxCredits = DefaultMaxCredits
	}
	return &ConflictValidator{maxCredits: maxCredits}
}

// MaxCredits reports the configured credit ceiling.
func (v *ConflictValidator) MaxCredits() int {
	return v.maxCredits
}

// Validate checks candidate against the student's live registrations. Only
// REGISTERED rows count towards credits and the timetable; any live row for
// the same course is a duplicate.
func (v *ConflictValidator) Validate(candidate models.Course, active []models.RegistrationDetail) error {
	credits := 0
	for _, reg := range active {
		if reg.CourseID == candidate.ID {
			return reject(models.ValidationRejection{
				Reason:             models.RejectionDuplicate,
				ConflictCourseID:   reg.CourseID,
				ConflictCourseCode: reg.Course.CourseCode,
			}, fmt.Sprintf("already %s for %s", reg.Status, candidate.CourseCode))
		}
		if reg.Status == models.RegistrationStatusRegistered {
			credits += reg.Course.Credits
		}
	}

	if credits+candidate.Credits > v.maxCredits {
		return reject(models.ValidationRejection{
			Reason:         models.RejectionCreditLimit,
			CurrentCredits: credits,
			MaxCredits:     v.maxCredits,
		}, fmt.Sprintf("credit limit exceeded: %d registered + %d requested > %d", credits, candidate.Credits, v.maxCredits))
	}

	for _, reg := range active {
		if reg.Status != models.RegistrationStatusRegistered {
			continue
		}
		for _, existing := range reg.Course.Schedules {
			for _, wanted := range candidate.Schedules {
				if !wanted.Overlaps(existing) {
					continue
				}
				return reject(models.ValidationRejection{
					Reason:             models.RejectionScheduleConflict,
					ConflictCourseID:   reg.Course.ID,
					ConflictCourseCode: reg.Course.CourseCode,
					ConflictDay:        existing.DayOfWeek,
				}, fmt.Sprintf("schedule conflict with %s on %s", reg.Course.CourseCode, existing.DayOfWeek))
			}
		}
	}
	return nil
}

func reject(detail models.ValidationRejection, message string) error {
	return appErrors.WithDetails(appErrors.ErrValidationFailed, message, detail)
}
