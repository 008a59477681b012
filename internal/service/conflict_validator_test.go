package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

func schedule(day models.DayOfWeek, start, end string) models.CourseSchedule {
	return models.CourseSchedule{DayOfWeek: day, StartTime: start, EndTime: end}
}

func registered(course models.Course) models.RegistrationDetail {
	return models.RegistrationDetail{
		Registration: models.Registration{ID: "reg-" + course.ID, CourseID: course.ID, Status: models.RegistrationStatusRegistered},
		Course:       course,
	}
}

func rejection(t *testing.T, err error) models.ValidationRejection {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidationFailed.Code, appErr.Code)
	detail, ok := appErr.Details.(models.ValidationRejection)
	require.True(t, ok)
	return detail
}

func TestConflictValidatorCreditOverflow(t *testing.T) {
	v := NewConflictValidator(20)
	active := []models.RegistrationDetail{
		registered(models.Course{ID: "a", CourseCode: "A", Credits: 10}),
		registered(models.Course{ID: "b", CourseCode: "B", Credits: 9}),
	}

	detail := rejection(t, v.Validate(models.Course{ID: "c", CourseCode: "C", Credits: 3}, active))
	assert.Equal(t, models.RejectionCreditLimit, detail.Reason)
	assert.Equal(t, 19, detail.CurrentCredits)

	require.NoError(t, v.Validate(models.Course{ID: "d", CourseCode: "D", Credits: 1}, active))
}

func TestConflictValidatorIgnoresNonRegisteredCredits(t *testing.T) {
	v := NewConflictValidator(20)
	waiting := registered(models.Course{ID: "a", Credits: 18})
	waiting.Status = models.RegistrationStatusWaitlisted

	require.NoError(t, v.Validate(models.Course{ID: "b", Credits: 3}, []models.RegistrationDetail{waiting}))
}

func TestConflictValidatorScheduleBoundaries(t *testing.T) {
	v := NewConflictValidator(20)
	active := []models.RegistrationDetail{registered(models.Course{
		ID: "a", CourseCode: "MATH1", Credits: 3,
		Schedules: []models.CourseSchedule{schedule(models.Monday, "09:00", "10:30")},
	})}

	overlapping := models.Course{ID: "b", Credits: 3, Schedules: []models.CourseSchedule{schedule(models.Monday, "10:00", "11:00")}}
	detail := rejection(t, v.Validate(overlapping, active))
	assert.Equal(t, models.RejectionScheduleConflict, detail.Reason)
	assert.Equal(t, "MATH1", detail.ConflictCourseCode)
	assert.Equal(t, models.Monday, detail.ConflictDay)

	touching := models.Course{ID: "c", Credits: 3, Schedules: []models.CourseSchedule{schedule(models.Monday, "10:30", "11:30")}}
	require.NoError(t, v.Validate(touching, active))

	otherDay := models.Course{ID: "d", Credits: 3, Schedules: []models.CourseSchedule{schedule(models.Tuesday, "09:00", "10:30")}}
	require.NoError(t, v.Validate(otherDay, active))
}

func TestConflictValidatorPendingDoesNotBlockTimetable(t *testing.T) {
	v := NewConflictValidator(20)
	pending := registered(models.Course{ID: "a", Credits: 3, Schedules: []models.CourseSchedule{schedule(models.Monday, "09:00", "10:30")}})
	pending.Status = models.RegistrationStatusPendingConfirmation

	candidate := models.Course{ID: "b", Credits: 3, Schedules: []models.CourseSchedule{schedule(models.Monday, "09:00", "10:30")}}
	require.NoError(t, v.Validate(candidate, []models.RegistrationDetail{pending}))
}

func TestConflictValidatorDuplicate(t *testing.T) {
	v := NewConflictValidator(0)
	assert.Equal(t, DefaultMaxCredits, v.MaxCredits())
	existing := registered(models.Course{ID: "a", CourseCode: "A", Credits: 3})
	existing.Status = models.RegistrationStatusWaitlisted

	detail := rejection(t, v.Validate(models.Course{ID: "a", CourseCode: "A", Credits: 3}, []models.RegistrationDetail{existing}))
	assert.Equal(t, models.RejectionDuplicate, detail.Reason)
}
