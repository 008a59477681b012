package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

func expectCourseLock(mock sqlmock.Sqlmock, courseID string, remaining, waitCurrent int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs(courseID).
		WillReturnRows(courseRow(courseID, "CS101", remaining, waitCurrent))
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_schedules WHERE course_id IN ($1)")).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns))
}

func TestLedgerStoreWithinCourseCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	expectCourseLock(mock, "c-1", 4, 0)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET total_seats = $2, remaining_seats = $3")).
		WithArgs("c-1", 10, 3, 5, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinCourse(context.Background(), "c-1", func(tx LedgerTx) error {
		reg := &models.Registration{StudentID: "stu-1", Status: models.RegistrationStatusRegistered}
		if err := tx.InsertRegistration(context.Background(), reg); err != nil {
			return err
		}
		assert.Equal(t, "c-1", reg.CourseID)
		assert.NotEmpty(t, reg.ID)
		tx.Course().RemainingSeats--
		return tx.SaveCounters(context.Background())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStoreWithinCourseRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	expectCourseLock(mock, "c-1", 0, 5)
	mock.ExpectRollback()

	sentinel := errors.New("full")
	err := store.WithinCourse(context.Background(), "c-1", func(tx LedgerTx) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerStoreWithinCourseMissingCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := store.WithinCourse(context.Background(), "missing", func(tx LedgerTx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTxSaveCountersRejectsOutOfBounds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	expectCourseLock(mock, "c-1", 0, 0)
	mock.ExpectRollback()

	err := store.WithinCourse(context.Background(), "c-1", func(tx LedgerTx) error {
		tx.Course().RemainingSeats = -1
		return tx.SaveCounters(context.Background())
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTxNextWaitlistedOrdersByArrival(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	expectCourseLock(mock, "c-1", 0, 2)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY registered_at ASC, id ASC LIMIT 1")).
		WithArgs("c-1", models.RegistrationStatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status", "registered_at", "confirmation_expires_at"}).
			AddRow("r-1", "stu-1", "c-1", models.RegistrationStatusWaitlisted, time.Now().Add(-time.Hour), nil))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("stu-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.WithinCourse(context.Background(), "c-1", func(tx LedgerTx) error {
		next, err := tx.NextWaitlisted(context.Background())
		if err != nil {
			return err
		}
		assert.Equal(t, "r-1", next.ID)
		return tx.LockStudent(context.Background(), next.StudentID)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTxDeleteRequiresRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	store := NewLedgerStore(db)

	expectCourseLock(mock, "c-1", 0, 0)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registrations WHERE id = $1 AND course_id = $2")).
		WithArgs("r-9", "c-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithinCourse(context.Background(), "c-1", func(tx LedgerTx) error {
		return tx.DeleteRegistration(context.Background(), "r-9")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
