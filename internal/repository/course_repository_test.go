package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

var courseRowColumns = []string{"id", "course_code", "title", "description", "department", "professor", "credits",
	"total_seats", "remaining_seats", "waitlist_capacity", "waitlist_current", "created_at", "updated_at"}

var scheduleRowColumns = []string{"id", "course_id", "day_of_week", "start_time", "end_time"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func courseRow(id, code string, remaining, waitCurrent int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(courseRowColumns).
		AddRow(id, code, "Intro", "", "CS", "Dr. Ada", 3, 10, remaining, 5, waitCurrent, now, now)
}

func TestCourseRepositoryListAttachesSchedules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseRowColumns).
		AddRow("c-1", "CS101", "Intro", "", "CS", "Dr. Ada", 3, 10, 4, 5, 0, now, now).
		AddRow("c-2", "CS102", "Data", "", "CS", "Dr. Bob", 4, 20, 20, 5, 0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE department = $1 ORDER BY course_code ASC")).
		WithArgs("CS").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_schedules WHERE course_id IN ($1, $2)")).
		WithArgs("c-1", "c-2").
		WillReturnRows(sqlmock.NewRows(scheduleRowColumns).
			AddRow("s-1", "c-1", "MONDAY", "09:00", "10:30"))

	courses, err := repo.List(context.Background(), models.CourseFilter{Department: "CS"})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Len(t, courses[0].Schedules, 1)
	assert.NotNil(t, courses[1].Schedules)
	assert.Empty(t, courses[1].Schedules)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateInsertsSchedules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_schedules")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	course := &models.Course{
		CourseCode: "CS101", Title: "Intro", Credits: 3, TotalSeats: 10, RemainingSeats: 10, WaitlistCapacity: 5,
		Schedules: []models.CourseSchedule{{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:30"}},
	}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.NotEmpty(t, course.ID)
	assert.Equal(t, course.ID, course.Schedules[0].CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateRollsBackOnScheduleFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_schedules")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	course := &models.Course{
		CourseCode: "CS101",
		Schedules:  []models.CourseSchedule{{DayOfWeek: models.Monday, StartTime: "09:00", EndTime: "10:30"}},
	}
	require.Error(t, repo.Create(context.Background(), course))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteGuardedByRegistrations(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1 AND NOT EXISTS")).
		WithArgs("c-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "c-1")
	require.ErrorIs(t, err, ErrNothingDeleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryExistsByCodeExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM courses WHERE course_code = $1 AND id <> $2")).
		WithArgs("CS101", "c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err := repo.ExistsByCode(context.Background(), "CS101", "c-1")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
