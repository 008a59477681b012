package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

// LedgerTx is the handle for one course-scoped transaction. The course row is
// locked for the lifetime of the handle; every method runs inside the same
// transaction.
type LedgerTx interface {
	// Course returns the locked course row. Mutations are persisted by SaveCounters.
	Course() *models.Course
	SaveCounters(ctx context.Context) error

	FindRegistration(ctx context.Context, id string) (*models.Registration, error)
	FindStudentRegistration(ctx context.Context, studentID string) (*models.Registration, error)
	NextWaitlisted(ctx context.Context) (*models.Registration, error)
	CountSeatHolders(ctx context.Context) (int, error)

	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
	DeleteRegistration(ctx context.Context, id string) error

	// LockStudent serialises admissions of one student across courses.
	LockStudent(ctx context.Context, studentID string) error
	StudentRegistrations(ctx context.Context, studentID string) ([]models.RegistrationDetail, error)

	// Exec exposes the transaction for repositories that accept sqlx.ExtContext.
	Exec() sqlx.ExtContext
}

// LedgerStore opens course-scoped transactions holding a row-level lock.
type LedgerStore struct {
	db *sqlx.DB
}

// NewLedgerStore constructs the store.
func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithinCourse locks the course row and runs fn in one transaction. The
// transaction commits when fn returns nil and rolls back otherwise. When the
// course does not exist sql.ErrNoRows is returned.
func (s *LedgerStore) WithinCourse(ctx context.Context, courseID string, fn func(tx LedgerTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var course models.Course
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1 FOR UPDATE", courseColumns)
	if err = tx.GetContext(ctx, &course, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}
	list := []models.Course{course}
	if err = attachSchedules(ctx, tx, list); err != nil {
		return err
	}

	handle := &sqlLedgerTx{tx: tx, course: &list[0]}
	if err = fn(handle); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course tx: %w", err)
	}
	return nil
}

type sqlLedgerTx struct {
	tx     *sqlx.Tx
	course *models.Course
}

func (t *sqlLedgerTx) Course() *models.Course { return t.course }

func (t *sqlLedgerTx) Exec() sqlx.ExtContext { return t.tx }

func (t *sqlLedgerTx) SaveCounters(ctx context.Context) error {
	if err := t.course.CheckCounters(); err != nil {
		return err
	}
	t.course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET total_seats = $2, remaining_seats = $3, waitlist_capacity = $4,
	waitlist_current = $5, updated_at = $6 WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, t.course.ID, t.course.TotalSeats, t.course.RemainingSeats,
		t.course.WaitlistCapacity, t.course.WaitlistCurrent, t.course.UpdatedAt); err != nil {
		return fmt.Errorf("save course counters: %w", err)
	}
	return nil
}

func (t *sqlLedgerTx) FindRegistration(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE id = $1 AND course_id = $2", registrationColumns)
	var reg models.Registration
	if err := t.tx.GetContext(ctx, &reg, query, id, t.course.ID); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (t *sqlLedgerTx) FindStudentRegistration(ctx context.Context, studentID string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE student_id = $1 AND course_id = $2", registrationColumns)
	var reg models.Registration
	if err := t.tx.GetContext(ctx, &reg, query, studentID, t.course.ID); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (t *sqlLedgerTx) NextWaitlisted(ctx context.Context) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE course_id = $1 AND status = $2
	ORDER BY registered_at ASC, id ASC LIMIT 1`, registrationColumns)
	var reg models.Registration
	if err := t.tx.GetContext(ctx, &reg, query, t.course.ID, models.RegistrationStatusWaitlisted); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (t *sqlLedgerTx) CountSeatHolders(ctx context.Context) (int, error) {
	var count int
	const query = `SELECT COUNT(1) FROM registrations WHERE course_id = $1 AND status IN ($2, $3)`
	if err := t.tx.GetContext(ctx, &count, query, t.course.ID,
		models.RegistrationStatusRegistered, models.RegistrationStatusPendingConfirmation); err != nil {
		return 0, fmt.Errorf("count seat holders: %w", err)
	}
	return count, nil
}

func (t *sqlLedgerTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}
	reg.CourseID = t.course.ID
	const query = `INSERT INTO registrations (id, student_id, course_id, status, registered_at, confirmation_expires_at)
	VALUES (:id, :student_id, :course_id, :status, :registered_at, :confirmation_expires_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.tx, query, reg); err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// UpdateRegistration persists status and deadline. registered_at is never rewritten.
func (t *sqlLedgerTx) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	const query = `UPDATE registrations SET status = $3, confirmation_expires_at = $4 WHERE id = $1 AND course_id = $2`
	result, err := t.tx.ExecContext(ctx, query, reg.ID, t.course.ID, reg.Status, reg.ConfirmationExpiresAt)
	if err != nil {
		return fmt.Errorf("update registration: %w", err)
	}
	return expectOneRow(result, "update registration")
}

func (t *sqlLedgerTx) DeleteRegistration(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1 AND course_id = $2`, id, t.course.ID)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return expectOneRow(result, "delete registration")
}

func (t *sqlLedgerTx) LockStudent(ctx context.Context, studentID string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, studentID); err != nil {
		return fmt.Errorf("lock student: %w", err)
	}
	return nil
}

func (t *sqlLedgerTx) StudentRegistrations(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return selectStudentRegistrations(ctx, t.tx, studentID)
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows != 1 {
		return fmt.Errorf("%s: expected 1 row, got %d", op, rows)
	}
	return nil
}
