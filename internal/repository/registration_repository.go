package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

const registrationColumns = `id, student_id, course_id, status, registered_at, confirmation_expires_at`

const registrationDetailSelect = `SELECT r.id, r.student_id, r.course_id, r.status, r.registered_at, r.confirmation_expires_at,
	c.id AS "course.id", c.course_code AS "course.course_code", c.title AS "course.title",
	c.description AS "course.description", c.department AS "course.department", c.professor AS "course.professor",
	c.credits AS "course.credits", c.total_seats AS "course.total_seats", c.remaining_seats AS "course.remaining_seats",
	c.waitlist_capacity AS "course.waitlist_capacity", c.waitlist_current AS "course.waitlist_current",
	c.created_at AS "course.created_at", c.updated_at AS "course.updated_at"
	FROM registrations r
	JOIN courses c ON c.id = r.course_id`

// RegistrationRepository handles read access to registrations outside the
// course lock. Writes go through LedgerStore.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE id = $1", registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// ListByStudent returns every live registration of a student with course and schedules.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	return selectStudentRegistrations(ctx, r.db, studentID)
}

// ListExpiredPending returns offers whose confirmation deadline is at or before now, oldest first.
func (r *RegistrationRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Registration, error) {
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE status = $1 AND confirmation_expires_at <= $2
	ORDER BY confirmation_expires_at ASC, id ASC LIMIT %d`, registrationColumns, limit)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, models.RegistrationStatusPendingConfirmation, now); err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	return regs, nil
}

// ListByCourse returns the roster of a course ordered by arrival.
func (r *RegistrationRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations WHERE course_id = $1 ORDER BY registered_at ASC, id ASC", registrationColumns)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, courseID); err != nil {
		return nil, fmt.Errorf("list course registrations: %w", err)
	}
	return regs, nil
}

func selectStudentRegistrations(ctx context.Context, q sqlx.QueryerContext, studentID string) ([]models.RegistrationDetail, error) {
	query := registrationDetailSelect + ` WHERE r.student_id = $1 ORDER BY r.registered_at DESC`
	var details []models.RegistrationDetail
	if err := sqlx.SelectContext(ctx, q, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	if len(details) == 0 {
		return details, nil
	}
	courses := make([]models.Course, len(details))
	for i := range details {
		courses[i] = details[i].Course
	}
	if err := attachSchedules(ctx, q, courses); err != nil {
		return nil, err
	}
	for i := range details {
		details[i].Course = courses[i]
	}
	return details, nil
}
