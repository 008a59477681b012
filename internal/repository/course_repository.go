package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-seat-api/internal/models"
)

const courseColumns = `id, course_code, title, description, department, professor, credits,
	total_seats, remaining_seats, waitlist_capacity, waitlist_current, created_at, updated_at`

const scheduleColumns = `id, course_id, day_of_week, start_time, end_time`

// CourseRepository provides persistence for courses and their meeting times.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns the catalogue ordered by course code.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var conditions []string
	var args []interface{}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(course_code ILIKE $%d OR title ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY course_code ASC", courseColumns, clause)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if err := attachSchedules(ctx, r.db, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// FindByID loads a course with its schedules.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	list := []models.Course{course}
	if err := attachSchedules(ctx, r.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// ExistsByCode reports whether a course other than excludeID uses the code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT COUNT(1) FROM courses WHERE course_code = $1"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return count > 0, nil
}

// Create inserts the course and its schedules in one transaction.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) (err error) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO courses (id, course_code, title, description, department, professor, credits,
	total_seats, remaining_seats, waitlist_capacity, waitlist_current, created_at, updated_at)
	VALUES (:id, :course_code, :title, :description, :department, :professor, :credits,
	:total_seats, :remaining_seats, :waitlist_capacity, :waitlist_current, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	if err = insertSchedules(ctx, tx, course.ID, course.Schedules); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create course: %w", err)
	}
	return nil
}

// UpdateDetailsTx rewrites the descriptive columns and schedules of a course.
// Seat counters are owned by the ledger and are not touched here.
func (r *CourseRepository) UpdateDetailsTx(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET course_code = :course_code, title = :title, description = :description,
	department = :department, professor = :professor, credits = :credits, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM course_schedules WHERE course_id = $1`, course.ID); err != nil {
		return fmt.Errorf("clear course schedules: %w", err)
	}
	return insertSchedules(ctx, exec, course.ID, course.Schedules)
}

// CountRegistrations returns how many live registrations reference the course.
func (r *CourseRepository) CountRegistrations(ctx context.Context, courseID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM registrations WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count course registrations: %w", err)
	}
	return count, nil
}

// Delete removes a course with no registrations. Schedules cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM registrations WHERE course_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check course delete rows: %w", err)
	}
	if rows == 0 {
		return ErrNothingDeleted
	}
	return nil
}

func insertSchedules(ctx context.Context, exec sqlx.ExtContext, courseID string, schedules []models.CourseSchedule) error {
	for i := range schedules {
		schedules[i].CourseID = courseID
		if schedules[i].ID == "" {
			schedules[i].ID = uuid.NewString()
		}
		const query = `INSERT INTO course_schedules (id, course_id, day_of_week, start_time, end_time)
		VALUES (:id, :course_id, :day_of_week, :start_time, :end_time)`
		if _, err := sqlx.NamedExecContext(ctx, exec, query, &schedules[i]); err != nil {
			return fmt.Errorf("insert course schedule: %w", err)
		}
	}
	return nil
}

// attachSchedules loads meeting times for every course in one query.
func attachSchedules(ctx context.Context, q sqlx.QueryerContext, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM course_schedules WHERE course_id IN (?) ORDER BY day_of_week, start_time", scheduleColumns), ids)
	if err != nil {
		return fmt.Errorf("build schedule query: %w", err)
	}
	var schedules []models.CourseSchedule
	if err := sqlx.SelectContext(ctx, q, &schedules, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return fmt.Errorf("load course schedules: %w", err)
	}
	byCourse := make(map[string][]models.CourseSchedule, len(courses))
	for _, s := range schedules {
		byCourse[s.CourseID] = append(byCourse[s.CourseID], s)
	}
	for i := range courses {
		courses[i].Schedules = byCourse[courses[i].ID]
		if courses[i].Schedules == nil {
			courses[i].Schedules = []models.CourseSchedule{}
		}
	}
	return nil
}
