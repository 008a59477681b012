package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/repository"
)

// memStore is an in-memory course/registration store. WithinCourse holds a
// per-course mutex and works on copies that are only published on success.
type memStore struct {
	mu            sync.Mutex
	courses       map[string]*models.Course
	registrations map[string]*models.Registration
	courseLocks   map[string]*sync.Mutex
	studentLocks  map[string]*sync.Mutex

	// failOn injects an error into the named LedgerTx method.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		courses:       map[string]*models.Course{},
		registrations: map[string]*models.Registration{},
		courseLocks:   map[string]*sync.Mutex{},
		studentLocks:  map[string]*sync.Mutex{},
		failOn:        map[string]error{},
	}
}

func copyCourse(c *models.Course) *models.Course {
	out := *c
	out.Schedules = append([]models.CourseSchedule{}, c.Schedules...)
	return &out
}

func copyRegistration(r *models.Registration) *models.Registration {
	out := *r
	if r.ConfirmationExpiresAt != nil {
		deadline := *r.ConfirmationExpiresAt
		out.ConfirmationExpiresAt = &deadline
	}
	return &out
}

func (m *memStore) addCourse(c models.Course) *models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.courses[c.ID] = copyCourse(&c)
	return copyCourse(&c)
}

func (m *memStore) addRegistration(r models.Registration) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.registrations[r.ID] = copyRegistration(&r)
	return copyRegistration(&r)
}

func (m *memStore) course(id string) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *copyCourse(m.courses[id])
}

func (m *memStore) registration(id string) (models.Registration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.registrations[id]
	if !ok {
		return models.Registration{}, false
	}
	return *copyRegistration(r), true
}

func (m *memStore) statusCount(courseID string, status models.RegistrationStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.registrations {
		if r.CourseID == courseID && r.Status == status {
			n++
		}
	}
	return n
}

func (m *memStore) lockFor(locks map[string]*sync.Mutex, key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := locks[key]
	if !ok {
		l = &sync.Mutex{}
		locks[key] = l
	}
	return l
}

// WithinCourse implements ledgerStore.
func (m *memStore) WithinCourse(ctx context.Context, courseID string, fn func(tx repository.LedgerTx) error) error {
	lock := m.lockFor(m.courseLocks, courseID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	committed, ok := m.courses[courseID]
	if !ok {
		m.mu.Unlock()
		return sql.ErrNoRows
	}
	tx := &memTx{store: m, course: copyCourse(committed), regs: map[string]*models.Registration{}}
	for id, r := range m.registrations {
		if r.CourseID == courseID {
			tx.regs[id] = copyRegistration(r)
		}
	}
	m.mu.Unlock()

	// Student locks are released after the writes are visible, as with a
	// transaction-scoped advisory lock.
	defer func() {
		for _, l := range tx.held {
			l.Unlock()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[courseID] = tx.course
	for id, r := range m.registrations {
		if r.CourseID == courseID {
			delete(m.registrations, id)
		}
	}
	for id, r := range tx.regs {
		m.registrations[id] = r
	}
	return nil
}

type memTx struct {
	store  *memStore
	course *models.Course
	regs   map[string]*models.Registration
	held   []*sync.Mutex
}

func (t *memTx) fail(op string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.failOn[op]
}

func (t *memTx) Course() *models.Course { return t.course }

func (t *memTx) Exec() sqlx.ExtContext { return nil }

func (t *memTx) SaveCounters(ctx context.Context) error {
	if err := t.fail("SaveCounters"); err != nil {
		return err
	}
	return t.course.CheckCounters()
}

func (t *memTx) FindRegistration(ctx context.Context, id string) (*models.Registration, error) {
	r, ok := t.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyRegistration(r), nil
}

func (t *memTx) FindStudentRegistration(ctx context.Context, studentID string) (*models.Registration, error) {
	for _, r := range t.regs {
		if r.StudentID == studentID {
			return copyRegistration(r), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memTx) NextWaitlisted(ctx context.Context) (*models.Registration, error) {
	var waiting []*models.Registration
	for _, r := range t.regs {
		if r.Status == models.RegistrationStatusWaitlisted {
			waiting = append(waiting, r)
		}
	}
	if len(waiting) == 0 {
		return nil, sql.ErrNoRows
	}
	sort.Slice(waiting, func(i, j int) bool {
		if !waiting[i].RegisteredAt.Equal(waiting[j].RegisteredAt) {
			return waiting[i].RegisteredAt.Before(waiting[j].RegisteredAt)
		}
		return waiting[i].ID < waiting[j].ID
	})
	return copyRegistration(waiting[0]), nil
}

func (t *memTx) CountSeatHolders(ctx context.Context) (int, error) {
	n := 0
	for _, r := range t.regs {
		if r.Status.HoldsSeat() {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	if err := t.fail("InsertRegistration"); err != nil {
		return err
	}
	for _, r := range t.regs {
		if r.StudentID == reg.StudentID {
			return fmt.Errorf("duplicate registration for %s", reg.StudentID)
		}
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	reg.CourseID = t.course.ID
	t.regs[reg.ID] = copyRegistration(reg)
	return nil
}

func (t *memTx) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	if err := t.fail("UpdateRegistration"); err != nil {
		return err
	}
	existing, ok := t.regs[reg.ID]
	if !ok {
		return errors.New("update registration: no row")
	}
	updated := copyRegistration(reg)
	updated.RegisteredAt = existing.RegisteredAt
	t.regs[reg.ID] = updated
	return nil
}

func (t *memTx) DeleteRegistration(ctx context.Context, id string) error {
	if err := t.fail("DeleteRegistration"); err != nil {
		return err
	}
	if _, ok := t.regs[id]; !ok {
		return errors.New("delete registration: no row")
	}
	delete(t.regs, id)
	return nil
}

func (t *memTx) LockStudent(ctx context.Context, studentID string) error {
	l := t.store.lockFor(t.store.studentLocks, studentID)
	l.Lock()
	t.held = append(t.held, l)
	return nil
}

func (t *memTx) StudentRegistrations(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	var out []models.RegistrationDetail
	for _, r := range t.regs {
		if r.StudentID == studentID {
			out = append(out, models.RegistrationDetail{Registration: *copyRegistration(r), Course: *copyCourse(t.course)})
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, r := range t.store.registrations {
		if r.StudentID == studentID && r.CourseID != t.course.ID {
			out = append(out, models.RegistrationDetail{Registration: *copyRegistration(r), Course: *copyCourse(t.store.courses[r.CourseID])})
		}
	}
	return out, nil
}

// Reader side used outside the lock.

func (m *memStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyRegistration(r), nil
}

func (m *memStore) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RegistrationDetail
	for _, r := range m.registrations {
		if r.StudentID == studentID {
			out = append(out, models.RegistrationDetail{Registration: *copyRegistration(r), Course: *copyCourse(m.courses[r.CourseID])})
		}
	}
	return out, nil
}

func (m *memStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.registrations {
		if r.Status == models.RegistrationStatusPendingConfirmation && r.ConfirmationExpiresAt != nil && !r.ConfirmationExpiresAt.After(now) {
			out = append(out, *copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConfirmationExpiresAt.Before(*out[j].ConfirmationExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListByCourse(ctx context.Context, courseID string) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.registrations {
		if r.CourseID == courseID {
			out = append(out, *copyRegistration(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

// memCourses adapts memStore to the course reader and course store interfaces,
// whose FindByID returns a course rather than a registration.
type memCourses struct {
	*memStore
	updateErr error
}

func (c memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyCourse(course), nil
}

func (c memCourses) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Course
	for _, course := range c.courses {
		if filter.Department != "" && course.Department != filter.Department {
			continue
		}
		out = append(out, *copyCourse(course))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseCode < out[j].CourseCode })
	return out, nil
}

func (c memCourses) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, course := range c.courses {
		if course.CourseCode == code && course.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (c memCourses) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	c.addCourse(*course)
	return nil
}

func (c memCourses) UpdateDetailsTx(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	return c.updateErr
}

func (c memCourses) CountRegistrations(ctx context.Context, courseID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.registrations {
		if r.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (c memCourses) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.registrations {
		if r.CourseID == id {
			return repository.ErrNothingDeleted
		}
	}
	delete(c.courses, id)
	return nil
}

// testClock advances by a millisecond on every read so arrival order is strict.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier captures events synchronously.
type recordingNotifier struct {
	mu        sync.Mutex
	states    []models.SeatStateChanged
	promoted  []models.Registration
	confirmed []models.Registration
	panicOn   bool
}

func (n *recordingNotifier) SeatStateChanged(state models.SeatStateChanged) {
	if n.panicOn {
		panic("sink unavailable")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *recordingNotifier) OfferPromoted(course models.Course, reg models.Registration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promoted = append(n.promoted, reg)
}

func (n *recordingNotifier) EnrollmentConfirmed(course models.Course, reg models.Registration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, reg)
}

func (n *recordingNotifier) Released(course models.Course, result *models.ReleaseResult) {
	n.SeatStateChanged(result.SeatState)
	if result.Promoted != nil {
		n.OfferPromoted(course, *result.Promoted)
	}
}
