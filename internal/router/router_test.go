package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-seat-api/internal/dto"
	"github.com/noah-isme/elective-seat-api/internal/handler"
	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/service"
)

const testSecret = "router-secret"

type stubCourses struct{}

func (stubCourses) List(context.Context, dto.CourseListQuery) ([]models.Course, error) {
	return []models.Course{{ID: "c-1", CourseCode: "CS101"}}, nil
}
func (stubCourses) Get(_ context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id}, nil
}
func (stubCourses) Create(_ context.Context, req dto.CourseRequest) (*models.Course, error) {
	return &models.Course{ID: "c-new", CourseCode: req.CourseCode}, nil
}
func (stubCourses) Update(_ context.Context, id string, _ dto.CourseRequest) (*dto.CourseUpdateResponse, error) {
	return &dto.CourseUpdateResponse{Course: &models.Course{ID: id}}, nil
}
func (stubCourses) Delete(context.Context, string) error { return nil }

type stubRegistrations struct{}

func (stubRegistrations) Register(_ context.Context, studentID, courseID string) (*models.AdmissionResult, error) {
	return &models.AdmissionResult{Outcome: models.AdmissionAdmitted, Registration: models.Registration{StudentID: studentID, CourseID: courseID}}, nil
}
func (stubRegistrations) Drop(context.Context, string, string) (*models.ReleaseResult, error) {
	return &models.ReleaseResult{}, nil
}
func (stubRegistrations) Confirm(context.Context, string, string) (*models.Registration, error) {
	return &models.Registration{}, nil
}
func (stubRegistrations) ConfirmWithToken(context.Context, string) (*models.Registration, error) {
	return &models.Registration{}, nil
}
func (stubRegistrations) ListMine(context.Context, string) (*models.StudentRegistrations, error) {
	return &models.StudentRegistrations{}, nil
}

type stubSweeper struct{}

func (stubSweeper) Sweep(context.Context, time.Time) []models.SweepResult { return nil }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	return New(Options{
		CronSecret:    "cron",
		Auth:          service.NewAuthService(service.AuthConfig{AccessTokenSecret: testSecret}),
		Metrics:       metrics,
		Courses:       handler.NewCourseHandler(stubCourses{}, nil),
		Registrations: handler.NewRegistrationHandler(stubRegistrations{}),
		SeatStream:    handler.NewSeatStreamHandler(nil, "seat-updates", 0, nil),
		Expiry:        handler.NewExpiryHandler(stubSweeper{}),
		Observability: handler.NewMetricsHandler(metrics, nil),
	})
}

func bearer(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID:           userID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(engine *gin.Engine, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRouterPublicCatalogue(t *testing.T) {
	engine := newTestEngine(t)

	w := serve(engine, http.MethodGet, "/api/v1/courses", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(engine, http.MethodGet, "/api/v1/courses/c-9", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"c-9"`)

	w = serve(engine, http.MethodGet, "/api/v1/courses/stream", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterStudentRoutesRequireStudentToken(t *testing.T) {
	engine := newTestEngine(t)

	w := serve(engine, http.MethodPost, "/api/v1/courses/c-1/register", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodPost, "/api/v1/courses/c-1/register", bearer(t, "adm-1", models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(engine, http.MethodPost, "/api/v1/courses/c-1/register", bearer(t, "stu-1", models.RoleStudent))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"student_id":"stu-1"`)
}

func TestRouterAdminRoutesRequireAdminToken(t *testing.T) {
	engine := newTestEngine(t)

	w := serve(engine, http.MethodDelete, "/api/v1/admin/courses/c-1", bearer(t, "stu-1", models.RoleStudent))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(engine, http.MethodDelete, "/api/v1/admin/courses/c-1", bearer(t, "adm-1", models.RoleAdmin))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/admin/metrics/summary", bearer(t, "adm-1", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterExpiryRequiresCronSecret(t *testing.T) {
	engine := newTestEngine(t)

	w := serve(engine, http.MethodPost, "/internal/waitlist/expire", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodPost, "/internal/waitlist/expire", bearer(t, "adm-1", models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodPost, "/internal/waitlist/expire", "Bearer cron")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":0`)
}
