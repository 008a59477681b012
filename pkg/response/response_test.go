package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

func serve(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestErrorUsesDomainStatus(t *testing.T) {
	w := serve(func(c *gin.Context) {
		Error(c, appErrors.WithDetails(appErrors.ErrValidationFailed, "schedule conflict", map[string]string{"reason": "SCHEDULE_CONFLICT"}))
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
	assert.Equal(t, "SCHEDULE_CONFLICT", body.Error.Details["reason"])
}

func TestErrorMasksUnexpectedFailures(t *testing.T) {
	w := serve(func(c *gin.Context) { Error(c, errors.New("pq: password authentication failed")) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestJSONWithMeta(t *testing.T) {
	w := serve(func(c *gin.Context) { JSON(c, http.StatusOK, []int{1}, map[string]interface{}{"count": 1}) })
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":[1],"meta":{"count":1}}`, w.Body.String())
}
