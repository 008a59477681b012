package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/response"
)

// CronSecret guards scheduler-only endpoints with a shared bearer secret. An
// empty secret closes the endpoint entirely.
func CronSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrServiceOffline, "scheduler endpoint is not configured"))
			return
		}
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		c.Next()
	}
}
