package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-seat-api/internal/middleware"
	"github.com/noah-isme/elective-seat-api/internal/models"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
	"github.com/noah-isme/elective-seat-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireStudent returns the caller's user ID. Admins may act for a student
// only through admin routes, so any other role is refused here.
func requireStudent(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	if claims.Role != models.RoleStudent {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only students can hold registrations"))
		return "", false
	}
	return claims.UserID, true
}
