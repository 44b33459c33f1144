package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/response"
)

// RequireMinimumRole checks that the caller's role ranks at or above the
// required one. Roles are strictly ordered: candidate, content manager,
// org admin.
func RequireMinimumRole(required model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if !model.HasMinimumRole(claims.Role, required) {
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}

		c.Next()
	}
}
