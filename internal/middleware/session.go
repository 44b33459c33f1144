package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/response"
	"github.com/attestra/attestra-backend/internal/service"
)

// CheckSingleDeviceSession validates the JWT's JTI against the active
// login session in Redis. If the JTI doesn't match, the request is
// rejected (the session was reset or another device logged in).
func CheckSingleDeviceSession(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		// Only candidates are device-limited.
		if claims.Role != model.RoleCandidate {
			c.Next()
			return
		}

		if err := authService.ValidateLoginSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
