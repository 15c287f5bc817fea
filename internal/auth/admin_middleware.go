package auth

import (
	"net/http"

	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware creates a gin middleware to check for admin role.
// It must be used AFTER the standard AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUserID(c) == 0 {
			// AuthMiddleware did not run before this one.
			response.Abort(c, http.StatusUnauthorized, "User not authenticated")
			return
		}

		if c.GetString(ContextRole) != models.RoleAdmin {
			response.Abort(c, http.StatusForbidden, "Admin access required")
			return
		}

		c.Next()
	}
}
