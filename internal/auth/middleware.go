package auth

import (
	"errors"
	"net/http"
	"strings"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"
	"readinghub/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// TokenFromRequest extracts the bearer token from the Authorization header.
// Websocket upgrades may pass it as ?token= because browsers cannot set headers there.
func TokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	if c.IsWebsocket() {
		return c.Query("token")
	}
	return ""
}

// AuthMiddleware requires a valid token for an existing user and stores the
// user's id and role in the context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			response.Abort(c, http.StatusUnauthorized, "Authorization token required")
			return
		}

		claims, err := jwt.ParseToken(tokenString)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, gojwt.ErrTokenExpired) {
				message = "Token expired"
			}
			response.Abort(c, http.StatusUnauthorized, message)
			return
		}

		// Roles may change after the token was issued, so the stored one wins.
		var user models.User
		if err := database.DB.Select("id", "role").First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Abort(c, http.StatusUnauthorized, "User no longer exists")
				return
			}
			response.Abort(c, http.StatusInternalServerError, "Failed to load user")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id, or 0.
func CurrentUserID(c *gin.Context) uint {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
