package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"
	"readinghub/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// region --- DTOs ---

// RegisterInput defines the structure for user registration.
type RegisterInput struct {
	Username    string `json:"username" binding:"required,min=3,max=30,alphanum" example:"bookworm"`
	Email       string `json:"email" binding:"required,email" example:"reader@example.com"`
	Password    string `json:"password" binding:"required,min=8,max=72" example:"password123"`
	DisplayName string `json:"displayName" binding:"omitempty,max=100" example:"Book Worm"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Login    string `json:"login" binding:"required" example:"bookworm"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// ChangePasswordInput defines the structure for a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required" example:"password123"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72" example:"correct-horse-battery"`
}

// endregion

// RegisterUser godoc
// @Summary      Register a new user
// @Description  Creates a new user and returns an authentication token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  response.Envelope{data=AuthResponse}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      409  {object}  response.ErrorResponse
// @Failure      500  {object}  response.ErrorResponse
// @Router       /auth/register [post]
func RegisterUser(c *gin.Context) {
	var input RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var count int64
	if err := database.DB.Model(&models.User{}).
		Where("LOWER(username) = ? OR email = ?", strings.ToLower(input.Username), email).
		Count(&count).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if count > 0 {
		respondError(c, http.StatusConflict, "Username or email already exists")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	now := time.Now()
	user := models.User{
		Username:     input.Username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUser,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		LastSeenAt:   &now,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		_ = c.Error(err)
		return
	}

	token, err := jwt.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	events.Emit(c.Request.Context(), events.UserRegistered, gin.H{"userId": user.ID, "username": user.Username})
	response.JSONWithMessage(c, http.StatusCreated, AuthResponse{Token: token, User: newPrivateUserResponse(user)}, "Registration successful")
}

// LoginUser godoc
// @Summary      Log in a user
// @Description  Authenticates a user with username/email and password, and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  response.Envelope{data=AuthResponse}
// @Failure      400  {object}  response.ErrorResponse "Invalid input"
// @Failure      401  {object}  response.ErrorResponse "Invalid credentials"
// @Failure      500  {object}  response.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func LoginUser(c *gin.Context) {
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}
	login := strings.TrimSpace(input.Login)

	var user models.User
	err := database.DB.Where("LOWER(username) = ? OR email = ?", strings.ToLower(login), strings.ToLower(login)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Same answer as a wrong password so logins cannot be probed.
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	user.LastSeenAt = &now
	if err := database.DB.Model(&user).Update("last_seen_at", now).Error; err != nil {
		_ = c.Error(err)
		return
	}

	token, err := jwt.GenerateToken(user.ID, user.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	response.JSONWithMessage(c, http.StatusOK, AuthResponse{Token: token, User: newPrivateUserResponse(user)}, "Login successful")
}

// GetMe godoc
// @Summary      Get current user
// @Description  Retrieves the private profile of the currently authenticated user.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=PrivateUserResponse}
// @Failure      401  {object}  response.ErrorResponse
// @Router       /auth/me [get]
func GetMe(c *gin.Context) {
	var user models.User
	if err := database.DB.First(&user, currentUserID(c)).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, newPrivateUserResponse(user))
}

// RefreshToken godoc
// @Summary      Refresh token
// @Description  Issues a new token for the authenticated user.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope{data=map[string]string}
// @Failure      401  {object}  response.ErrorResponse
// @Router       /auth/refresh [post]
func RefreshToken(c *gin.Context) {
	token, err := jwt.GenerateToken(currentUserID(c), c.GetString("role"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token})
}

// ChangePassword godoc
// @Summary      Change password
// @Description  Replaces the caller's password after checking the current one.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body ChangePasswordInput true "Passwords"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.ErrorResponse
// @Failure      401  {object}  response.ErrorResponse "Current password is incorrect"
// @Router       /auth/password [put]
func ChangePassword(c *gin.Context) {
	var input ChangePasswordInput
	if !bindJSON(c, &input) {
		return
	}

	var user models.User
	if err := database.DB.First(&user, currentUserID(c)).Error; err != nil {
		_ = c.Error(err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		respondError(c, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to hash password")
		return
	}
	if err := database.DB.Model(&user).Update("password_hash", string(hashedPassword)).Error; err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, http.StatusOK, "Password updated")
}
