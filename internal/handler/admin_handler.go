package handler

import (
	"net/http"
	"strings"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
)

// RoleInput is the new platform role of a user.
type RoleInput struct {
	Role string `json:"role" binding:"required,oneof=user admin" example:"admin"`
}

// StatsResponse holds platform-wide counters.
type StatsResponse struct {
	Users            int64 `json:"users"`
	Books            int64 `json:"books"`
	Clubs            int64 `json:"clubs"`
	Messages         int64 `json:"messages"`
	Ratings          int64 `json:"ratings"`
	ConnectedClients int   `json:"connectedClients"`
}

// AdminListUsers godoc
// @Summary      List users (Admin)
// @Description  Lists every user with private fields. Admin only.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        q     query string false "Username or email filter"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[PrivateUserResponse]}
// @Failure      403 {object} response.ErrorResponse
// @Router       /admin/users [get]
func AdminListUsers(c *gin.Context) {
	query := database.DB.Model(&models.User{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	p := parsePagination(c)
	users, total, err := Paginate[models.User](query, p, "id ASC")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(users, newPrivateUserResponse), total, p))
}

// AdminUpdateUserRole godoc
// @Summary      Change a user's role (Admin)
// @Description  Grants or revokes the admin role. Admins cannot demote themselves.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int       true "User ID"
// @Param        input body RoleInput true "Role"
// @Success      200 {object} response.Envelope{data=PrivateUserResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /admin/users/{id}/role [put]
func AdminUpdateUserRole(c *gin.Context) {
	targetID, ok := parseID(c, "id", "user ID")
	if !ok {
		return
	}

	var input RoleInput
	if !bindJSON(c, &input) {
		return
	}
	if targetID == currentUserID(c) && input.Role != models.RoleAdmin {
		respondError(c, http.StatusBadRequest, "You cannot remove your own admin role")
		return
	}

	var user models.User
	if err := database.DB.First(&user, targetID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := database.DB.Model(&user).Update("role", input.Role).Error; err != nil {
		_ = c.Error(err)
		return
	}
	user.Role = input.Role
	response.JSONWithMessage(c, http.StatusOK, newPrivateUserResponse(user), "Role updated")
}

// AdminGetStats godoc
// @Summary      Platform statistics (Admin)
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Envelope{data=StatsResponse}
// @Failure      403 {object} response.ErrorResponse
// @Router       /admin/stats [get]
func AdminGetStats(c *gin.Context) {
	var stats StatsResponse
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.User{}, &stats.Users},
		{&models.Book{}, &stats.Books},
		{&models.Club{}, &stats.Clubs},
		{&models.Message{}, &stats.Messages},
		{&models.Rating{}, &stats.Ratings},
	}
	for _, entry := range counts {
		if err := database.DB.Model(entry.model).Count(entry.dst).Error; err != nil {
			_ = c.Error(err)
			return
		}
	}

	for _, room := range hub.GlobalHub.Rooms() {
		stats.ConnectedClients += hub.GlobalHub.RoomSize(room)
	}
	response.JSON(c, http.StatusOK, stats)
}
