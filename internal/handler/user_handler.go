package handler

import (
	"net/http"
	"strings"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UpdateProfileInput holds the editable profile fields. Omitted fields are kept.
type UpdateProfileInput struct {
	DisplayName    *string  `json:"displayName" binding:"omitempty,max=100"`
	Bio            *string  `json:"bio" binding:"omitempty,max=500"`
	AvatarURL      *string  `json:"avatarUrl" binding:"omitempty,url,max=512"`
	FavoriteGenres []string `json:"favoriteGenres" binding:"omitempty,max=20,dive,min=1,max=50"`
}

// SearchUsers godoc
// @Summary      Search for users
// @Description  Searches users by username or display name with pagination. The caller is excluded.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        q     query     string  false  "Search query"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(20)
// @Success      200   {object}  response.Envelope{data=PaginatedResponse[UserSummary]}
// @Failure      401   {object}  response.ErrorResponse
// @Router       /users [get]
func SearchUsers(c *gin.Context) {
	query := database.DB.Model(&models.User{}).Where("id <> ?", currentUserID(c))
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}

	p := parsePagination(c)
	users, total, err := Paginate[models.User](query, p, "username ASC")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(users, newUserSummary), total, p))
}

// UpdateMe godoc
// @Summary      Update own profile
// @Description  Updates the caller's display name, bio, avatar or favorite genres.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Profile fields"
// @Success      200  {object}  response.Envelope{data=PrivateUserResponse}
// @Failure      400  {object}  response.ErrorResponse
// @Router       /users/me [put]
func UpdateMe(c *gin.Context) {
	var input UpdateProfileInput
	if !bindJSON(c, &input) {
		return
	}

	var user models.User
	if err := database.DB.First(&user, currentUserID(c)).Error; err != nil {
		_ = c.Error(err)
		return
	}

	if input.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		user.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}
	if input.FavoriteGenres != nil {
		user.FavoriteGenres = normalizeGenres(input.FavoriteGenres)
	}

	if err := database.DB.Model(&user).
		Select("display_name", "bio", "avatar_url", "favorite_genres").
		Updates(&user).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSONWithMessage(c, http.StatusOK, newPrivateUserResponse(user), "Profile updated")
}

func normalizeGenres(genres []string) []string {
	seen := make(map[string]bool, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

// GetUserByID godoc
// @Summary      Get user by ID
// @Description  Retrieves a user's public profile with counters and the viewer's relation to them.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  response.Envelope{data=PublicUserResponse}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse "User not found"
// @Router       /users/{id} [get]
func GetUserByID(c *gin.Context) {
	viewerID := currentUserID(c)
	targetID, ok := parseID(c, "id", "user ID")
	if !ok {
		return
	}

	var user models.User
	if err := database.DB.First(&user, targetID).Error; err != nil {
		_ = c.Error(err)
		return
	}

	resp := PublicUserResponse{
		UserSummary:    newUserSummary(user),
		Bio:            user.Bio,
		FavoriteGenres: nonNil(user.FavoriteGenres),
		CreatedAt:      user.CreatedAt,
	}

	var err error
	if resp.FriendsCount, err = countFriends(user.ID); err != nil {
		_ = c.Error(err)
		return
	}
	if err := database.DB.Model(&models.Rating{}).Where("user_id = ?", user.ID).Count(&resp.RatingsCount).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := database.DB.Model(&models.ClubMember{}).Where("user_id = ?", user.ID).Count(&resp.ClubsCount).Error; err != nil {
		_ = c.Error(err)
		return
	}

	if viewerID != user.ID {
		relation, err := findFriendship(database.DB, viewerID, user.ID)
		if err != nil {
			_ = c.Error(err)
			return
		}
		resp.Friendship = friendshipState(viewerID, relation)
	}

	response.JSON(c, http.StatusOK, resp)
}

// GetUserClubs godoc
// @Summary      List a user's clubs
// @Description  Lists the clubs a user belongs to. Private clubs are only shown to their members.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  response.Envelope{data=[]ClubResponse}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse
// @Router       /users/{id}/clubs [get]
func GetUserClubs(c *gin.Context) {
	viewerID := currentUserID(c)
	targetID, ok := parseID(c, "id", "user ID")
	if !ok {
		return
	}
	if err := database.DB.Select("id").First(&models.User{}, targetID).Error; err != nil {
		_ = c.Error(err)
		return
	}

	query := database.DB.Model(&models.Club{}).
		Joins("JOIN club_members ON club_members.club_id = clubs.id AND club_members.user_id = ?", targetID)
	if viewerID != targetID {
		query = visibleClubs(query, viewerID)
	}

	var clubs []models.Club
	if err := query.Preload("Owner").Preload("CurrentBook").Order("clubs.name ASC").Find(&clubs).Error; err != nil {
		_ = c.Error(err)
		return
	}

	items, err := clubResponses(clubs, viewerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// GetUserRatings godoc
// @Summary      List a user's ratings
// @Description  Lists the ratings a user has given, newest first.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int  true   "User ID"
// @Param        page  query     int  false  "Page number" default(1)
// @Param        limit query     int  false  "Items per page" default(20)
// @Success      200   {object}  response.Envelope{data=PaginatedResponse[RatingResponse]}
// @Failure      400   {object}  response.ErrorResponse
// @Router       /users/{id}/ratings [get]
func GetUserRatings(c *gin.Context) {
	targetID, ok := parseID(c, "id", "user ID")
	if !ok {
		return
	}

	p := parsePagination(c)
	ratings, total, err := Paginate[models.Rating](database.DB.Where("user_id = ?", targetID), p, "updated_at DESC", "Book")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(ratings, newRatingResponse), total, p))
}

// DeleteMe godoc
// @Summary      Delete own account
// @Description  Deletes the caller's account, memberships, relations, ratings and reading list.
// @Description  Clubs the caller owns pass to another member or are deleted when empty.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Envelope
// @Failure      401  {object}  response.ErrorResponse
// @Router       /users/me [delete]
func DeleteMe(c *gin.Context) {
	userID := currentUserID(c)

	var memberships []models.ClubMember
	if err := database.DB.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		_ = c.Error(err)
		return
	}

	var deletedClubs []uint
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, m := range memberships {
			deleted, err := removeMember(tx, m.ClubID, userID)
			if err != nil {
				return err
			}
			if deleted {
				deletedClubs = append(deletedClubs, m.ClubID)
			}
		}
		if err := tx.Where("requester_id = ? OR addressee_id = ?", userID, userID).Delete(&models.Friendship{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.ReadingListEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("sender_id = ? OR recipient_id = ?", userID, userID).
			Where("club_id IS NULL").Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.User{}, userID).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	for _, clubID := range deletedClubs {
		broadcastClubDeleted(clubID)
	}
	for _, m := range memberships {
		hub.GlobalHub.Kick(hub.ClubRoom(m.ClubID), userID)
	}
	hub.GlobalHub.CloseRoom(hub.UserRoom(userID))

	response.Message(c, http.StatusOK, "Account deleted")
}
