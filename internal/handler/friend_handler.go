package handler

import (
	"errors"
	"net/http"
	"time"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendResponse is one entry of the caller's friend list.
type FriendResponse struct {
	User      UserSummary             `json:"user"`
	Status    models.FriendshipStatus `json:"status" example:"accepted"`
	Direction string                  `json:"direction" example:"incoming"`
	Since     time.Time               `json:"since"`
}

const (
	directionIncoming = "incoming"
	directionOutgoing = "outgoing"
)

// findFriendship returns the relation between a and b in either direction,
// or nil when there is none. When both users block each other the block
// placed by b wins.
func findFriendship(db *gorm.DB, a, b uint) (*models.Friendship, error) {
	var f models.Friendship
	err := db.Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)", a, b, b, a).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN status = ? THEN 0 ELSE 1 END, CASE WHEN requester_id = ? THEN 0 ELSE 1 END",
			Vars:               []any{models.StatusBlocked, b},
			WithoutParentheses: true,
		}}).
		Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func areFriends(a, b uint) (bool, error) {
	f, err := findFriendship(database.DB, a, b)
	if err != nil || f == nil {
		return false, err
	}
	return f.Status == models.StatusAccepted, nil
}

func countFriends(userID uint) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Friendship{}).
		Where("status = ? AND (requester_id = ? OR addressee_id = ?)", models.StatusAccepted, userID, userID).
		Count(&count).Error
	return count, err
}

func friendshipState(viewerID uint, f *models.Friendship) *FriendshipState {
	if f == nil {
		return nil
	}
	direction := directionIncoming
	if f.RequesterID == viewerID {
		direction = directionOutgoing
	}
	return &FriendshipState{Status: f.Status, Direction: direction}
}

// loadTargetUser resolves the :userId parameter to an existing user other than the caller.
func loadTargetUser(c *gin.Context) (models.User, bool) {
	targetID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return models.User{}, false
	}
	if targetID == currentUserID(c) {
		respondError(c, http.StatusBadRequest, "You cannot do this to yourself")
		return models.User{}, false
	}

	var target models.User
	if err := database.DB.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return models.User{}, false
		}
		_ = c.Error(err)
		return models.User{}, false
	}
	return target, true
}

// ListFriends godoc
// @Summary      List friends and requests
// @Description  Lists the caller's relations filtered by status (default accepted) and direction.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "accepted, pending or blocked" default(accepted)
// @Param        direction query     string  false  "incoming or outgoing"
// @Param        page      query     int     false  "Page number" default(1)
// @Param        limit     query     int     false  "Items per page" default(20)
// @Success      200       {object}  response.Envelope{data=PaginatedResponse[FriendResponse]}
// @Failure      400       {object}  response.ErrorResponse
// @Router       /friends [get]
func ListFriends(c *gin.Context) {
	viewerID := currentUserID(c)
	status := models.FriendshipStatus(c.DefaultQuery("status", string(models.StatusAccepted)))
	if !status.IsValid() {
		respondError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}

	direction := c.Query("direction")
	if status == models.StatusBlocked {
		// Nobody learns who blocked them.
		direction = directionOutgoing
	}

	query := database.DB.Where("status = ?", status)
	switch direction {
	case directionIncoming:
		query = query.Where("addressee_id = ?", viewerID)
	case directionOutgoing:
		query = query.Where("requester_id = ?", viewerID)
	case "":
		query = query.Where("requester_id = ? OR addressee_id = ?", viewerID, viewerID)
	default:
		respondError(c, http.StatusBadRequest, "Invalid direction filter")
		return
	}

	p := parsePagination(c)
	relations, total, err := Paginate[models.Friendship](query, p, "updated_at DESC", "Requester", "Addressee")
	if err != nil {
		_ = c.Error(err)
		return
	}

	items := mapSlice(relations, func(f models.Friendship) FriendResponse {
		other := f.Addressee
		dir := directionOutgoing
		if f.AddresseeID == viewerID {
			other = f.Requester
			dir = directionIncoming
		}
		return FriendResponse{User: newUserSummary(other), Status: f.Status, Direction: dir, Since: f.UpdatedAt}
	})
	response.JSON(c, http.StatusOK, NewPaginatedResponse(items, total, p))
}

// SendFriendRequest godoc
// @Summary      Send friend request
// @Description  Sends a friend request. A pending request from the target is accepted instead.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Target User ID"
// @Success      200  {object}  response.Envelope "Friend request accepted"
// @Success      201  {object}  response.Envelope "Friend request sent"
// @Failure      400  {object}  response.ErrorResponse
// @Failure      403  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse "Target user not found"
// @Failure      409  {object}  response.ErrorResponse "Relation already exists"
// @Router       /friends/requests/{userId} [post]
func SendFriendRequest(c *gin.Context) {
	viewerID := currentUserID(c)
	target, ok := loadTargetUser(c)
	if !ok {
		return
	}

	existing, err := findFriendship(database.DB, viewerID, target.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if existing != nil {
		switch {
		case existing.Status == models.StatusBlocked && existing.RequesterID == target.ID:
			respondError(c, http.StatusForbidden, "You cannot send a friend request to this user")
		case existing.Status == models.StatusBlocked:
			respondError(c, http.StatusConflict, "You have blocked this user")
		case existing.Status == models.StatusPending && existing.RequesterID == target.ID:
			if err := database.DB.Model(existing).Update("status", models.StatusAccepted).Error; err != nil {
				_ = c.Error(err)
				return
			}
			events.Emit(c.Request.Context(), events.FriendRequestAccepted, gin.H{"requesterId": target.ID, "addresseeId": viewerID})
			response.Message(c, http.StatusOK, "Friend request accepted")
		case existing.Status == models.StatusPending:
			respondError(c, http.StatusConflict, "Friend request already sent")
		default:
			respondError(c, http.StatusConflict, "You are already friends")
		}
		return
	}

	relation := models.Friendship{RequesterID: viewerID, AddresseeID: target.ID, Status: models.StatusPending}
	if err := database.DB.Create(&relation).Error; err != nil {
		_ = c.Error(err)
		return
	}

	events.Emit(c.Request.Context(), events.FriendRequestSent, gin.H{"requesterId": viewerID, "addresseeId": target.ID})
	response.Message(c, http.StatusCreated, "Friend request sent")
}

// AcceptFriendRequest godoc
// @Summary      Accept friend request
// @Description  Accepts a pending request the target user sent to the caller.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Requester User ID"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.ErrorResponse "Request not found"
// @Router       /friends/requests/{userId}/accept [post]
func AcceptFriendRequest(c *gin.Context) {
	viewerID := currentUserID(c)
	requesterID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	result := database.DB.Model(&models.Friendship{}).
		Where("requester_id = ? AND addressee_id = ? AND status = ?", requesterID, viewerID, models.StatusPending).
		Update("status", models.StatusAccepted)
	if result.Error != nil {
		_ = c.Error(result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "Friend request not found")
		return
	}

	events.Emit(c.Request.Context(), events.FriendRequestAccepted, gin.H{"requesterId": requesterID, "addresseeId": viewerID})
	response.Message(c, http.StatusOK, "Friend request accepted")
}

// DeclineFriendRequest godoc
// @Summary      Decline friend request
// @Description  Declines a pending request the target user sent to the caller.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Requester User ID"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.ErrorResponse "Request not found"
// @Router       /friends/requests/{userId}/decline [post]
func DeclineFriendRequest(c *gin.Context) {
	requesterID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}
	deleteRelation(c, requesterID, currentUserID(c), models.StatusPending, "Friend request not found", "Friend request declined")
}

// CancelFriendRequest godoc
// @Summary      Cancel friend request
// @Description  Withdraws a pending request the caller sent.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Addressee User ID"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.ErrorResponse "Request not found"
// @Router       /friends/requests/{userId} [delete]
func CancelFriendRequest(c *gin.Context) {
	addresseeID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}
	deleteRelation(c, currentUserID(c), addresseeID, models.StatusPending, "Friend request not found", "Friend request cancelled")
}

// RemoveFriend godoc
// @Summary      Remove friend
// @Description  Ends an accepted friendship, whoever sent the original request.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Friend User ID"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.ErrorResponse "Not friends"
// @Router       /friends/{userId} [delete]
func RemoveFriend(c *gin.Context) {
	viewerID := currentUserID(c)
	friendID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	result := database.DB.
		Where("status = ? AND ((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))",
			models.StatusAccepted, viewerID, friendID, friendID, viewerID).
		Delete(&models.Friendship{})
	if result.Error != nil {
		_ = c.Error(result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "You are not friends with this user")
		return
	}
	response.Message(c, http.StatusOK, "Friend removed")
}

// BlockUser godoc
// @Summary      Block user
// @Description  Replaces any relation with the target by a block from the caller.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Target User ID"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.ErrorResponse
// @Failure      404  {object}  response.ErrorResponse "Target user not found"
// @Router       /friends/{userId}/block [post]
func BlockUser(c *gin.Context) {
	viewerID := currentUserID(c)
	target, ok := loadTargetUser(c)
	if !ok {
		return
	}

	// A block the target placed on the caller survives.
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ? AND status <> ?)",
			viewerID, target.ID, target.ID, viewerID, models.StatusBlocked).Delete(&models.Friendship{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.Friendship{RequesterID: viewerID, AddresseeID: target.ID, Status: models.StatusBlocked}).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Message(c, http.StatusOK, "User blocked")
}

// UnblockUser godoc
// @Summary      Unblock user
// @Description  Removes a block the caller placed on the target.
// @Tags         friends
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      int  true  "Target User ID"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.ErrorResponse "User is not blocked"
// @Router       /friends/{userId}/block [delete]
func UnblockUser(c *gin.Context) {
	targetID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}
	deleteRelation(c, currentUserID(c), targetID, models.StatusBlocked, "User is not blocked", "User unblocked")
}

func deleteRelation(c *gin.Context, requesterID, addresseeID uint, status models.FriendshipStatus, notFound, done string) {
	result := database.DB.
		Where("requester_id = ? AND addressee_id = ? AND status = ?", requesterID, addresseeID, status).
		Delete(&models.Friendship{})
	if result.Error != nil {
		_ = c.Error(result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, notFound)
		return
	}
	response.Message(c, http.StatusOK, done)
}
