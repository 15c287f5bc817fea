package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// region --- DTOs ---

// CreateClubInput defines the structure for creating a club.
type CreateClubInput struct {
	Name        string            `json:"name" binding:"required,min=3,max=100" example:"Sci-fi Sundays"`
	Description string            `json:"description" binding:"max=1000"`
	Status      models.ClubStatus `json:"status" binding:"omitempty,oneof=active inactive private" example:"active"`
	MaxMembers  int               `json:"maxMembers" binding:"omitempty,min=2,max=500" example:"25"`
	CoverURL    string            `json:"coverUrl" binding:"omitempty,url,max=1024"`
}

// UpdateClubInput holds the editable club fields. Omitted fields are kept.
type UpdateClubInput struct {
	Name        *string            `json:"name" binding:"omitempty,min=3,max=100"`
	Description *string            `json:"description" binding:"omitempty,max=1000"`
	Status      *models.ClubStatus `json:"status" binding:"omitempty,oneof=active inactive private"`
	MaxMembers  *int               `json:"maxMembers" binding:"omitempty,max=500"`
	CoverURL    *string            `json:"coverUrl" binding:"omitempty,max=1024"`
}

// AddMemberInput names the user to add to a club.
type AddMemberInput struct {
	UserID uint `json:"userId" binding:"required" example:"2"`
}

// MemberRoleInput is the new role of a club member.
type MemberRoleInput struct {
	Role models.MemberRole `json:"role" binding:"required,oneof=moderator member" example:"moderator"`
}

// CurrentBookInput names the club's new current book.
type CurrentBookInput struct {
	BookID uint `json:"bookId" binding:"required" example:"1"`
}

// MessageInput is the body of a chat message.
type MessageInput struct {
	Content string `json:"content" binding:"required,min=1,max=2000" example:"Who else loved the ending?"`
}

// endregion

// region --- helpers ---

// visibleClubs hides private clubs the viewer is not a member of.
func visibleClubs(query *gorm.DB, viewerID uint) *gorm.DB {
	memberOf := database.DB.Model(&models.ClubMember{}).Select("club_id").Where("user_id = ?", viewerID)
	return query.Where("clubs.status <> ? OR clubs.id IN (?)", models.ClubStatusPrivate, memberOf)
}

func countMembers(db *gorm.DB, clubID uint) (int64, error) {
	var count int64
	err := db.Model(&models.ClubMember{}).Where("club_id = ?", clubID).Count(&count).Error
	return count, err
}

func memberCounts(clubIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(clubIDs))
	if len(clubIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ClubID uint
		Count  int64
	}
	if err := database.DB.Model(&models.ClubMember{}).
		Select("club_id, COUNT(*) AS count").
		Where("club_id IN ?", clubIDs).
		Group("club_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ClubID] = r.Count
	}
	return counts, nil
}

func clubResponses(clubs []models.Club, viewerID uint) ([]ClubResponse, error) {
	ids := make([]uint, 0, len(clubs))
	for _, club := range clubs {
		ids = append(ids, club.ID)
	}

	counts, err := memberCounts(ids)
	if err != nil {
		return nil, err
	}

	roles := make(map[uint]models.MemberRole)
	if len(ids) > 0 {
		var memberships []models.ClubMember
		if err := database.DB.Where("user_id = ? AND club_id IN ?", viewerID, ids).Find(&memberships).Error; err != nil {
			return nil, err
		}
		for _, m := range memberships {
			roles[m.ClubID] = m.Role
		}
	}

	out := make([]ClubResponse, 0, len(clubs))
	for _, club := range clubs {
		var myRole *models.MemberRole
		if role, ok := roles[club.ID]; ok {
			myRole = &role
		}
		out = append(out, newClubResponse(club, counts[club.ID], myRole))
	}
	return out, nil
}

// findMembership returns the membership or nil when userID is not a member.
func findMembership(db *gorm.DB, clubID, userID uint) (*models.ClubMember, error) {
	var m models.ClubMember
	err := db.Where("club_id = ? AND user_id = ?", clubID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// loadClub resolves the :id parameter to a club the caller may see, along
// with the caller's membership (nil for non-members). Private clubs look
// missing to outsiders.
func loadClub(c *gin.Context) (*models.Club, *models.ClubMember, bool) {
	clubID, ok := parseID(c, "id", "club ID")
	if !ok {
		return nil, nil, false
	}

	var club models.Club
	if err := database.DB.Preload("Owner").Preload("CurrentBook").First(&club, clubID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Club not found")
			return nil, nil, false
		}
		_ = c.Error(err)
		return nil, nil, false
	}

	membership, err := findMembership(database.DB, club.ID, currentUserID(c))
	if err != nil {
		_ = c.Error(err)
		return nil, nil, false
	}

	if club.Status == models.ClubStatusPrivate && membership == nil && c.GetString("role") != models.RoleAdmin {
		respondError(c, http.StatusNotFound, "Club not found")
		return nil, nil, false
	}
	return &club, membership, true
}

// loadClubAsMember is loadClub for endpoints restricted to members.
func loadClubAsMember(c *gin.Context) (*models.Club, *models.ClubMember, bool) {
	club, membership, ok := loadClub(c)
	if !ok {
		return nil, nil, false
	}
	if membership == nil {
		respondError(c, http.StatusForbidden, "You are not a member of this club")
		return nil, nil, false
	}
	return club, membership, true
}

// loadClubAsModerator is loadClub for endpoints restricted to owners and moderators.
func loadClubAsModerator(c *gin.Context) (*models.Club, *models.ClubMember, bool) {
	club, membership, ok := loadClubAsMember(c)
	if !ok {
		return nil, nil, false
	}
	if !membership.Role.CanModerate() {
		respondError(c, http.StatusForbidden, "Only the owner or a moderator can do this")
		return nil, nil, false
	}
	return club, membership, true
}

// deleteClub removes a club with its memberships and chat history.
func deleteClub(tx *gorm.DB, clubID uint) error {
	if err := tx.Unscoped().Where("club_id = ?", clubID).Delete(&models.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("club_id = ?", clubID).Delete(&models.ClubMember{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Delete(&models.Club{}, clubID).Error
}

// removeMember deletes a membership. When the owner leaves, ownership passes
// to the longest-standing moderator, then the longest-standing member. A club
// left without members is deleted, which is reported by the bool result.
func removeMember(tx *gorm.DB, clubID, userID uint) (bool, error) {
	membership, err := findMembership(tx, clubID, userID)
	if err != nil || membership == nil {
		return false, err
	}

	if err := tx.Where("club_id = ? AND user_id = ?", clubID, userID).Delete(&models.ClubMember{}).Error; err != nil {
		return false, err
	}

	var successor models.ClubMember
	err = tx.Where("club_id = ?", clubID).
		Order("CASE WHEN role = 'moderator' THEN 0 ELSE 1 END").
		Order("joined_at ASC").
		First(&successor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, deleteClub(tx, clubID)
	}
	if err != nil {
		return false, err
	}

	if membership.Role != models.MemberRoleOwner {
		return false, nil
	}
	if err := tx.Model(&models.ClubMember{}).
		Where("club_id = ? AND user_id = ?", clubID, successor.UserID).
		Update("role", models.MemberRoleOwner).Error; err != nil {
		return false, err
	}
	return false, tx.Model(&models.Club{}).Where("id = ?", clubID).Update("owner_id", successor.UserID).Error
}

// addMember inserts a membership after checking the club's capacity.
func addMember(tx *gorm.DB, club *models.Club, userID uint, role models.MemberRole) error {
	existing, err := findMembership(tx, club.ID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return NewAPIError(http.StatusConflict, "User is already a member of this club")
	}

	count, err := countMembers(tx, club.ID)
	if err != nil {
		return err
	}
	if club.IsFull(count) {
		return NewAPIError(http.StatusConflict, "Club is full")
	}

	return tx.Create(&models.ClubMember{ClubID: club.ID, UserID: userID, Role: role, JoinedAt: time.Now()}).Error
}

// postClubMessage stores a chat message and broadcasts it to the club room.
func postClubMessage(ctx context.Context, clubID uint, senderID *uint, kind models.MessageType, content string) (*models.Message, error) {
	msg := models.Message{SenderID: senderID, ClubID: &clubID, Type: kind, Content: content}
	if err := database.DB.Create(&msg).Error; err != nil {
		return nil, err
	}
	if senderID != nil {
		var sender models.User
		if err := database.DB.First(&sender, *senderID).Error; err != nil {
			return nil, err
		}
		msg.Sender = &sender
	}

	hub.GlobalHub.Broadcast(hub.ClubRoom(clubID), hub.Event{Type: hub.EventMessage, Payload: newMessageResponse(msg)})
	if kind == models.MessageTypeText {
		events.Emit(ctx, events.MessageSent, gin.H{"messageId": msg.ID, "clubId": clubID, "senderId": senderID})
	}
	return &msg, nil
}

func broadcastClubDeleted(clubID uint) {
	room := hub.ClubRoom(clubID)
	hub.GlobalHub.Broadcast(room, hub.Event{Type: hub.EventClubDeleted, Payload: gin.H{"clubId": clubID}})
	hub.GlobalHub.CloseRoom(room)
}

// endregion

// CreateClub godoc
// @Summary      Create a new club
// @Description  Creates a club and makes the creator its owner.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateClubInput true "Club Info"
// @Success      201  {object}  response.Envelope{data=ClubResponse}
// @Failure      400  {object}  response.ErrorResponse
// @Failure      409  {object}  response.ErrorResponse "Club name already taken"
// @Router       /clubs [post]
func CreateClub(c *gin.Context) {
	userID := currentUserID(c)

	var input CreateClubInput
	if !bindJSON(c, &input) {
		return
	}
	name := strings.TrimSpace(input.Name)

	var taken int64
	if err := database.DB.Model(&models.Club{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&taken).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if taken > 0 {
		respondError(c, http.StatusConflict, "Club name already taken")
		return
	}

	status := input.Status
	if status == "" {
		status = models.ClubStatusActive
	}
	club := models.Club{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     userID,
		Status:      status,
		MaxMembers:  input.MaxMembers,
		CoverURL:    input.CoverURL,
	}

	// Use a transaction so a club never exists without its owner.
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&club).Error; err != nil {
			return err
		}
		return tx.Create(&models.ClubMember{ClubID: club.ID, UserID: userID, Role: models.MemberRoleOwner, JoinedAt: time.Now()}).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := database.DB.Preload("Owner").First(&club, club.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	role := models.MemberRoleOwner
	response.JSONWithMessage(c, http.StatusCreated, newClubResponse(club, 1, &role), "Club created")
}

// ListClubs godoc
// @Summary      Search for clubs
// @Description  Lists clubs, optionally filtered by name and status. Private clubs are only listed for their members.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        q      query string false "Name or description filter"
// @Param        status query string false "active, inactive or private"
// @Param        page   query int    false "Page number" default(1)
// @Param        limit  query int    false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[ClubResponse]}
// @Failure      400 {object} response.ErrorResponse
// @Router       /clubs [get]
func ListClubs(c *gin.Context) {
	viewerID := currentUserID(c)
	query := visibleClubs(database.DB.Model(&models.Club{}), viewerID)

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(clubs.name) LIKE ? OR LOWER(clubs.description) LIKE ?", like, like)
	}
	if s := c.Query("status"); s != "" {
		status := models.ClubStatus(s)
		if !status.IsValid() {
			respondError(c, http.StatusBadRequest, "Invalid status filter")
			return
		}
		query = query.Where("clubs.status = ?", status)
	}

	p := parsePagination(c)
	clubs, total, err := Paginate[models.Club](query, p, "clubs.created_at DESC", "Owner", "CurrentBook")
	if err != nil {
		_ = c.Error(err)
		return
	}

	items, err := clubResponses(clubs, viewerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(items, total, p))
}

// GetClubByID godoc
// @Summary      Get a club by ID
// @Description  Gets full details for a single club, including members and current book.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Club ID"
// @Success      200 {object} response.Envelope{data=ClubDetailResponse}
// @Failure      404 {object} response.ErrorResponse "Club not found"
// @Router       /clubs/{id} [get]
func GetClubByID(c *gin.Context) {
	club, membership, ok := loadClub(c)
	if !ok {
		return
	}

	var members []models.ClubMember
	if err := database.DB.Preload("User").Where("club_id = ?", club.ID).Order("joined_at ASC").Find(&members).Error; err != nil {
		_ = c.Error(err)
		return
	}

	var myRole *models.MemberRole
	if membership != nil {
		myRole = &membership.Role
	}
	response.JSON(c, http.StatusOK, ClubDetailResponse{
		ClubResponse: newClubResponse(*club, int64(len(members)), myRole),
		Members:      mapSlice(members, newMemberResponse),
	})
}

// UpdateClub godoc
// @Summary      Update a club
// @Description  Updates club fields. Owner or moderator only.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int             true "Club ID"
// @Param        input body UpdateClubInput true "Club fields"
// @Success      200 {object} response.Envelope{data=ClubResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Router       /clubs/{id} [put]
func UpdateClub(c *gin.Context) {
	club, membership, ok := loadClubAsModerator(c)
	if !ok {
		return
	}

	var input UpdateClubInput
	if !bindJSON(c, &input) {
		return
	}

	count, err := countMembers(database.DB, club.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		var taken int64
		if err := database.DB.Model(&models.Club{}).
			Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), club.ID).
			Count(&taken).Error; err != nil {
			_ = c.Error(err)
			return
		}
		if taken > 0 {
			respondError(c, http.StatusConflict, "Club name already taken")
			return
		}
		club.Name = name
	}
	if input.Description != nil {
		club.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		club.Status = *input.Status
	}
	if input.MaxMembers != nil {
		if *input.MaxMembers == 1 || *input.MaxMembers < 0 {
			respondError(c, http.StatusBadRequest, "maxMembers must be 0 (unlimited) or between 2 and 500")
			return
		}
		if *input.MaxMembers > 0 && int64(*input.MaxMembers) < count {
			respondError(c, http.StatusConflict, "maxMembers is below the current member count")
			return
		}
		club.MaxMembers = *input.MaxMembers
	}
	if input.CoverURL != nil {
		club.CoverURL = *input.CoverURL
	}

	if err := database.DB.Model(club).
		Select("name", "description", "status", "max_members", "cover_url").
		Updates(club).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSONWithMessage(c, http.StatusOK, newClubResponse(*club, count, &membership.Role), "Club updated")
}

// DeleteClub godoc
// @Summary      Delete a club
// @Description  Deletes a club with its memberships and messages. Club owner or admin only.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Club ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /clubs/{id} [delete]
func DeleteClub(c *gin.Context) {
	club, membership, ok := loadClub(c)
	if !ok {
		return
	}

	isOwner := membership != nil && membership.Role == models.MemberRoleOwner
	if !isOwner && c.GetString("role") != models.RoleAdmin {
		respondError(c, http.StatusForbidden, "Only the club owner can delete the club")
		return
	}

	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		return deleteClub(tx, club.ID)
	}); err != nil {
		_ = c.Error(err)
		return
	}

	broadcastClubDeleted(club.ID)
	response.Message(c, http.StatusOK, "Club deleted")
}

// JoinClub godoc
// @Summary      Join a club
// @Description  Joins an active, public club that is not full.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Club ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.ErrorResponse "Club is private"
// @Failure      404 {object} response.ErrorResponse "Club not found"
// @Failure      409 {object} response.ErrorResponse "Already a member, club full or inactive"
// @Router       /clubs/{id}/join [post]
func JoinClub(c *gin.Context) {
	userID := currentUserID(c)
	clubID, ok := parseID(c, "id", "club ID")
	if !ok {
		return
	}

	var club models.Club
	if err := database.DB.First(&club, clubID).Error; err != nil {
		_ = c.Error(err)
		return
	}

	switch club.Status {
	case models.ClubStatusPrivate:
		respondError(c, http.StatusForbidden, "This club is private; ask a moderator to add you")
		return
	case models.ClubStatusInactive:
		respondError(c, http.StatusConflict, "This club is not accepting new members")
		return
	}

	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		return addMember(tx, &club, userID, models.MemberRoleMember)
	}); err != nil {
		_ = c.Error(err)
		return
	}

	events.Emit(c.Request.Context(), events.ClubMemberJoined, gin.H{"clubId": club.ID, "userId": userID})
	response.Message(c, http.StatusOK, "Joined club successfully")
}

// LeaveClub godoc
// @Summary      Leave a club
// @Description  Leaves a club. An owner's ownership passes to another member; the last member leaving deletes the club.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Club ID"
// @Success      200 {object} response.Envelope
// @Failure      404 {object} response.ErrorResponse "Not a member"
// @Router       /clubs/{id}/leave [post]
func LeaveClub(c *gin.Context) {
	userID := currentUserID(c)
	clubID, ok := parseID(c, "id", "club ID")
	if !ok {
		return
	}

	membership, err := findMembership(database.DB, clubID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if membership == nil {
		respondError(c, http.StatusNotFound, "You are not a member of this club")
		return
	}

	var clubDeleted bool
	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		clubDeleted, err = removeMember(tx, clubID, userID)
		return err
	}); err != nil {
		_ = c.Error(err)
		return
	}

	events.Emit(c.Request.Context(), events.ClubMemberLeft, gin.H{"clubId": clubID, "userId": userID})
	if clubDeleted {
		broadcastClubDeleted(clubID)
		response.Message(c, http.StatusOK, "Left club; the club was deleted because it has no members left")
		return
	}
	hub.GlobalHub.Kick(hub.ClubRoom(clubID), userID)
	response.Message(c, http.StatusOK, "Left club successfully")
}

// ListClubMembers godoc
// @Summary      List club members
// @Description  Lists members of a club in join order.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Club ID"
// @Success      200 {object} response.Envelope{data=[]MemberResponse}
// @Failure      404 {object} response.ErrorResponse
// @Router       /clubs/{id}/members [get]
func ListClubMembers(c *gin.Context) {
	club, _, ok := loadClub(c)
	if !ok {
		return
	}

	var members []models.ClubMember
	if err := database.DB.Preload("User").Where("club_id = ?", club.ID).Order("joined_at ASC").Find(&members).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, mapSlice(members, newMemberResponse))
}

// AddClubMember godoc
// @Summary      Add a member
// @Description  Adds a user to the club. Owner or moderator only; works for private clubs.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int            true "Club ID"
// @Param        input body AddMemberInput true "User to add"
// @Success      201 {object} response.Envelope
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "User not found"
// @Failure      409 {object} response.ErrorResponse "Already a member or club full"
// @Router       /clubs/{id}/members [post]
func AddClubMember(c *gin.Context) {
	club, _, ok := loadClubAsModerator(c)
	if !ok {
		return
	}

	var input AddMemberInput
	if !bindJSON(c, &input) {
		return
	}

	var user models.User
	if err := database.DB.First(&user, input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		_ = c.Error(err)
		return
	}

	if err := database.DB.Transaction(func(tx *gorm.DB) error {
		return addMember(tx, club, user.ID, models.MemberRoleMember)
	}); err != nil {
		_ = c.Error(err)
		return
	}

	events.Emit(c.Request.Context(), events.ClubMemberJoined, gin.H{"clubId": club.ID, "userId": user.ID, "addedBy": currentUserID(c)})
	response.Message(c, http.StatusCreated, "Member added")
}

// RemoveClubMember godoc
// @Summary      Remove a member
// @Description  Removes a member from the club. Owner or moderator only; moderators cannot remove other moderators.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id     path int true "Club ID"
// @Param        userId path int true "Member User ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Member not found"
// @Router       /clubs/{id}/members/{userId} [delete]
func RemoveClubMember(c *gin.Context) {
	club, membership, ok := loadClubAsModerator(c)
	if !ok {
		return
	}
	targetID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	target, err := findMembership(database.DB, club.ID, targetID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	switch {
	case target == nil:
		respondError(c, http.StatusNotFound, "Member not found")
		return
	case target.Role == models.MemberRoleOwner:
		respondError(c, http.StatusForbidden, "The club owner cannot be removed")
		return
	case target.Role == models.MemberRoleModerator && membership.Role != models.MemberRoleOwner:
		respondError(c, http.StatusForbidden, "Only the owner can remove a moderator")
		return
	}

	if err := database.DB.Where("club_id = ? AND user_id = ?", club.ID, targetID).Delete(&models.ClubMember{}).Error; err != nil {
		_ = c.Error(err)
		return
	}

	hub.GlobalHub.Kick(hub.ClubRoom(club.ID), targetID)
	events.Emit(c.Request.Context(), events.ClubMemberLeft, gin.H{"clubId": club.ID, "userId": targetID, "removedBy": currentUserID(c)})
	response.Message(c, http.StatusOK, "Member removed")
}

// UpdateClubMemberRole godoc
// @Summary      Change a member's role
// @Description  Promotes a member to moderator or demotes a moderator. Owner only.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id     path int             true "Club ID"
// @Param        userId path int             true "Member User ID"
// @Param        input  body MemberRoleInput true "New role"
// @Success      200 {object} response.Envelope{data=MemberResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Member not found"
// @Router       /clubs/{id}/members/{userId}/role [put]
func UpdateClubMemberRole(c *gin.Context) {
	club, membership, ok := loadClubAsMember(c)
	if !ok {
		return
	}
	if membership.Role != models.MemberRoleOwner {
		respondError(c, http.StatusForbidden, "Only the club owner can change roles")
		return
	}
	targetID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	var input MemberRoleInput
	if !bindJSON(c, &input) {
		return
	}

	if targetID == membership.UserID {
		respondError(c, http.StatusBadRequest, "The owner's role cannot be changed")
		return
	}

	var target models.ClubMember
	if err := database.DB.Preload("User").Where("club_id = ? AND user_id = ?", club.ID, targetID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Member not found")
			return
		}
		_ = c.Error(err)
		return
	}

	if err := database.DB.Model(&models.ClubMember{}).
		Where("club_id = ? AND user_id = ?", club.ID, targetID).
		Update("role", input.Role).Error; err != nil {
		_ = c.Error(err)
		return
	}
	target.Role = input.Role
	response.JSONWithMessage(c, http.StatusOK, newMemberResponse(target), "Role updated")
}

// SetCurrentBook godoc
// @Summary      Set the club's current book
// @Description  Sets what the club is reading, posts a system message and notifies connected members.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int              true "Club ID"
// @Param        input body CurrentBookInput true "Book"
// @Success      200 {object} response.Envelope{data=ClubResponse}
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Book not found"
// @Router       /clubs/{id}/current-book [put]
func SetCurrentBook(c *gin.Context) {
	club, membership, ok := loadClubAsModerator(c)
	if !ok {
		return
	}

	var input CurrentBookInput
	if !bindJSON(c, &input) {
		return
	}

	var book models.Book
	if err := database.DB.First(&book, input.BookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Book not found")
			return
		}
		_ = c.Error(err)
		return
	}

	if err := database.DB.Model(club).Update("current_book_id", book.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	club.CurrentBookID = &book.ID
	club.CurrentBook = &book

	if _, err := postClubMessage(c.Request.Context(), club.ID, nil, models.MessageTypeSystem, "Now reading: "+book.Title); err != nil {
		_ = c.Error(err)
		return
	}
	hub.GlobalHub.Broadcast(hub.ClubRoom(club.ID), hub.Event{
		Type:    hub.EventCurrentBookChanged,
		Payload: gin.H{"clubId": club.ID, "book": newBookSummary(book)},
	})

	count, err := countMembers(database.DB, club.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSONWithMessage(c, http.StatusOK, newClubResponse(*club, count, &membership.Role), "Current book updated")
}

// ListClubMessages godoc
// @Summary      List club messages
// @Description  Lists a club's chat history, newest first. Members only.
// @Tags         clubs
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  int true  "Club ID"
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[MessageResponse]}
// @Failure      403 {object} response.ErrorResponse
// @Router       /clubs/{id}/messages [get]
func ListClubMessages(c *gin.Context) {
	club, _, ok := loadClubAsMember(c)
	if !ok {
		return
	}

	p := parsePagination(c)
	messages, total, err := Paginate[models.Message](database.DB.Where("club_id = ?", club.ID), p, "created_at DESC, id DESC", "Sender")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(messages, newMessageResponse), total, p))
}

// PostClubMessage godoc
// @Summary      Post a club message
// @Description  Stores a chat message and broadcasts it to connected members. Members only.
// @Tags         clubs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int          true "Club ID"
// @Param        input body MessageInput true "Message"
// @Success      201 {object} response.Envelope{data=MessageResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Router       /clubs/{id}/messages [post]
func PostClubMessage(c *gin.Context) {
	club, membership, ok := loadClubAsMember(c)
	if !ok {
		return
	}

	var input MessageInput
	if !bindJSON(c, &input) {
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		respondError(c, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	msg, err := postClubMessage(c.Request.Context(), club.ID, &membership.UserID, models.MessageTypeText, content)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusCreated, newMessageResponse(*msg))
}
