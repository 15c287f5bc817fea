package handler

import (
	"errors"
	"io"
	"net/http"
	"sort"
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

// DirectMessageInput defines the structure for sending a direct message.
type DirectMessageInput struct {
	RecipientID uint   `json:"recipientId" binding:"required" example:"2"`
	Content     string `json:"content" binding:"required,min=1,max=2000" example:"Want to swap books?"`
}

// ConversationResponse summarizes the direct messages exchanged with one user.
type ConversationResponse struct {
	User        UserSummary     `json:"user"`
	LastMessage MessageResponse `json:"lastMessage"`
	UnreadCount int64           `json:"unreadCount"`
}

func directMessages(db *gorm.DB) *gorm.DB {
	return db.Where("club_id IS NULL AND recipient_id IS NOT NULL")
}

// SendDirectMessage godoc
// @Summary      Send a direct message
// @Description  Sends a message to a friend and pushes it to their open streams.
// @Tags         messages
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body DirectMessageInput true "Message"
// @Success      201 {object} response.Envelope{data=MessageResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse "Not friends"
// @Failure      404 {object} response.ErrorResponse "Recipient not found"
// @Router       /messages [post]
func SendDirectMessage(c *gin.Context) {
	senderID := currentUserID(c)

	var input DirectMessageInput
	if !bindJSON(c, &input) {
		return
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		respondError(c, http.StatusBadRequest, "Message content cannot be empty")
		return
	}
	if input.RecipientID == senderID {
		respondError(c, http.StatusBadRequest, "You cannot message yourself")
		return
	}

	var recipient models.User
	if err := database.DB.First(&recipient, input.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Recipient not found")
			return
		}
		_ = c.Error(err)
		return
	}

	friends, err := areFriends(senderID, recipient.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !friends {
		respondError(c, http.StatusForbidden, "You can only message friends")
		return
	}

	msg := models.Message{SenderID: &senderID, RecipientID: &recipient.ID, Type: models.MessageTypeText, Content: content}
	if err := database.DB.Create(&msg).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := database.DB.Preload("Sender").First(&msg, msg.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}

	resp := newMessageResponse(msg)
	hub.GlobalHub.Broadcast(hub.UserRoom(recipient.ID), hub.Event{Type: hub.EventDirectMessage, Payload: resp})
	events.Emit(c.Request.Context(), events.MessageSent, gin.H{"messageId": msg.ID, "senderId": senderID, "recipientId": recipient.ID})

	response.JSON(c, http.StatusCreated, resp)
}

// ListConversations godoc
// @Summary      List conversations
// @Description  Lists one entry per user the caller has exchanged direct messages with, most recent first.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Envelope{data=[]ConversationResponse}
// @Router       /messages/conversations [get]
func ListConversations(c *gin.Context) {
	userID := currentUserID(c)

	var heads []struct {
		OtherID uint
		LastID  uint
	}
	if err := directMessages(database.DB.Model(&models.Message{})).
		Select("CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS other_id, MAX(id) AS last_id", userID).
		Where("sender_id = ? OR recipient_id = ?", userID, userID).
		Group("other_id").
		Scan(&heads).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if len(heads) == 0 {
		response.JSON(c, http.StatusOK, []ConversationResponse{})
		return
	}

	lastIDs := make([]uint, 0, len(heads))
	otherIDs := make([]uint, 0, len(heads))
	for _, h := range heads {
		lastIDs = append(lastIDs, h.LastID)
		otherIDs = append(otherIDs, h.OtherID)
	}

	var lastMessages []models.Message
	if err := database.DB.Preload("Sender").Where("id IN ?", lastIDs).Find(&lastMessages).Error; err != nil {
		_ = c.Error(err)
		return
	}
	byID := make(map[uint]models.Message, len(lastMessages))
	for _, m := range lastMessages {
		byID[m.ID] = m
	}

	var users []models.User
	if err := database.DB.Where("id IN ?", otherIDs).Find(&users).Error; err != nil {
		_ = c.Error(err)
		return
	}
	usersByID := make(map[uint]models.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	var unread []struct {
		SenderID uint
		Count    int64
	}
	if err := directMessages(database.DB.Model(&models.Message{})).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Group("sender_id").
		Scan(&unread).Error; err != nil {
		_ = c.Error(err)
		return
	}
	unreadBySender := make(map[uint]int64, len(unread))
	for _, u := range unread {
		unreadBySender[u.SenderID] = u.Count
	}

	conversations := make([]ConversationResponse, 0, len(heads))
	for _, h := range heads {
		other, ok := usersByID[h.OtherID]
		last, found := byID[h.LastID]
		if !ok || !found {
			continue
		}
		conversations = append(conversations, ConversationResponse{
			User:        newUserSummary(other),
			LastMessage: newMessageResponse(last),
			UnreadCount: unreadBySender[h.OtherID],
		})
	}
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.ID > conversations[j].LastMessage.ID
	})

	response.JSON(c, http.StatusOK, conversations)
}

// GetConversation godoc
// @Summary      Get conversation history
// @Description  Lists direct messages exchanged with a user, newest first.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        userId path  int true  "Other User ID"
// @Param        page   query int false "Page number" default(1)
// @Param        limit  query int false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[MessageResponse]}
// @Failure      400 {object} response.ErrorResponse
// @Router       /messages/conversations/{userId} [get]
func GetConversation(c *gin.Context) {
	userID := currentUserID(c)
	otherID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	query := directMessages(database.DB).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userID, otherID, otherID, userID)

	p := parsePagination(c)
	messages, total, err := Paginate[models.Message](query, p, "created_at DESC, id DESC", "Sender")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(messages, newMessageResponse), total, p))
}

// MarkConversationRead godoc
// @Summary      Mark conversation read
// @Description  Marks every unread message from a user to the caller as read.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        userId path int true "Other User ID"
// @Success      200 {object} response.Envelope{data=map[string]int64}
// @Failure      400 {object} response.ErrorResponse
// @Router       /messages/conversations/{userId}/read [post]
func MarkConversationRead(c *gin.Context) {
	userID := currentUserID(c)
	otherID, ok := parseID(c, "userId", "user ID")
	if !ok {
		return
	}

	result := directMessages(database.DB.Model(&models.Message{})).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", otherID, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		_ = c.Error(result.Error)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": result.RowsAffected})
}

// UnreadCount godoc
// @Summary      Count unread messages
// @Description  Returns the number of unread direct messages addressed to the caller.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Envelope{data=map[string]int64}
// @Router       /messages/unread-count [get]
func UnreadCount(c *gin.Context) {
	var count int64
	if err := directMessages(database.DB.Model(&models.Message{})).
		Where("recipient_id = ? AND read_at IS NULL", currentUserID(c)).
		Count(&count).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count})
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Deletes one of the caller's own messages.
// @Tags         messages
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Message ID"
// @Success      200 {object} response.Envelope
// @Failure      403 {object} response.ErrorResponse "Not the sender"
// @Failure      404 {object} response.ErrorResponse "Message not found"
// @Router       /messages/{id} [delete]
func DeleteMessage(c *gin.Context) {
	messageID, ok := parseID(c, "id", "message ID")
	if !ok {
		return
	}

	var msg models.Message
	if err := database.DB.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Message not found")
			return
		}
		_ = c.Error(err)
		return
	}
	if msg.SenderID == nil || *msg.SenderID != currentUserID(c) {
		respondError(c, http.StatusForbidden, "You can only delete your own messages")
		return
	}

	if err := database.DB.Delete(&msg).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.Message(c, http.StatusOK, "Message deleted")
}

// StreamDirectMessages godoc
// @Summary      Stream direct messages
// @Description  Server-sent events stream of direct messages addressed to the caller.
// @Tags         messages
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Router       /messages/stream [get]
func StreamDirectMessages(c *gin.Context) {
	room := hub.UserRoom(currentUserID(c))
	client := hub.NewClient()
	hub.GlobalHub.SubscribeUser(room, currentUserID(c), client)
	defer hub.GlobalHub.Unsubscribe(room, client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(pingPeriod)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent(hub.EventDirectMessage, string(message))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
