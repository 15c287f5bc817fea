package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"readinghub/backend/internal/config"
	"readinghub/backend/internal/database"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/lib/sl"
	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 4096
	maxMessageSize = 2000
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from the configured CORS origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if config.AppConfig == nil {
		return false
	}
	for _, allowed := range config.AppConfig.AllowedOrigins() {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// inboundFrame is a frame sent by a chat client.
type inboundFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// chatConn is one member's websocket connection to a club room.
type chatConn struct {
	conn   *websocket.Conn
	client hub.Client
	// direct carries replies meant only for this connection. The hub may
	// close client at any time, so it is never used for those.
	direct chan []byte
	clubID uint
	user   models.User
	log    *slog.Logger
}

// ClubChat godoc
// @Summary      Club chat websocket
// @Description  Upgrades to a websocket subscribed to the club room. Members only.
// @Description  Inbound frames: {"type":"message","content":"..."} and {"type":"typing"}.
// @Description  Outbound frames: {"type": "...", "payload": {...}}.
// @Tags         clubs
// @Security     BearerAuth
// @Param        id    path  int    true  "Club ID"
// @Param        token query string false "JWT, for clients that cannot set headers"
// @Success      101
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /clubs/{id}/ws [get]
func ClubChat(c *gin.Context) {
	club, membership, ok := loadClubAsMember(c)
	if !ok {
		return
	}

	var user models.User
	if err := database.DB.First(&user, membership.UserID).Error; err != nil {
		_ = c.Error(err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already replied.
		slog.Default().Warn("websocket upgrade failed", sl.Err(err))
		return
	}

	cc := &chatConn{
		conn:   conn,
		client: hub.NewClient(),
		direct: make(chan []byte, 8),
		clubID: club.ID,
		user:   user,
		log:    slog.Default().With(slog.Uint64("club_id", uint64(club.ID)), slog.Uint64("user_id", uint64(user.ID))),
	}
	cc.serve(c.Request.Context())
}

func (cc *chatConn) room() string {
	return hub.ClubRoom(cc.clubID)
}

func (cc *chatConn) presence() gin.H {
	return gin.H{"clubId": cc.clubID, "user": newUserSummary(cc.user)}
}

// serve runs until the client disconnects or the room is closed.
func (cc *chatConn) serve(ctx context.Context) {
	hub.GlobalHub.SubscribeUser(cc.room(), cc.user.ID, cc.client)
	hub.GlobalHub.Broadcast(cc.room(), hub.Event{Type: hub.EventUserJoined, Payload: cc.presence()})
	cc.log.Debug("chat connected")

	done := make(chan struct{})
	go cc.writePump(done)
	cc.readPump(ctx)

	hub.GlobalHub.Unsubscribe(cc.room(), cc.client)
	hub.GlobalHub.Broadcast(cc.room(), hub.Event{Type: hub.EventUserLeft, Payload: cc.presence()})
	<-done
	cc.log.Debug("chat disconnected")
}

func (cc *chatConn) readPump(ctx context.Context) {
	cc.conn.SetReadLimit(maxFrameSize)
	_ = cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	cc.conn.SetPongHandler(func(string) error {
		return cc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cc.log.Info("chat read failed", sl.Err(err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			cc.reply("Malformed frame")
			continue
		}

		if !cc.handle(ctx, frame) {
			return
		}
	}
}

// handle processes one frame. It returns false when the connection must close.
func (cc *chatConn) handle(ctx context.Context, frame inboundFrame) bool {
	switch frame.Type {
	case hub.EventMessage:
		content := strings.TrimSpace(frame.Content)
		if content == "" || len([]rune(content)) > maxMessageSize {
			cc.reply("Message content must be between 1 and 2000 characters")
			return true
		}

		membership, err := findMembership(database.DB, cc.clubID, cc.user.ID)
		if err != nil {
			cc.log.Error("membership lookup failed", sl.Err(err))
			cc.reply("Message could not be sent")
			return true
		}
		if membership == nil {
			cc.reply("You are no longer a member of this club")
			return false
		}

		if _, err := postClubMessage(ctx, cc.clubID, &cc.user.ID, models.MessageTypeText, content); err != nil {
			cc.log.Error("saving chat message failed", sl.Err(err))
			cc.reply("Message could not be sent")
		}
	case hub.EventTyping:
		hub.GlobalHub.Broadcast(cc.room(), hub.Event{Type: hub.EventTyping, Payload: cc.presence()})
	default:
		cc.reply("Unknown event type")
	}
	return true
}

// reply queues an error event for this connection only.
func (cc *chatConn) reply(message string) {
	data, err := json.Marshal(hub.Event{Type: hub.EventError, Payload: gin.H{"message": message}})
	if err != nil {
		return
	}
	select {
	case cc.direct <- data:
	default:
	}
}

func (cc *chatConn) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cc.conn.Close()
		close(done)
	}()

	for {
		select {
		case message, ok := <-cc.client:
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Unsubscribed, or the room was closed.
				_ = cc.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case message := <-cc.direct:
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cc.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = cc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
