package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"readinghub/backend/internal/lib/sl"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event types broadcast to room members.
const (
	EventMessage            = "message"
	EventTyping             = "typing"
	EventUserJoined         = "user_joined"
	EventUserLeft           = "user_left"
	EventCurrentBookChanged = "current_book_changed"
	EventClubDeleted        = "club_deleted"
	EventDirectMessage      = "direct_message"
	EventError              = "error"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client represents a single client connection subscribed to a room.
// The connection's writer goroutine drains it.
type Client chan []byte

// NewClient allocates a client with the standard buffer.
func NewClient() Client {
	return make(Client, 64)
}

// ClubRoom is the room shared by a club's members.
func ClubRoom(clubID uint) string {
	return fmt.Sprintf("club:%d", clubID)
}

// UserRoom is the personal room used for direct messages.
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

var connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "readinghub_hub_clients",
	Help: "Number of clients currently subscribed to hub rooms.",
})

// Hub manages all active rooms and their clients. Each client records the
// user that owns it; zero means anonymous.
type Hub struct {
	rooms map[string]map[Client]uint
	mu    sync.RWMutex
}

// GlobalHub is the singleton instance of our Hub.
var GlobalHub = NewHub()

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Client]uint),
	}
}

// Subscribe adds an anonymous client to a room.
func (h *Hub) Subscribe(room string, client Client) {
	h.SubscribeUser(room, 0, client)
}

// SubscribeUser adds a client owned by userID to a room.
func (h *Hub) SubscribeUser(room string, userID uint, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[Client]uint)
	}
	if _, ok := h.rooms[room][client]; !ok {
		h.rooms[room][client] = userID
		connectedClients.Inc()
	}
}

// Kick unsubscribes every client userID owns in a room and returns how
// many were closed.
func (h *Hub) Kick(room string, userID uint) int {
	if userID == 0 {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[room]
	if !ok {
		return 0
	}
	kicked := 0
	for client, owner := range clients {
		if owner != userID {
			continue
		}
		delete(clients, client)
		close(client)
		connectedClients.Dec()
		kicked++
	}
	if len(clients) == 0 {
		delete(h.rooms, room)
	}
	return kicked
}

// Unsubscribe removes a client from a room and closes its channel.
// A client must only be subscribed to one room.
func (h *Hub) Unsubscribe(room string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[room]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Signals the writer goroutine to stop.
			connectedClients.Dec()
			if len(clients) == 0 {
				delete(h.rooms, room)
			}
		}
	}
}

// Broadcast sends an event to every client in a room. It returns the number
// of clients the event was queued for; full clients are skipped.
func (h *Hub) Broadcast(room string, event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	if !ok {
		return 0
	}

	messageBytes, err := json.Marshal(event)
	if err != nil {
		slog.Default().Error("hub: cannot encode event", slog.String("type", event.Type), sl.Err(err))
		return 0
	}

	delivered := 0
	for client := range clients {
		// Non-blocking: a slow client must not stall the room.
		select {
		case client <- messageBytes:
			delivered++
		default:
		}
	}
	return delivered
}

// CloseRoom unsubscribes every client of a room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[room] {
		close(client)
		connectedClients.Dec()
	}
	delete(h.rooms, room)
}

// RoomSize returns the number of clients in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms lists rooms that have at least one client, sorted.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.rooms))
	for room := range h.rooms {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}
