package hub

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "club:12", ClubRoom(12))
	assert.Equal(t, "user:3", UserRoom(3))
}

func TestSubscribeAndBroadcast(t *testing.T) {
	h := NewHub()
	a, b := NewClient(), NewClient()
	h.Subscribe("club:1", a)
	h.Subscribe("club:1", b)
	h.Subscribe("club:1", b) // duplicate subscribe is a no-op

	assert.Equal(t, 2, h.RoomSize("club:1"))

	delivered := h.Broadcast("club:1", Event{Type: EventMessage, Payload: map[string]string{"content": "hi"}})
	assert.Equal(t, 2, delivered)

	for _, c := range []Client{a, b} {
		raw := <-c
		var ev struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, EventMessage, ev.Type)
		assert.Equal(t, "hi", ev.Payload["content"])
	}
}

func TestBroadcast_UnknownRoom(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.Broadcast("club:404", Event{Type: EventMessage}))
}

func TestBroadcast_IsolatesRooms(t *testing.T) {
	h := NewHub()
	a, b := NewClient(), NewClient()
	h.Subscribe("club:1", a)
	h.Subscribe("club:2", b)

	h.Broadcast("club:1", Event{Type: EventTyping})

	assert.Len(t, a, 1)
	assert.Len(t, b, 0)
}

func TestBroadcast_DropsForSlowClient(t *testing.T) {
	h := NewHub()
	slow := make(Client, 1)
	fast := NewClient()
	h.Subscribe("club:1", slow)
	h.Subscribe("club:1", fast)

	assert.Equal(t, 2, h.Broadcast("club:1", Event{Type: EventMessage}))
	assert.Equal(t, 1, h.Broadcast("club:1", Event{Type: EventMessage}))
	assert.Len(t, slow, 1)
	assert.Len(t, fast, 2)
}

func TestUnsubscribe_ClosesAndRemovesEmptyRoom(t *testing.T) {
	h := NewHub()
	c := NewClient()
	h.Subscribe("club:1", c)
	h.Unsubscribe("club:1", c)

	_, open := <-c
	assert.False(t, open)
	assert.Equal(t, 0, h.RoomSize("club:1"))
	assert.Empty(t, h.Rooms())

	// Unsubscribing twice must not close the channel again.
	assert.NotPanics(t, func() { h.Unsubscribe("club:1", c) })
}

func TestCloseRoom(t *testing.T) {
	h := NewHub()
	a, b := NewClient(), NewClient()
	h.Subscribe("club:9", a)
	h.Subscribe("club:9", b)
	h.Subscribe("club:10", NewClient())

	h.CloseRoom("club:9")

	_, openA := <-a
	_, openB := <-b
	assert.False(t, openA)
	assert.False(t, openB)
	assert.Equal(t, []string{"club:10"}, h.Rooms())
}

func TestConcurrentUse(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient()
			h.Subscribe("club:1", c)
			h.Broadcast("club:1", Event{Type: EventTyping})
			h.Unsubscribe("club:1", c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.RoomSize("club:1"))
}

func TestKick(t *testing.T) {
	h := NewHub()
	aliceWeb, alicePhone, bob, anon := NewClient(), NewClient(), NewClient(), NewClient()
	h.SubscribeUser("club:1", 1, aliceWeb)
	h.SubscribeUser("club:1", 1, alicePhone)
	h.SubscribeUser("club:1", 2, bob)
	h.Subscribe("club:1", anon)

	assert.Equal(t, 0, h.Kick("club:1", 0), "anonymous clients are never kicked")
	assert.Equal(t, 0, h.Kick("club:2", 1))
	assert.Equal(t, 2, h.Kick("club:1", 1))
	assert.Equal(t, 2, h.RoomSize("club:1"))

	_, openWeb := <-aliceWeb
	_, openPhone := <-alicePhone
	assert.False(t, openWeb)
	assert.False(t, openPhone)

	assert.Equal(t, 2, h.Broadcast("club:1", Event{Type: EventTyping}))

	// Unsubscribing a kicked client must not close it twice.
	assert.NotPanics(t, func() { h.Unsubscribe("club:1", aliceWeb) })

	h.Unsubscribe("club:1", anon)
	assert.Equal(t, 1, h.Kick("club:1", 2))
	assert.Empty(t, h.Rooms())
}

func TestBroadcast_UnencodablePayloadIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := NewHub()
	c := NewClient()
	h.Subscribe("club:1", c)

	assert.Equal(t, 0, h.Broadcast("club:1", Event{Type: EventMessage, Payload: make(chan int)}))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hub: cannot encode event", entry["msg"])
	assert.Equal(t, EventMessage, entry["type"])
	assert.Contains(t, entry["error"], "unsupported type")
}
