package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchUsers(t *testing.T) {
	env := setupTest(t)
	alice := env.register(t, "alice")
	env.register(t, "alicia")
	env.register(t, "bob")

	w := env.do(t, http.MethodGet, "/api/users?q=ALI", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeData[PaginatedResponse[UserSummary]](t, w)
	require.Len(t, page.Items, 1, "the caller is never listed")
	assert.Equal(t, "alicia", page.Items[0].Username)

	w = env.do(t, http.MethodGet, "/api/users", alice.Token, nil)
	page = decodeData[PaginatedResponse[UserSummary]](t, w)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "alicia", page.Items[0].Username)
	assert.Equal(t, "bob", page.Items[1].Username)

	w = env.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateMe(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")

	w := env.do(t, http.MethodPut, "/api/users/me", reader.Token, gin.H{
		"displayName":    "  Avid Reader ",
		"bio":            "Mostly sci-fi.",
		"favoriteGenres": []string{"Science Fiction", " science fiction", "Mystery"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decodeData[PrivateUserResponse](t, w)
	assert.Equal(t, "Avid Reader", me.DisplayName)
	assert.Equal(t, []string{"science fiction", "mystery"}, me.FavoriteGenres)

	// Omitted fields are left alone.
	w = env.do(t, http.MethodPut, "/api/users/me", reader.Token, gin.H{"bio": ""})
	require.Equal(t, http.StatusOK, w.Code)
	me = decodeData[PrivateUserResponse](t, w)
	assert.Equal(t, "Avid Reader", me.DisplayName)
	assert.Empty(t, me.Bio)

	w = env.do(t, http.MethodPut, "/api/users/me", reader.Token, gin.H{"avatarUrl": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/users/me", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"science fiction", "mystery"}, decodeData[PrivateUserResponse](t, w).FavoriteGenres)
}

func TestGetUserByID(t *testing.T) {
	env := setupTest(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	env.makeFriends(t, alice, bob)
	env.createClub(t, bob, gin.H{"name": "Bob's Books"})

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), carol.Token, nil).Code)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	profile := decodeData[PublicUserResponse](t, w)
	assert.Equal(t, "bob", profile.Username)
	assert.Equal(t, int64(1), profile.FriendsCount, "pending requests are not counted")
	assert.Equal(t, int64(1), profile.ClubsCount)
	require.NotNil(t, profile.Friendship)
	assert.Equal(t, models.StatusAccepted, profile.Friendship.Status)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), carol.Token, nil)
	profile = decodeData[PublicUserResponse](t, w)
	require.NotNil(t, profile.Friendship)
	assert.Equal(t, models.StatusPending, profile.Friendship.Status)
	assert.Equal(t, "outgoing", profile.Friendship.Direction)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", carol.ID), bob.Token, nil)
	assert.Equal(t, "incoming", decodeData[PublicUserResponse](t, w).Friendship.Direction)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", bob.ID), bob.Token, nil)
	assert.Nil(t, decodeData[PublicUserResponse](t, w).Friendship)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &raw))
	assert.NotContains(t, raw, "email", "public profiles never expose the email")

	w = env.do(t, http.MethodGet, "/api/users/9999", alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteMe(t *testing.T) {
	env := setupTest(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.makeFriends(t, alice, bob)
	sendDM(t, env, alice, bob, "bye soon")
	book := createBook(t, "Leaving", 100)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, fmt.Sprintf("/api/books/%d/ratings", book.ID), alice.Token, gin.H{"score": 3}).Code)

	solo := env.createClub(t, alice, gin.H{"name": "Solo Club"})
	shared := env.createClub(t, alice, gin.H{"name": "Shared Club"})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, clubPath(shared.ID, "/join"), bob.Token, nil).Code)

	client := hub.NewClient()
	hub.GlobalHub.Subscribe(hub.ClubRoom(solo.ID), client)
	aliceShared, bobShared := hub.NewClient(), hub.NewClient()
	hub.GlobalHub.SubscribeUser(hub.ClubRoom(shared.ID), alice.ID, aliceShared)
	hub.GlobalHub.SubscribeUser(hub.ClubRoom(shared.ID), bob.ID, bobShared)
	defer hub.GlobalHub.Unsubscribe(hub.ClubRoom(shared.ID), bobShared)

	w := env.do(t, http.MethodDelete, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for range aliceShared {
	}
	assert.Equal(t, 1, hub.GlobalHub.RoomSize(hub.ClubRoom(shared.ID)), "only bob stays in the surviving club room")

	var event hub.Event
	require.NoError(t, json.Unmarshal(<-client, &event))
	assert.Equal(t, hub.EventClubDeleted, event.Type)

	w = env.do(t, http.MethodGet, "/api/auth/me", alice.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var count int64
	database.DB.Model(&models.Club{}).Where("id = ?", solo.ID).Count(&count)
	assert.Zero(t, count, "clubs left empty are deleted")

	var club models.Club
	require.NoError(t, database.DB.First(&club, shared.ID).Error)
	assert.Equal(t, bob.ID, club.OwnerID)

	database.DB.Model(&models.Friendship{}).Count(&count)
	assert.Zero(t, count)
	database.DB.Model(&models.Rating{}).Count(&count)
	assert.Zero(t, count)
	database.DB.Unscoped().Model(&models.Message{}).Where("club_id IS NULL").Count(&count)
	assert.Zero(t, count)

	// The username is free again.
	env.register(t, "alice")
}
