package handler

import (
	"fmt"
	"net/http"
	"testing"

	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")

	for _, path := range []string{"/api/admin/users", "/api/admin/stats"} {
		w := env.do(t, http.MethodGet, path, reader.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		w = env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestAdminUsers(t *testing.T) {
	env := setupTest(t)
	admin := env.registerAdmin(t, "root")
	reader := env.register(t, "reader")

	w := env.do(t, http.MethodGet, "/api/admin/users?q=READER", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodeData[PaginatedResponse[PrivateUserResponse]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "reader@example.com", page.Items[0].Email)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", reader.ID), admin.Token, gin.H{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, decodeData[PrivateUserResponse](t, w).Role)

	// The promotion applies to existing tokens.
	w = env.do(t, http.MethodGet, "/api/admin/stats", reader.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", admin.ID), admin.Token, gin.H{"role": "user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/users/%d/role", reader.ID), admin.Token, gin.H{"role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/users/9999/role", admin.Token, gin.H{"role": "user"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStats(t *testing.T) {
	env := setupTest(t)
	admin := env.registerAdmin(t, "root")
	reader := env.register(t, "reader")
	env.makeFriends(t, admin, reader)
	sendDM(t, env, reader, admin, "hello admin")
	createBook(t, "Stats for Dummies", 10)
	env.createClub(t, reader, gin.H{"name": "Numbers"})

	client := hub.NewClient()
	hub.GlobalHub.Subscribe(hub.UserRoom(admin.ID), client)
	defer hub.GlobalHub.Unsubscribe(hub.UserRoom(admin.ID), client)

	w := env.do(t, http.MethodGet, "/api/admin/stats", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatsResponse{
		Users:            2,
		Books:            1,
		Clubs:            1,
		Messages:         1,
		Ratings:          0,
		ConnectedClients: 1,
	}, decodeData[StatsResponse](t, w))
}
