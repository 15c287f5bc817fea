package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"readinghub/backend/internal/catalog"
	"readinghub/backend/internal/config"
	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/hub"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type fakeCatalog struct {
	books     map[string]catalog.Book
	searchErr error
	queries   []string
	refreshed []string
}

func (f *fakeCatalog) Search(_ context.Context, query string, startIndex, maxResults int) (*catalog.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	ids := make([]string, 0, len(f.books))
	for id := range f.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := []catalog.Book{}
	for i, id := range ids {
		if i >= startIndex && len(items) < maxResults {
			items = append(items, f.books[id])
		}
	}
	return &catalog.SearchResult{TotalItems: len(ids), Items: items}, nil
}

func (f *fakeCatalog) Volume(_ context.Context, id string) (*catalog.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, fmt.Errorf("catalog.Volume: %w", catalog.ErrNotFound)
	}
	return &b, nil
}

func (f *fakeCatalog) RefreshVolume(ctx context.Context, id string) (*catalog.Book, error) {
	f.refreshed = append(f.refreshed, id)
	return f.Volume(ctx, id)
}

type testEnv struct {
	router    *gin.Engine
	catalog   *fakeCatalog
	publisher *recordingPublisher
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config.AppConfig = &config.Config{
		JWTSecret:   "handler-test-secret",
		JWTTTL:      time.Hour,
		CORSOrigins: "http://localhost:3000",
	}

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", dbSeq.Add(1))
	require.NoError(t, database.Open(sqlite.Open(dsn)))
	t.Cleanup(func() { _ = database.Close() })

	hub.GlobalHub = hub.NewHub()

	fc := &fakeCatalog{books: map[string]catalog.Book{
		"vol-dune": {GoogleID: "vol-dune", Title: "Dune", Authors: []string{"Frank Herbert"}, PageCount: 412, Categories: []string{"Fiction"}},
		"vol-emma": {GoogleID: "vol-emma", Title: "Emma", Authors: []string{"Jane Austen"}, PageCount: 474, Categories: []string{"Fiction"}},
	}}
	Catalog = fc
	t.Cleanup(func() { Catalog = nil })

	pub := &recordingPublisher{}
	events.SetPublisher(pub)
	t.Cleanup(func() { events.SetPublisher(nil) })

	r := gin.New()
	r.Use(ErrorHandler())
	RegisterRoutes(r, RouteOptions{})

	return &testEnv{router: r, catalog: fc, publisher: pub}
}

type envelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Message string                `json:"message"`
	Errors  []response.FieldError `json:"errors"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	env := decode(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

type testUser struct {
	ID    uint
	Token string
}

func (e *testEnv) register(t *testing.T, username string) testUser {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    strings.ToLower(username) + "@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	auth := decodeData[AuthResponse](t, w)
	return testUser{ID: auth.User.ID, Token: auth.Token}
}

func (e *testEnv) registerAdmin(t *testing.T, username string) testUser {
	t.Helper()
	u := e.register(t, username)
	require.NoError(t, database.DB.Model(&models.User{}).Where("id = ?", u.ID).Update("role", models.RoleAdmin).Error)
	return u
}

func (e *testEnv) makeFriends(t *testing.T, a, b testUser) {
	t.Helper()
	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", b.ID), a.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d/accept", a.ID), b.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (e *testEnv) createClub(t *testing.T, owner testUser, body gin.H) ClubResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/clubs", owner.Token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeData[ClubResponse](t, w)
}

func createBook(t *testing.T, title string, pages int) models.Book {
	t.Helper()
	book := models.Book{Title: title, Authors: []string{"Anon"}, PageCount: pages}
	require.NoError(t, database.DB.Create(&book).Error)
	return book
}

func TestRegisterUser(t *testing.T) {
	env := setupTest(t)

	t.Run("creates user and returns token", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"username":    "alice",
			"email":       "Alice@Example.com",
			"password":    "password123",
			"displayName": "Alice",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		auth := decodeData[AuthResponse](t, w)
		assert.NotEmpty(t, auth.Token)
		assert.Equal(t, "alice", auth.User.Username)
		assert.Equal(t, "alice@example.com", auth.User.Email)
		assert.Equal(t, models.RoleUser, auth.User.Role)
		assert.Equal(t, []string{events.UserRegistered}, env.publisher.Keys())

		var stored models.User
		require.NoError(t, database.DB.First(&stored, auth.User.ID).Error)
		assert.NotEqual(t, "password123", stored.PasswordHash)
	})

	t.Run("duplicate username", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"username": "ALICE", "email": "other@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.False(t, decode(t, w).Success)
	})

	t.Run("duplicate email", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"username": "alice2", "email": "alice@example.com", "password": "password123",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("validation errors name fields", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
			"username": "al", "email": "not-an-email", "password": "short",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		resp := decode(t, w)
		fields := map[string]string{}
		for _, fe := range resp.Errors {
			fields[fe.Field] = fe.Message
		}
		assert.Equal(t, "must be at least 3 characters", fields["username"])
		assert.Equal(t, "must be a valid email address", fields["email"])
		assert.Equal(t, "must be at least 8 characters", fields["password"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/register", "", `{"username":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decode(t, w).Message)
	})
}

func TestLoginUser(t *testing.T) {
	env := setupTest(t)
	env.register(t, "bob")

	t.Run("by username", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "bob", "password": "password123"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		auth := decodeData[AuthResponse](t, w)
		assert.NotEmpty(t, auth.Token)
		assert.NotNil(t, auth.User.LastSeenAt)
	})

	t.Run("by email, any case", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "BOB@example.com", "password": "password123"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("username ignores case", func(t *testing.T) {
		env.register(t, "Dana")
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "dana", "password": "password123"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "Dana", decodeData[AuthResponse](t, w).User.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "bob", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decode(t, w).Message)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "nobody", "password": "password123"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decode(t, w).Message)
	})
}

func TestMeRefreshAndPassword(t *testing.T) {
	env := setupTest(t)
	carol := env.register(t, "carol")

	w := env.do(t, http.MethodGet, "/api/auth/me", carol.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", decodeData[PrivateUserResponse](t, w).Username)

	w = env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/refresh", carol.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeData[map[string]string](t, w)["token"])

	w = env.do(t, http.MethodPut, "/api/auth/password", carol.Token, gin.H{"currentPassword": "nope-nope", "newPassword": "new-password-1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPut, "/api/auth/password", carol.Token, gin.H{"currentPassword": "password123", "newPassword": "new-password-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "carol", "password": "new-password-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"login": "carol", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
