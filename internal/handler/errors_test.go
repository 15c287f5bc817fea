package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"readinghub/backend/internal/catalog"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"api error", NewAPIError(http.StatusConflict, "Club is full"), http.StatusConflict, "Club is full"},
		{"wrapped api error", fmt.Errorf("join: %w", NewAPIError(http.StatusForbidden, "nope")), http.StatusForbidden, "nope"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "Resource not found"},
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), http.StatusConflict, "Resource already exists"},
		{"expired token", fmt.Errorf("jwt.ParseToken: %w", jwt.ErrTokenExpired), http.StatusUnauthorized, "Token expired"},
		{"malformed token", jwt.ErrTokenMalformed, http.StatusUnauthorized, "Invalid token"},
		{"catalog down", fmt.Errorf("catalog.Search: %w", catalog.ErrUpstream), http.StatusBadGateway, "Book catalog is unavailable"},
		{"catalog miss", catalog.ErrNotFound, http.StatusNotFound, "Book not found in catalog"},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler())
			r.GET("/", func(c *gin.Context) { _ = c.Error(tt.err) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"success":false,"data":null,"message":%q}`, tt.message), w.Body.String())
		})
	}
}

func TestErrorHandler_LeavesWrittenResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.JSON(http.StatusAccepted, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Page: 1, Limit: defaultPageSize}},
		{"page=3&limit=5", Pagination{Page: 3, Limit: 5}},
		{"page=0&limit=-1", Pagination{Page: 1, Limit: defaultPageSize}},
		{"page=abc&limit=xyz", Pagination{Page: 1, Limit: defaultPageSize}},
		{"limit=1000", Pagination{Page: 1, Limit: maxPageSize}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			assert.Equal(t, tt.want, parsePagination(c))
		})
	}
}

func TestNewPaginatedResponse(t *testing.T) {
	resp := NewPaginatedResponse([]int{1, 2}, 45, Pagination{Page: 2, Limit: 20})
	assert.Equal(t, PaginationMeta{TotalItems: 45, TotalPages: 3, CurrentPage: 2, PageSize: 20}, resp.Meta)

	empty := NewPaginatedResponse[string](nil, 0, Pagination{Page: 1, Limit: 20})
	require.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}
