package handler

import (
	"fmt"
	"net/http"
	"testing"

	"readinghub/backend/internal/catalog"
	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importBook(t *testing.T, env *testEnv, user testUser, googleID string) BookResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/books/import/"+googleID, user.Token, nil)
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, w.Code, w.Body.String())
	return decodeData[BookResponse](t, w)
}

func TestSearchCatalog(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodGet, "/api/books/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/books/search?q=dune&limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodeData[PaginatedResponse[catalog.Book]](t, w)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Meta.TotalItems)
	assert.Equal(t, 2, page.Meta.TotalPages)
	assert.Equal(t, []string{"dune"}, env.catalog.queries)

	t.Run("upstream failure", func(t *testing.T) {
		env.catalog.searchErr = fmt.Errorf("catalog.Search: %w", catalog.ErrUpstream)
		defer func() { env.catalog.searchErr = nil }()

		w := env.do(t, http.MethodGet, "/api/books/search?q=dune", "", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("catalog not configured", func(t *testing.T) {
		Catalog = nil
		defer func() { Catalog = env.catalog }()

		w := env.do(t, http.MethodGet, "/api/books/search?q=dune", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCatalogVolumeAndImport(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")

	w := env.do(t, http.MethodGet, "/api/books/catalog/vol-emma", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Emma", decodeData[catalog.Book](t, w).Title)

	w = env.do(t, http.MethodGet, "/api/books/catalog/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/books/import/vol-dune", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/books/import/vol-dune", reader.Token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decodeData[BookResponse](t, w)
	assert.Equal(t, "vol-dune", first.GoogleID)
	assert.Equal(t, 412, first.PageCount)

	// The catalog changed; importing again refreshes the same row.
	dune := env.catalog.books["vol-dune"]
	dune.PageCount = 896
	env.catalog.books["vol-dune"] = dune

	w = env.do(t, http.MethodPost, "/api/books/import/vol-dune", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeData[BookResponse](t, w)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 896, second.PageCount)

	var count int64
	database.DB.Model(&models.Book{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, []string{"vol-dune", "vol-dune"}, env.catalog.refreshed, "imports skip the catalog cache")
}

func TestBookLibrary(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")
	admin := env.registerAdmin(t, "librarian")

	body := gin.H{"title": "Kindred", "authors": []string{"Octavia E. Butler"}, "pageCount": 264}

	w := env.do(t, http.MethodPost, "/api/books", reader.Token, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/books", admin.Token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	book := decodeData[BookResponse](t, w)
	assert.Equal(t, "Kindred", book.Title)
	assert.Empty(t, book.GoogleID)

	w = env.do(t, http.MethodPost, "/api/books", admin.Token, gin.H{"pageCount": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	createBook(t, "Beloved", 324)

	w = env.do(t, http.MethodGet, "/api/books?q=butler", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decodeData[PaginatedResponse[BookResponse]](t, w)
	require.Len(t, found.Items, 1)
	assert.Equal(t, book.ID, found.Items[0].ID)

	w = env.do(t, http.MethodGet, "/api/books", "", nil)
	all := decodeData[PaginatedResponse[BookResponse]](t, w)
	require.Len(t, all.Items, 2)
	assert.Equal(t, "Beloved", all.Items[0].Title, "ordered by title")

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/books/%d", book.ID), admin.Token, gin.H{"title": "Kindred (Anniversary)", "pageCount": 300})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeData[BookResponse](t, w)
	assert.Equal(t, 300, updated.PageCount)
	assert.Empty(t, updated.Authors, "PUT replaces the whole record")

	w = env.do(t, http.MethodGet, "/api/books/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d", book.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", book.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteBook_ClearsReferences(t *testing.T) {
	env := setupTest(t)
	owner := env.register(t, "owner")
	admin := env.registerAdmin(t, "librarian")
	book := createBook(t, "Piranesi", 272)

	club := env.createClub(t, owner, gin.H{"name": "Halls"})
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, clubPath(club.ID, "/current-book"), owner.Token, gin.H{"bookId": book.ID}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, fmt.Sprintf("/api/books/%d/ratings", book.ID), owner.Token, gin.H{"score": 5}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, fmt.Sprintf("/api/users/me/reading-list/%d", book.ID), owner.Token, gin.H{"shelf": "reading"}).Code)

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/books/%d", book.ID), admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Club
	require.NoError(t, database.DB.First(&stored, club.ID).Error)
	assert.Nil(t, stored.CurrentBookID)

	var ratings, entries int64
	database.DB.Model(&models.Rating{}).Count(&ratings)
	database.DB.Model(&models.ReadingListEntry{}).Count(&entries)
	assert.Zero(t, ratings)
	assert.Zero(t, entries)
}

func TestRatings(t *testing.T) {
	env := setupTest(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	book := createBook(t, "Middlemarch", 880)
	ratingsPath := fmt.Sprintf("/api/books/%d/ratings", book.ID)

	w := env.do(t, http.MethodPut, ratingsPath, alice.Token, gin.H{"score": 4, "review": "  Long but worth it.  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rating := decodeData[RatingResponse](t, w)
	assert.Equal(t, "Long but worth it.", rating.Review)
	require.NotNil(t, rating.Book)
	assert.Equal(t, "Middlemarch", rating.Book.Title)
	assert.Contains(t, env.publisher.Keys(), events.RatingUpserted)

	w = env.do(t, http.MethodPut, ratingsPath, alice.Token, gin.H{"score": 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rating.ID, decodeData[RatingResponse](t, w).ID, "one rating per user and book")

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, ratingsPath, bob.Token, gin.H{"score": 2}).Code)

	for _, score := range []int{0, 6} {
		w = env.do(t, http.MethodPut, ratingsPath, bob.Token, gin.H{"score": score})
		assert.Equal(t, http.StatusBadRequest, w.Code, "score %d", score)
	}

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/books/%d", book.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[BookResponse](t, w)
	assert.Equal(t, 3.5, resp.AverageRating)
	assert.Equal(t, int64(2), resp.RatingsCount)

	w = env.do(t, http.MethodGet, ratingsPath, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeData[PaginatedResponse[RatingResponse]](t, w)
	require.Len(t, list.Items, 2)
	require.NotNil(t, list.Items[0].User)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/ratings", alice.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decodeData[PaginatedResponse[RatingResponse]](t, w)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, 5, mine.Items[0].Score)

	w = env.do(t, http.MethodDelete, ratingsPath, bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, ratingsPath, bob.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, "/api/books/9999/ratings", bob.Token, gin.H{"score": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecommendations(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")

	dune := importBook(t, env, reader, "vol-dune")
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, fmt.Sprintf("/api/users/me/reading-list/%d", dune.ID), reader.Token, gin.H{"shelf": "read"}).Code)

	w := env.do(t, http.MethodGet, "/api/books/recommendations", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	recs := decodeData[RecommendationsResponse](t, w)
	assert.Equal(t, "fiction", recs.Category)
	require.Len(t, recs.Items, 1, "books already on the reading list are skipped")
	assert.Equal(t, "vol-emma", recs.Items[0].GoogleID)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/users/me", reader.Token, gin.H{"favoriteGenres": []string{"Fantasy", "fantasy", "Horror"}}).Code)
	w = env.do(t, http.MethodGet, "/api/books/recommendations", reader.Token, nil)
	assert.Equal(t, "fantasy", decodeData[RecommendationsResponse](t, w).Category)

	w = env.do(t, http.MethodGet, "/api/books/recommendations?category=poetry", reader.Token, nil)
	assert.Equal(t, "poetry", decodeData[RecommendationsResponse](t, w).Category)

	assert.Equal(t, []string{"subject:fiction", "subject:fantasy", "subject:poetry"}, env.catalog.queries)
}
