package handler

import (
	"fmt"
	"net/http"
	"testing"

	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readingListPath(bookID uint, suffix string) string {
	return fmt.Sprintf("/api/users/me/reading-list/%d%s", bookID, suffix)
}

func TestReadingList(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")
	book := createBook(t, "Hyperion", 400)

	w := env.do(t, http.MethodPut, readingListPath(book.ID, ""), reader.Token, gin.H{"shelf": "wishlist"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decodeData[ReadingListEntryResponse](t, w)
	assert.Equal(t, models.ShelfWishlist, entry.Shelf)
	assert.Nil(t, entry.StartedAt)

	w = env.do(t, http.MethodPut, readingListPath(book.ID, ""), reader.Token, gin.H{"shelf": "reading", "currentPage": 100})
	require.Equal(t, http.StatusOK, w.Code)
	entry = decodeData[ReadingListEntryResponse](t, w)
	assert.Equal(t, models.ShelfReading, entry.Shelf)
	assert.NotNil(t, entry.StartedAt)
	assert.Equal(t, 25.0, entry.Progress)

	t.Run("validation", func(t *testing.T) {
		w := env.do(t, http.MethodPut, readingListPath(book.ID, ""), reader.Token, gin.H{"shelf": "someday"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(t, http.MethodPut, readingListPath(book.ID, ""), reader.Token, gin.H{"shelf": "reading", "currentPage": 401})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(t, http.MethodPut, readingListPath(9999, ""), reader.Token, gin.H{"shelf": "reading"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = env.do(t, http.MethodPatch, readingListPath(book.ID, "/progress"), reader.Token, gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = env.do(t, http.MethodGet, "/api/users/me/reading-list?shelf=someday", reader.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = env.do(t, http.MethodPatch, readingListPath(book.ID, "/progress"), reader.Token, gin.H{"currentPage": 400})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entry = decodeData[ReadingListEntryResponse](t, w)
	assert.Equal(t, models.ShelfRead, entry.Shelf, "reaching the last page finishes the book")
	assert.NotNil(t, entry.FinishedAt)
	assert.Equal(t, 100.0, entry.Progress)

	other := createBook(t, "Solaris", 0)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, readingListPath(other.ID, ""), reader.Token, gin.H{"shelf": "wishlist"}).Code)

	w = env.do(t, http.MethodGet, "/api/users/me/reading-list", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeData[[]ReadingListEntryResponse](t, w), 2)

	w = env.do(t, http.MethodGet, "/api/users/me/reading-list?shelf=read", reader.Token, nil)
	read := decodeData[[]ReadingListEntryResponse](t, w)
	require.Len(t, read, 1)
	assert.Equal(t, "Hyperion", read[0].Book.Title)

	w = env.do(t, http.MethodDelete, readingListPath(other.ID, ""), reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, readingListPath(other.ID, ""), reader.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodPatch, readingListPath(other.ID, "/progress"), reader.Token, gin.H{"currentPage": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadingProgress_StartsReading(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")
	book := createBook(t, "Annihilation", 195)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, readingListPath(book.ID, ""), reader.Token, gin.H{"shelf": "wishlist"}).Code)

	w := env.do(t, http.MethodPatch, readingListPath(book.ID, "/progress"), reader.Token, gin.H{"currentPage": 20})
	require.Equal(t, http.StatusOK, w.Code)
	entry := decodeData[ReadingListEntryResponse](t, w)
	assert.Equal(t, models.ShelfReading, entry.Shelf)
	assert.Equal(t, 20, entry.CurrentPage)

	w = env.do(t, http.MethodPatch, readingListPath(book.ID, "/progress"), reader.Token, gin.H{"currentPage": 196})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadingStats(t *testing.T) {
	env := setupTest(t)
	reader := env.register(t, "reader")

	finished := createBook(t, "Blindsight", 384)
	current := createBook(t, "Echopraxia", 400)
	wanted := createBook(t, "Starfish", 352)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, readingListPath(finished.ID, ""), reader.Token, gin.H{"shelf": "read"}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, readingListPath(current.ID, ""), reader.Token, gin.H{"shelf": "reading", "currentPage": 50}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, readingListPath(wanted.ID, ""), reader.Token, gin.H{"shelf": "wishlist", "currentPage": 10}).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPut, fmt.Sprintf("/api/books/%d/ratings", finished.ID), reader.Token, gin.H{"score": 5}).Code)

	w := env.do(t, http.MethodGet, "/api/users/me/reading-stats", reader.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ReadingStatsResponse{
		Wishlist:         1,
		Reading:          1,
		Read:             1,
		Total:            3,
		PagesRead:        384 + 50,
		FinishedThisYear: 1,
		RatingsGiven:     1,
	}, decodeData[ReadingStatsResponse](t, w))
}
