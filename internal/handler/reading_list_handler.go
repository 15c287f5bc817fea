package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReadingListInput places a book on a shelf.
type ReadingListInput struct {
	Shelf       models.Shelf `json:"shelf" binding:"required,oneof=wishlist reading read" example:"reading"`
	CurrentPage *int         `json:"currentPage" binding:"omitempty,min=0" example:"42"`
}

// ProgressInput records how far the caller has read.
type ProgressInput struct {
	CurrentPage *int `json:"currentPage" binding:"required,min=0" example:"120"`
}

// ReadingStatsResponse summarizes the caller's reading list.
type ReadingStatsResponse struct {
	Wishlist         int64 `json:"wishlist"`
	Reading          int64 `json:"reading"`
	Read             int64 `json:"read"`
	Total            int64 `json:"total"`
	PagesRead        int64 `json:"pagesRead"`
	FinishedThisYear int64 `json:"finishedThisYear"`
	RatingsGiven     int64 `json:"ratingsGiven"`
}

func checkPage(c *gin.Context, page int, book models.Book) bool {
	if book.PageCount > 0 && page > book.PageCount {
		respondError(c, http.StatusBadRequest, fmt.Sprintf("currentPage cannot exceed the book's %d pages", book.PageCount))
		return false
	}
	return true
}

// loadEntry finds the caller's entry for the :bookId parameter.
func loadEntry(c *gin.Context) (*models.ReadingListEntry, bool) {
	bookID, ok := parseID(c, "bookId", "book ID")
	if !ok {
		return nil, false
	}
	var entry models.ReadingListEntry
	if err := database.DB.Preload("Book").
		Where("user_id = ? AND book_id = ?", currentUserID(c), bookID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Book is not on your reading list")
			return nil, false
		}
		_ = c.Error(err)
		return nil, false
	}
	return &entry, true
}

// GetReadingList godoc
// @Summary      Get own reading list
// @Description  Lists the books on the caller's reading list, optionally for one shelf.
// @Tags         reading-list
// @Produce      json
// @Security     BearerAuth
// @Param        shelf query string false "wishlist, reading or read"
// @Success      200 {object} response.Envelope{data=[]ReadingListEntryResponse}
// @Failure      400 {object} response.ErrorResponse
// @Router       /users/me/reading-list [get]
func GetReadingList(c *gin.Context) {
	query := database.DB.Preload("Book").Where("user_id = ?", currentUserID(c))
	if s := c.Query("shelf"); s != "" {
		shelf := models.Shelf(s)
		if !shelf.IsValid() {
			respondError(c, http.StatusBadRequest, "Invalid shelf")
			return
		}
		query = query.Where("shelf = ?", shelf)
	}

	var entries []models.ReadingListEntry
	if err := query.Order("updated_at DESC").Find(&entries).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, mapSlice(entries, newReadingListEntryResponse))
}

// UpsertReadingListEntry godoc
// @Summary      Shelve a book
// @Description  Adds a local book to a shelf or moves it. Moving to reading stamps the start date;
// @Description  moving to read stamps the finish date and completes the page count.
// @Tags         reading-list
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookId path int              true "Book ID"
// @Param        input  body ReadingListInput true "Shelf"
// @Success      200 {object} response.Envelope{data=ReadingListEntryResponse}
// @Success      201 {object} response.Envelope{data=ReadingListEntryResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Book not found"
// @Router       /users/me/reading-list/{bookId} [put]
func UpsertReadingListEntry(c *gin.Context) {
	userID := currentUserID(c)
	bookID, ok := parseID(c, "bookId", "book ID")
	if !ok {
		return
	}

	var input ReadingListInput
	if !bindJSON(c, &input) {
		return
	}

	var book models.Book
	if err := database.DB.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Book not found")
			return
		}
		_ = c.Error(err)
		return
	}
	if input.CurrentPage != nil && !checkPage(c, *input.CurrentPage, book) {
		return
	}

	status := http.StatusOK
	var entry models.ReadingListEntry
	err := database.DB.Where("user_id = ? AND book_id = ?", userID, book.ID).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusCreated
		entry = models.ReadingListEntry{UserID: userID, BookID: book.ID}
	case err != nil:
		_ = c.Error(err)
		return
	}

	if input.CurrentPage != nil {
		entry.CurrentPage = *input.CurrentPage
	}
	entry.MoveTo(input.Shelf, book.PageCount, time.Now())

	if err := database.DB.Save(&entry).Error; err != nil {
		_ = c.Error(err)
		return
	}
	entry.Book = book
	response.JSON(c, status, newReadingListEntryResponse(entry))
}

// UpdateReadingProgress godoc
// @Summary      Update reading progress
// @Description  Records the current page. Reaching the last page moves the book to read.
// @Tags         reading-list
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookId path int           true "Book ID"
// @Param        input  body ProgressInput true "Progress"
// @Success      200 {object} response.Envelope{data=ReadingListEntryResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse "Book is not on the reading list"
// @Router       /users/me/reading-list/{bookId}/progress [patch]
func UpdateReadingProgress(c *gin.Context) {
	entry, ok := loadEntry(c)
	if !ok {
		return
	}

	var input ProgressInput
	if !bindJSON(c, &input) {
		return
	}
	if !checkPage(c, *input.CurrentPage, entry.Book) {
		return
	}

	entry.SetProgress(*input.CurrentPage, entry.Book.PageCount, time.Now())
	if err := database.DB.Omit("Book").Save(entry).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, newReadingListEntryResponse(*entry))
}

// DeleteReadingListEntry godoc
// @Summary      Remove a book from the reading list
// @Tags         reading-list
// @Produce      json
// @Security     BearerAuth
// @Param        bookId path int true "Book ID"
// @Success      200 {object} response.Envelope
// @Failure      404 {object} response.ErrorResponse
// @Router       /users/me/reading-list/{bookId} [delete]
func DeleteReadingListEntry(c *gin.Context) {
	entry, ok := loadEntry(c)
	if !ok {
		return
	}
	if err := database.DB.Delete(&models.ReadingListEntry{}, entry.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.Message(c, http.StatusOK, "Removed from reading list")
}

// GetReadingStats godoc
// @Summary      Get reading statistics
// @Description  Counts books per shelf, pages read and books finished this year.
// @Tags         reading-list
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Envelope{data=ReadingStatsResponse}
// @Router       /users/me/reading-stats [get]
func GetReadingStats(c *gin.Context) {
	userID := currentUserID(c)

	var rows []struct {
		Shelf models.Shelf
		Count int64
		Pages int64
	}
	if err := database.DB.Model(&models.ReadingListEntry{}).
		Select("shelf, COUNT(*) AS count, COALESCE(SUM(current_page), 0) AS pages").
		Where("user_id = ?", userID).
		Group("shelf").
		Scan(&rows).Error; err != nil {
		_ = c.Error(err)
		return
	}

	var stats ReadingStatsResponse
	for _, r := range rows {
		switch r.Shelf {
		case models.ShelfWishlist:
			stats.Wishlist = r.Count
		case models.ShelfReading:
			stats.Reading = r.Count
		case models.ShelfRead:
			stats.Read = r.Count
		}
		if r.Shelf != models.ShelfWishlist {
			stats.PagesRead += r.Pages
		}
		stats.Total += r.Count
	}

	now := time.Now()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	if err := database.DB.Model(&models.ReadingListEntry{}).
		Where("user_id = ? AND shelf = ? AND finished_at >= ?", userID, models.ShelfRead, yearStart).
		Count(&stats.FinishedThisYear).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if err := database.DB.Model(&models.Rating{}).Where("user_id = ?", userID).Count(&stats.RatingsGiven).Error; err != nil {
		_ = c.Error(err)
		return
	}

	response.JSON(c, http.StatusOK, stats)
}
