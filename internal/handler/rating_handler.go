package handler

import (
	"errors"
	"net/http"
	"strings"

	"readinghub/backend/internal/database"
	"readinghub/backend/internal/events"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RatingInput defines the structure for rating a book.
type RatingInput struct {
	Score  int    `json:"score" binding:"required,min=1,max=5" example:"4"`
	Review string `json:"review" binding:"max=5000" example:"Slow start, great finish."`
}

// ListBookRatings godoc
// @Summary      List a book's ratings
// @Description  Lists ratings of a local book, most recently updated first.
// @Tags         ratings
// @Produce      json
// @Param        id    path  int true  "Book ID"
// @Param        page  query int false "Page number" default(1)
// @Param        limit query int false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[RatingResponse]}
// @Failure      404 {object} response.ErrorResponse
// @Router       /books/{id}/ratings [get]
func ListBookRatings(c *gin.Context) {
	book, ok := loadBook(c)
	if !ok {
		return
	}

	p := parsePagination(c)
	ratings, total, err := Paginate[models.Rating](database.DB.Where("book_id = ?", book.ID), p, "updated_at DESC, id DESC", "User")
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(mapSlice(ratings, newRatingResponse), total, p))
}

// UpsertRating godoc
// @Summary      Rate a book
// @Description  Creates or replaces the caller's rating of a book.
// @Tags         ratings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Book ID"
// @Param        input body RatingInput true "Rating"
// @Success      200 {object} response.Envelope{data=RatingResponse} "Rating updated"
// @Success      201 {object} response.Envelope{data=RatingResponse} "Rating created"
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /books/{id}/ratings [put]
func UpsertRating(c *gin.Context) {
	userID := currentUserID(c)
	book, ok := loadBook(c)
	if !ok {
		return
	}

	var input RatingInput
	if !bindJSON(c, &input) {
		return
	}

	status := http.StatusOK
	var rating models.Rating
	err := database.DB.Where("user_id = ? AND book_id = ?", userID, book.ID).First(&rating).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusCreated
		rating = models.Rating{UserID: userID, BookID: book.ID}
	case err != nil:
		_ = c.Error(err)
		return
	}

	rating.Score = input.Score
	rating.Review = strings.TrimSpace(input.Review)
	if err := database.DB.Save(&rating).Error; err != nil {
		_ = c.Error(err)
		return
	}
	rating.Book = *book

	events.Emit(c.Request.Context(), events.RatingUpserted, gin.H{"ratingId": rating.ID, "bookId": book.ID, "userId": userID, "score": rating.Score})
	response.JSON(c, status, newRatingResponse(rating))
}

// DeleteRating godoc
// @Summary      Delete own rating
// @Description  Removes the caller's rating of a book.
// @Tags         ratings
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Book ID"
// @Success      200 {object} response.Envelope
// @Failure      404 {object} response.ErrorResponse "No rating to delete"
// @Router       /books/{id}/ratings [delete]
func DeleteRating(c *gin.Context) {
	bookID, ok := parseID(c, "id", "book ID")
	if !ok {
		return
	}

	result := database.DB.Where("user_id = ? AND book_id = ?", currentUserID(c), bookID).Delete(&models.Rating{})
	if result.Error != nil {
		_ = c.Error(result.Error)
		return
	}
	if result.RowsAffected == 0 {
		respondError(c, http.StatusNotFound, "You have not rated this book")
		return
	}
	response.Message(c, http.StatusOK, "Rating deleted")
}
