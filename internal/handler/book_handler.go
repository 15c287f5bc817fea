package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"readinghub/backend/internal/catalog"
	"readinghub/backend/internal/database"
	"readinghub/backend/internal/models"
	"readinghub/backend/internal/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CatalogService is the external book catalog.
type CatalogService interface {
	Search(ctx context.Context, query string, startIndex, maxResults int) (*catalog.SearchResult, error)
	Volume(ctx context.Context, id string) (*catalog.Book, error)
	RefreshVolume(ctx context.Context, id string) (*catalog.Book, error)
}

// Catalog is set at startup. Catalog endpoints answer 503 while it is nil.
var Catalog CatalogService

const (
	maxCatalogPageSize     = 40
	defaultRecommendations = 20
	fallbackGenre          = "fiction"
)

// BookInput defines the structure for creating or replacing a local book.
type BookInput struct {
	GoogleID      string   `json:"googleId" binding:"omitempty,max=64"`
	Title         string   `json:"title" binding:"required,min=1,max=500" example:"Kindred"`
	Authors       []string `json:"authors" binding:"omitempty,max=20,dive,min=1,max=255" example:"Octavia E. Butler"`
	Description   string   `json:"description" binding:"max=10000"`
	Publisher     string   `json:"publisher" binding:"max=255"`
	PublishedDate string   `json:"publishedDate" binding:"max=32" example:"1979"`
	PageCount     int      `json:"pageCount" binding:"min=0,max=100000" example:"264"`
	Categories    []string `json:"categories" binding:"omitempty,max=20,dive,min=1,max=100"`
	Thumbnail     string   `json:"thumbnail" binding:"omitempty,url,max=1024"`
	ISBN          string   `json:"isbn" binding:"max=32"`
	Language      string   `json:"language" binding:"max=16" example:"en"`
}

func (in BookInput) apply(b *models.Book) {
	b.Title = strings.TrimSpace(in.Title)
	b.Authors = in.Authors
	b.Description = in.Description
	b.Publisher = in.Publisher
	b.PublishedDate = in.PublishedDate
	b.PageCount = in.PageCount
	b.Categories = in.Categories
	b.ThumbnailURL = in.Thumbnail
	b.ISBN = in.ISBN
	b.Language = in.Language
	b.GoogleID = nil
	if id := strings.TrimSpace(in.GoogleID); id != "" {
		b.GoogleID = &id
	}
}

func bookFromCatalog(v *catalog.Book, b *models.Book) {
	id := v.GoogleID
	b.GoogleID = &id
	b.Title = v.Title
	b.Authors = v.Authors
	b.Description = v.Description
	b.Publisher = v.Publisher
	b.PublishedDate = v.PublishedDate
	b.PageCount = v.PageCount
	b.Categories = v.Categories
	b.ThumbnailURL = v.Thumbnail
	b.ISBN = v.ISBN
	b.Language = v.Language
}

func loadRatingAggregates(bookIDs []uint) (map[uint]ratingAggregate, error) {
	aggregates := make(map[uint]ratingAggregate, len(bookIDs))
	if len(bookIDs) == 0 {
		return aggregates, nil
	}

	var rows []ratingAggregate
	if err := database.DB.Model(&models.Rating{}).
		Select("book_id, AVG(score) AS average, COUNT(*) AS count").
		Where("book_id IN ?", bookIDs).
		Group("book_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		aggregates[r.BookID] = r
	}
	return aggregates, nil
}

func bookResponses(books []models.Book) ([]BookResponse, error) {
	ids := make([]uint, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	aggregates, err := loadRatingAggregates(ids)
	if err != nil {
		return nil, err
	}
	out := make([]BookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, newBookResponse(b, aggregates[b.ID]))
	}
	return out, nil
}

func bookResponse(b models.Book) (BookResponse, error) {
	out, err := bookResponses([]models.Book{b})
	if err != nil {
		return BookResponse{}, err
	}
	return out[0], nil
}

func requireCatalog(c *gin.Context) bool {
	if Catalog == nil {
		respondError(c, http.StatusServiceUnavailable, "Book catalog is not configured")
		return false
	}
	return true
}

// loadBook resolves the :id parameter to a local book.
func loadBook(c *gin.Context) (*models.Book, bool) {
	bookID, ok := parseID(c, "id", "book ID")
	if !ok {
		return nil, false
	}
	var book models.Book
	if err := database.DB.First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "Book not found")
			return nil, false
		}
		_ = c.Error(err)
		return nil, false
	}
	return &book, true
}

// SearchCatalog godoc
// @Summary      Search the book catalog
// @Description  Searches Google Books and returns reshaped volumes.
// @Tags         books
// @Produce      json
// @Param        q     query     string  true   "Search query"
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page (max 40)" default(20)
// @Success      200   {object}  response.Envelope{data=PaginatedResponse[catalog.Book]}
// @Failure      400   {object}  response.ErrorResponse
// @Failure      502   {object}  response.ErrorResponse "Catalog unavailable"
// @Router       /books/search [get]
func SearchCatalog(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}
	if !requireCatalog(c) {
		return
	}

	p := parsePagination(c)
	if p.Limit > maxCatalogPageSize {
		p.Limit = maxCatalogPageSize
	}

	result, err := Catalog.Search(c.Request.Context(), q, p.Offset(), p.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(result.Items, int64(result.TotalItems), p))
}

// RecommendationsResponse is a list of catalog suggestions for one category.
type RecommendationsResponse struct {
	Category string         `json:"category" example:"fantasy"`
	Items    []catalog.Book `json:"items"`
}

// GetRecommendations godoc
// @Summary      Get book recommendations
// @Description  Suggests catalog books for a category, defaulting to the caller's first favorite genre.
// @Description  Books already on the caller's reading list are left out.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        category query    string false "Category"
// @Param        limit    query    int    false "Number of suggestions (max 40)" default(20)
// @Success      200 {object} response.Envelope{data=RecommendationsResponse}
// @Failure      502 {object} response.ErrorResponse
// @Router       /books/recommendations [get]
func GetRecommendations(c *gin.Context) {
	userID := currentUserID(c)
	if !requireCatalog(c) {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecommendations)))
	if err != nil || limit < 1 {
		limit = defaultRecommendations
	}
	if limit > maxCatalogPageSize {
		limit = maxCatalogPageSize
	}

	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		var user models.User
		if err := database.DB.Select("id", "favorite_genres").First(&user, userID).Error; err != nil {
			_ = c.Error(err)
			return
		}
		category = fallbackGenre
		if len(user.FavoriteGenres) > 0 {
			category = user.FavoriteGenres[0]
		}
	}

	var shelved []string
	if err := database.DB.Model(&models.ReadingListEntry{}).
		Joins("JOIN books ON books.id = reading_list_entries.book_id").
		Where("reading_list_entries.user_id = ? AND books.google_id IS NOT NULL", userID).
		Pluck("books.google_id", &shelved).Error; err != nil {
		_ = c.Error(err)
		return
	}
	skip := make(map[string]bool, len(shelved))
	for _, id := range shelved {
		skip[id] = true
	}

	result, err := Catalog.Search(c.Request.Context(), "subject:"+category, 0, maxCatalogPageSize)
	if err != nil {
		_ = c.Error(err)
		return
	}

	items := make([]catalog.Book, 0, limit)
	for _, b := range result.Items {
		if skip[b.GoogleID] {
			continue
		}
		items = append(items, b)
		if len(items) == limit {
			break
		}
	}
	response.JSON(c, http.StatusOK, RecommendationsResponse{Category: category, Items: items})
}

// GetCatalogBook godoc
// @Summary      Get a catalog volume
// @Description  Fetches a single volume from Google Books.
// @Tags         books
// @Produce      json
// @Param        googleId path string true "Google Books volume ID"
// @Success      200 {object} response.Envelope{data=catalog.Book}
// @Failure      404 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /books/catalog/{googleId} [get]
func GetCatalogBook(c *gin.Context) {
	if !requireCatalog(c) {
		return
	}
	volume, err := Catalog.Volume(c.Request.Context(), c.Param("googleId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, volume)
}

// ImportBook godoc
// @Summary      Import a catalog volume
// @Description  Copies a Google Books volume into the local library, refreshing it if already imported.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        googleId path string true "Google Books volume ID"
// @Success      200 {object} response.Envelope{data=BookResponse} "Already imported; metadata refreshed"
// @Success      201 {object} response.Envelope{data=BookResponse}
// @Failure      404 {object} response.ErrorResponse
// @Failure      502 {object} response.ErrorResponse
// @Router       /books/import/{googleId} [post]
func ImportBook(c *gin.Context) {
	if !requireCatalog(c) {
		return
	}
	// Importing always pulls fresh catalog data.
	volume, err := Catalog.RefreshVolume(c.Request.Context(), c.Param("googleId"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	var book models.Book
	err = database.DB.Where("google_id = ?", volume.GoogleID).First(&book).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusCreated
	case err != nil:
		_ = c.Error(err)
		return
	}

	bookFromCatalog(volume, &book)
	if err := database.DB.Save(&book).Error; err != nil {
		_ = c.Error(err)
		return
	}

	resp, err := bookResponse(book)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, status, resp)
}

// ListBooks godoc
// @Summary      List local books
// @Description  Lists books in the local library with rating aggregates, optionally filtered by title or author.
// @Tags         books
// @Produce      json
// @Param        q     query string false "Title or author filter"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Items per page" default(20)
// @Success      200 {object} response.Envelope{data=PaginatedResponse[BookResponse]}
// @Router       /books [get]
func ListBooks(c *gin.Context) {
	query := database.DB.Model(&models.Book{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(authors) LIKE ?", like, like)
	}

	p := parsePagination(c)
	books, total, err := Paginate[models.Book](query, p, "title ASC")
	if err != nil {
		_ = c.Error(err)
		return
	}

	items, err := bookResponses(books)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, NewPaginatedResponse(items, total, p))
}

// GetBookByID godoc
// @Summary      Get a local book
// @Description  Gets a book from the local library with its rating aggregates.
// @Tags         books
// @Produce      json
// @Param        id path int true "Book ID"
// @Success      200 {object} response.Envelope{data=BookResponse}
// @Failure      404 {object} response.ErrorResponse
// @Router       /books/{id} [get]
func GetBookByID(c *gin.Context) {
	book, ok := loadBook(c)
	if !ok {
		return
	}
	resp, err := bookResponse(*book)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSON(c, http.StatusOK, resp)
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Adds a book to the local library by hand. Admin only.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body BookInput true "Book"
// @Success      201 {object} response.Envelope{data=BookResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse "Google ID already imported"
// @Router       /books [post]
func CreateBook(c *gin.Context) {
	var input BookInput
	if !bindJSON(c, &input) {
		return
	}

	var book models.Book
	input.apply(&book)
	if err := database.DB.Create(&book).Error; err != nil {
		_ = c.Error(err)
		return
	}
	response.JSONWithMessage(c, http.StatusCreated, newBookResponse(book, ratingAggregate{}), "Book created")
}

// UpdateBook godoc
// @Summary      Update a book
// @Description  Replaces a local book's metadata. Admin only.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int       true "Book ID"
// @Param        input body BookInput true "Book"
// @Success      200 {object} response.Envelope{data=BookResponse}
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /books/{id} [put]
func UpdateBook(c *gin.Context) {
	book, ok := loadBook(c)
	if !ok {
		return
	}

	var input BookInput
	if !bindJSON(c, &input) {
		return
	}

	input.apply(book)
	if err := database.DB.Save(book).Error; err != nil {
		_ = c.Error(err)
		return
	}

	resp, err := bookResponse(*book)
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.JSONWithMessage(c, http.StatusOK, resp, "Book updated")
}

// DeleteBook godoc
// @Summary      Delete a book
// @Description  Removes a book with its ratings and reading list entries. Admin only.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Book ID"
// @Success      200 {object} response.Envelope
// @Failure      404 {object} response.ErrorResponse
// @Router       /books/{id} [delete]
func DeleteBook(c *gin.Context) {
	book, ok := loadBook(c)
	if !ok {
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Club{}).Where("current_book_id = ?", book.ID).Update("current_book_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", book.ID).Delete(&models.ReadingListEntry{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(book).Error
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Message(c, http.StatusOK, "Book deleted")
}
