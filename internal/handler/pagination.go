package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the page/limit pair read from the query string.
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

func parsePagination(c *gin.Context) Pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return Pagination{Page: page, Limit: limit}
}

// PaginationMeta defines the structure for pagination metadata.
type PaginationMeta struct {
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// PaginatedResponse defines the structure for a paginated list of any type.
type PaginatedResponse[T any] struct {
	Items []T            `json:"items"`
	Meta  PaginationMeta `json:"meta"`
}

// NewPaginatedResponse creates a new PaginatedResponse.
func NewPaginatedResponse[T any](items []T, totalItems int64, p Pagination) PaginatedResponse[T] {
	limit := p.Limit
	if limit <= 0 {
		limit = 1
	}
	if items == nil {
		items = []T{}
	}
	return PaginatedResponse[T]{
		Items: items,
		Meta: PaginationMeta{
			TotalItems:  totalItems,
			TotalPages:  (int(totalItems) + limit - 1) / limit,
			CurrentPage: p.Page,
			PageSize:    limit,
		},
	}
}

// Paginate counts the rows matched by query, then fetches one page of them
// in the given order. Preloads only apply to the page query.
func Paginate[T any](query *gorm.DB, p Pagination, order string, preloads ...string) ([]T, int64, error) {
	var totalItems int64
	if err := query.Session(&gorm.Session{}).Model(new(T)).Count(&totalItems).Error; err != nil {
		return nil, 0, err
	}

	var results []T
	page := query.Session(&gorm.Session{})
	if order != "" {
		page = page.Order(order)
	}
	for _, preload := range preloads {
		page = page.Preload(preload)
	}
	if err := page.Offset(p.Offset()).Limit(p.Limit).Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, totalItems, nil
}

// mapSlice converts every element with fn.
func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
