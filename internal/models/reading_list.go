package models

import "time"

// Shelf is the bucket a book sits in on a user's reading list.
type Shelf string

const (
	ShelfWishlist Shelf = "wishlist"
	ShelfReading  Shelf = "reading"
	ShelfRead     Shelf = "read"
)

// Shelves lists every shelf in display order.
var Shelves = []Shelf{ShelfWishlist, ShelfReading, ShelfRead}

// IsValid reports whether s is one of the known shelves.
func (s Shelf) IsValid() bool {
	switch s {
	case ShelfWishlist, ShelfReading, ShelfRead:
		return true
	}
	return false
}

// ReadingListEntry places a book on one of a user's shelves and tracks progress.
type ReadingListEntry struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      uint  `gorm:"not null;uniqueIndex:idx_reading_user_book"`
	BookID      uint  `gorm:"not null;uniqueIndex:idx_reading_user_book"`
	Shelf       Shelf `gorm:"type:varchar(20);not null;index"`
	CurrentPage int   `gorm:"not null;default:0"`
	StartedAt   *time.Time
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Book Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE;"`
}

// MoveTo changes the shelf and stamps StartedAt/FinishedAt.
// pageCount is the book's page count (0 when unknown).
func (e *ReadingListEntry) MoveTo(shelf Shelf, pageCount int, now time.Time) {
	e.Shelf = shelf
	switch shelf {
	case ShelfReading:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
		e.FinishedAt = nil
	case ShelfRead:
		if e.StartedAt == nil {
			e.StartedAt = &now
		}
		if e.FinishedAt == nil {
			e.FinishedAt = &now
		}
		if pageCount > 0 {
			e.CurrentPage = pageCount
		}
	case ShelfWishlist:
		e.FinishedAt = nil
	}
}

// SetProgress records the current page. Reaching pageCount finishes the book.
func (e *ReadingListEntry) SetProgress(page, pageCount int, now time.Time) {
	e.CurrentPage = page
	switch {
	case pageCount > 0 && page >= pageCount:
		e.MoveTo(ShelfRead, pageCount, now)
	case page > 0 && e.Shelf != ShelfReading:
		e.MoveTo(ShelfReading, pageCount, now)
	}
}
