package models

import "time"

// Rating is a user's score (1-5) and optional review of a book.
// One rating per (user, book).
type Rating struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_ratings_user_book"`
	BookID    uint   `gorm:"not null;uniqueIndex:idx_ratings_user_book;index"`
	Score     int    `gorm:"not null"`
	Review    string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
	Book Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE;"`
}
