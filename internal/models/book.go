package models

import "gorm.io/gorm"

// Book is the local copy of a catalog volume (or a manually entered book).
type Book struct {
	gorm.Model
	// GoogleID is nil for books that were not imported from the catalog.
	GoogleID      *string  `gorm:"size:64;uniqueIndex"`
	Title         string   `gorm:"size:500;not null;index"`
	Authors       []string `gorm:"serializer:json;type:text"`
	Description   string   `gorm:"type:text"`
	Publisher     string   `gorm:"size:255"`
	PublishedDate string   `gorm:"size:32"`
	PageCount     int      `gorm:"not null;default:0"`
	Categories    []string `gorm:"serializer:json;type:text"`
	ThumbnailURL  string   `gorm:"size:1024"`
	ISBN          string   `gorm:"size:32;index"`
	Language      string   `gorm:"size:16"`
}
