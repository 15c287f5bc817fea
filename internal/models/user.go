package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered reader.
type User struct {
	gorm.Model
	Username       string   `gorm:"size:30;uniqueIndex;not null"`
	Email          string   `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash   string   `gorm:"size:255;not null"`
	Role           string   `gorm:"size:50;not null;default:'user';index"`
	DisplayName    string   `gorm:"size:100"`
	Bio            string   `gorm:"size:500"`
	AvatarURL      string   `gorm:"size:512"`
	FavoriteGenres []string `gorm:"serializer:json;type:text"`
	LastSeenAt     *time.Time
}

// IsAdmin reports whether the user has the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
