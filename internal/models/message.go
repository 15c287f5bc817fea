package models

import (
	"time"

	"gorm.io/gorm"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Message is either a club chat message (ClubID set) or a direct message
// (RecipientID set).
type Message struct {
	gorm.Model
	SenderID    *uint       `gorm:"index"` // Nullable for system messages
	ClubID      *uint       `gorm:"index"`
	RecipientID *uint       `gorm:"index"`
	Type        MessageType `gorm:"size:50;not null;default:'text'"`
	Content     string      `gorm:"type:text;not null"`
	ReadAt      *time.Time

	Sender *User `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL;"`
}
