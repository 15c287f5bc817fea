package models

import (
	"time"

	"gorm.io/gorm"
)

// ClubStatus controls a club's visibility and whether it accepts members.
type ClubStatus string

const (
	ClubStatusActive   ClubStatus = "active"
	ClubStatusInactive ClubStatus = "inactive"
	ClubStatusPrivate  ClubStatus = "private"
)

// IsValid reports whether s is one of the known statuses.
func (s ClubStatus) IsValid() bool {
	switch s {
	case ClubStatusActive, ClubStatusInactive, ClubStatusPrivate:
		return true
	}
	return false
}

// MemberRole is a member's role within a club.
type MemberRole string

const (
	MemberRoleOwner     MemberRole = "owner"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleMember    MemberRole = "member"
)

// CanModerate is true for owners and moderators.
func (r MemberRole) CanModerate() bool {
	return r == MemberRoleOwner || r == MemberRoleModerator
}

// Club represents a book club.
type Club struct {
	gorm.Model
	Name          string     `gorm:"size:100;uniqueIndex;not null"`
	Description   string     `gorm:"size:1000"`
	OwnerID       uint       `gorm:"not null;index"`
	Status        ClubStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	MaxMembers    int        `gorm:"not null;default:0"` // 0 means unlimited
	CurrentBookID *uint
	CoverURL      string `gorm:"size:1024"`

	Owner       User         `gorm:"foreignKey:OwnerID"`
	CurrentBook *Book        `gorm:"foreignKey:CurrentBookID;constraint:OnDelete:SET NULL;"`
	Members     []ClubMember `gorm:"foreignKey:ClubID;constraint:OnDelete:CASCADE;"`
}

// IsFull reports whether memberCount has reached the club's limit.
func (c Club) IsFull(memberCount int64) bool {
	return c.MaxMembers > 0 && memberCount >= int64(c.MaxMembers)
}

// ClubMember links a user to a club.
type ClubMember struct {
	ClubID   uint       `gorm:"primaryKey"`
	UserID   uint       `gorm:"primaryKey;index"`
	Role     MemberRole `gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time  `gorm:"not null"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;"`
}
