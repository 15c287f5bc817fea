package models

import "time"

// FriendshipStatus defines the state of a relationship between two users.
type FriendshipStatus string

const (
	// StatusPending means a friend request has been sent but not yet answered.
	StatusPending FriendshipStatus = "pending"

	// StatusAccepted means the request was accepted and the users are friends.
	StatusAccepted FriendshipStatus = "accepted"

	// StatusBlocked means the requester has blocked the addressee.
	StatusBlocked FriendshipStatus = "blocked"
)

// IsValid reports whether s is one of the known statuses.
func (s FriendshipStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusBlocked:
		return true
	}
	return false
}

// Friendship represents the relationship between two users.
// The primary key is a composite of (RequesterID, AddresseeID); at most one row
// exists per unordered pair, enforced by the handlers.
type Friendship struct {
	RequesterID uint             `gorm:"primaryKey"`
	AddresseeID uint             `gorm:"primaryKey"`
	Status      FriendshipStatus `gorm:"type:varchar(20);not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Requester User `gorm:"foreignKey:RequesterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Addressee User `gorm:"foreignKey:AddresseeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Other returns the id of the participant that is not userID.
func (f Friendship) Other(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}
