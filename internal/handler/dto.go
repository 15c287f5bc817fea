package handler

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"readinghub/backend/internal/auth"
	"readinghub/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// region --- Users ---

// UserSummary is the short user card used inside lists.
type UserSummary struct {
	ID          uint   `json:"id" example:"1"`
	Username    string `json:"username" example:"bookworm"`
	DisplayName string `json:"displayName,omitempty" example:"Book Worm"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// FriendshipState describes the relation between the viewer and another user.
type FriendshipState struct {
	Status    models.FriendshipStatus `json:"status" example:"pending"`
	Direction string                  `json:"direction" example:"outgoing"`
}

// PublicUserResponse defines the structure for a user's public profile.
type PublicUserResponse struct {
	UserSummary
	Bio            string           `json:"bio,omitempty"`
	FavoriteGenres []string         `json:"favoriteGenres"`
	FriendsCount   int64            `json:"friendsCount"`
	RatingsCount   int64            `json:"ratingsCount"`
	ClubsCount     int64            `json:"clubsCount"`
	Friendship     *FriendshipState `json:"friendship,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// PrivateUserResponse defines the structure for the authenticated user's own profile.
type PrivateUserResponse struct {
	UserSummary
	Email          string     `json:"email" example:"reader@example.com"`
	Role           string     `json:"role" example:"user"`
	Bio            string     `json:"bio,omitempty"`
	FavoriteGenres []string   `json:"favoriteGenres"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string              `json:"token"`
	User  PrivateUserResponse `json:"user"`
}

func newUserSummary(u models.User) UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

func newPrivateUserResponse(u models.User) PrivateUserResponse {
	return PrivateUserResponse{
		UserSummary:    newUserSummary(u),
		Email:          u.Email,
		Role:           u.Role,
		Bio:            u.Bio,
		FavoriteGenres: nonNil(u.FavoriteGenres),
		LastSeenAt:     u.LastSeenAt,
		CreatedAt:      u.CreatedAt,
	}
}

// endregion

// region --- Books ---

// BookResponse is a local book with its rating aggregates.
type BookResponse struct {
	ID            uint      `json:"id" example:"1"`
	GoogleID      string    `json:"googleId,omitempty" example:"zyTCAlFPjgYC"`
	Title         string    `json:"title" example:"The Left Hand of Darkness"`
	Authors       []string  `json:"authors"`
	Description   string    `json:"description,omitempty"`
	Publisher     string    `json:"publisher,omitempty"`
	PublishedDate string    `json:"publishedDate,omitempty"`
	PageCount     int       `json:"pageCount"`
	Categories    []string  `json:"categories"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	ISBN          string    `json:"isbn,omitempty"`
	Language      string    `json:"language,omitempty"`
	AverageRating float64   `json:"averageRating"`
	RatingsCount  int64     `json:"ratingsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ratingAggregate struct {
	BookID  uint
	Average float64
	Count   int64
}

func newBookResponse(b models.Book, agg ratingAggregate) BookResponse {
	resp := BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Authors:       nonNil(b.Authors),
		Description:   b.Description,
		Publisher:     b.Publisher,
		PublishedDate: b.PublishedDate,
		PageCount:     b.PageCount,
		Categories:    nonNil(b.Categories),
		Thumbnail:     b.ThumbnailURL,
		ISBN:          b.ISBN,
		Language:      b.Language,
		AverageRating: math.Round(agg.Average*100) / 100,
		RatingsCount:  agg.Count,
		CreatedAt:     b.CreatedAt,
	}
	if b.GoogleID != nil {
		resp.GoogleID = *b.GoogleID
	}
	return resp
}

// RatingResponse is one user's rating of a book.
type RatingResponse struct {
	ID        uint         `json:"id"`
	BookID    uint         `json:"bookId"`
	Score     int          `json:"score" example:"4"`
	Review    string       `json:"review,omitempty"`
	User      *UserSummary `json:"user,omitempty"`
	Book      *BookSummary `json:"book,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// BookSummary is the short book card used inside lists.
type BookSummary struct {
	ID        uint     `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	PageCount int      `json:"pageCount"`
}

func newBookSummary(b models.Book) BookSummary {
	return BookSummary{ID: b.ID, Title: b.Title, Authors: nonNil(b.Authors), Thumbnail: b.ThumbnailURL, PageCount: b.PageCount}
}

func newRatingResponse(r models.Rating) RatingResponse {
	resp := RatingResponse{
		ID:        r.ID,
		BookID:    r.BookID,
		Score:     r.Score,
		Review:    r.Review,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.User.ID != 0 {
		u := newUserSummary(r.User)
		resp.User = &u
	}
	if r.Book.ID != 0 {
		b := newBookSummary(r.Book)
		resp.Book = &b
	}
	return resp
}

// ReadingListEntryResponse is one book on the caller's reading list.
type ReadingListEntryResponse struct {
	Book        BookSummary  `json:"book"`
	Shelf       models.Shelf `json:"shelf" example:"reading"`
	CurrentPage int          `json:"currentPage"`
	Progress    float64      `json:"progress"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	FinishedAt  *time.Time   `json:"finishedAt,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func newReadingListEntryResponse(e models.ReadingListEntry) ReadingListEntryResponse {
	resp := ReadingListEntryResponse{
		Book:        newBookSummary(e.Book),
		Shelf:       e.Shelf,
		CurrentPage: e.CurrentPage,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Book.PageCount > 0 {
		resp.Progress = math.Round(float64(e.CurrentPage)/float64(e.Book.PageCount)*1000) / 10
	}
	return resp
}

// endregion

// region --- Clubs & messages ---

// ClubResponse is a club as shown in lists.
type ClubResponse struct {
	ID          uint               `json:"id" example:"1"`
	Name        string             `json:"name" example:"Sci-fi Sundays"`
	Description string             `json:"description,omitempty"`
	Status      models.ClubStatus  `json:"status" example:"active"`
	MaxMembers  int                `json:"maxMembers"`
	MemberCount int64              `json:"memberCount"`
	CoverURL    string             `json:"coverUrl,omitempty"`
	Owner       UserSummary        `json:"owner"`
	CurrentBook *BookSummary       `json:"currentBook,omitempty"`
	MyRole      *models.MemberRole `json:"myRole,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// MemberResponse is one club member.
type MemberResponse struct {
	User     UserSummary       `json:"user"`
	Role     models.MemberRole `json:"role" example:"member"`
	JoinedAt time.Time         `json:"joinedAt"`
}

// ClubDetailResponse is a club with its member list.
type ClubDetailResponse struct {
	ClubResponse
	Members []MemberResponse `json:"members"`
}

func newClubResponse(club models.Club, memberCount int64, myRole *models.MemberRole) ClubResponse {
	resp := ClubResponse{
		ID:          club.ID,
		Name:        club.Name,
		Description: club.Description,
		Status:      club.Status,
		MaxMembers:  club.MaxMembers,
		MemberCount: memberCount,
		CoverURL:    club.CoverURL,
		Owner:       newUserSummary(club.Owner),
		MyRole:      myRole,
		CreatedAt:   club.CreatedAt,
	}
	if club.CurrentBook != nil {
		b := newBookSummary(*club.CurrentBook)
		resp.CurrentBook = &b
	}
	return resp
}

func newMemberResponse(m models.ClubMember) MemberResponse {
	return MemberResponse{User: newUserSummary(m.User), Role: m.Role, JoinedAt: m.JoinedAt}
}

// MessageResponse is a club or direct message.
type MessageResponse struct {
	ID          uint               `json:"id" example:"1"`
	Type        models.MessageType `json:"type" example:"text"`
	Content     string             `json:"content" example:"Chapter 3 was wild"`
	Sender      *UserSummary       `json:"sender,omitempty"`
	ClubID      *uint              `json:"clubId,omitempty"`
	RecipientID *uint              `json:"recipientId,omitempty"`
	ReadAt      *time.Time         `json:"readAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func newMessageResponse(m models.Message) MessageResponse {
	resp := MessageResponse{
		ID:          m.ID,
		Type:        m.Type,
		Content:     m.Content,
		ClubID:      m.ClubID,
		RecipientID: m.RecipientID,
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
	if m.Sender != nil && m.Sender.ID != 0 {
		s := newUserSummary(*m.Sender)
		resp.Sender = &s
	}
	return resp
}

// endregion

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func currentUserID(c *gin.Context) uint {
	return auth.CurrentUserID(c)
}

// parseID reads a positive numeric path parameter, writing a 400 when it is not one.
func parseID(c *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "Invalid "+label)
		return 0, false
	}
	return uint(id), true
}
