package handler

import (
	"readinghub/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

// RouteOptions holds the middlewares that main builds from configuration.
// Nil limiters are skipped.
type RouteOptions struct {
	APILimiter  gin.HandlerFunc
	AuthLimiter gin.HandlerFunc
}

// RegisterRoutes mounts every /api endpoint on r.
func RegisterRoutes(r *gin.Engine, opts RouteOptions) {
	api := r.Group("/api")
	if opts.APILimiter != nil {
		api.Use(opts.APILimiter)
	}

	// Auth routes
	authRoutes := api.Group("/auth")
	if opts.AuthLimiter != nil {
		authRoutes.Use(opts.AuthLimiter)
	}
	{
		authRoutes.POST("/register", RegisterUser)
		authRoutes.POST("/login", LoginUser)
		authRoutes.GET("/me", auth.AuthMiddleware(), GetMe)
		authRoutes.POST("/refresh", auth.AuthMiddleware(), RefreshToken)
		authRoutes.PUT("/password", auth.AuthMiddleware(), ChangePassword)
	}

	// User routes (protected)
	userRoutes := api.Group("/users")
	userRoutes.Use(auth.AuthMiddleware())
	{
		userRoutes.GET("", SearchUsers)
		userRoutes.GET("/me", GetMe)
		userRoutes.PUT("/me", UpdateMe)
		userRoutes.DELETE("/me", DeleteMe)
		userRoutes.GET("/me/reading-list", GetReadingList)
		userRoutes.PUT("/me/reading-list/:bookId", UpsertReadingListEntry)
		userRoutes.PATCH("/me/reading-list/:bookId/progress", UpdateReadingProgress)
		userRoutes.DELETE("/me/reading-list/:bookId", DeleteReadingListEntry)
		userRoutes.GET("/me/reading-stats", GetReadingStats)
		userRoutes.GET("/:id", GetUserByID)
		userRoutes.GET("/:id/clubs", GetUserClubs)
		userRoutes.GET("/:id/ratings", GetUserRatings)
	}

	// Book routes: reads are public, writes need a user, library edits need an admin.
	bookRoutes := api.Group("/books")
	{
		bookRoutes.GET("", ListBooks)
		bookRoutes.GET("/search", auth.OptionalAuthMiddleware(), SearchCatalog)
		bookRoutes.GET("/recommendations", auth.AuthMiddleware(), GetRecommendations)
		bookRoutes.GET("/catalog/:googleId", GetCatalogBook)
		bookRoutes.POST("/import/:googleId", auth.AuthMiddleware(), ImportBook)
		bookRoutes.GET("/:id", GetBookByID)
		bookRoutes.GET("/:id/ratings", ListBookRatings)
		bookRoutes.PUT("/:id/ratings", auth.AuthMiddleware(), UpsertRating)
		bookRoutes.DELETE("/:id/ratings", auth.AuthMiddleware(), DeleteRating)

		adminBooks := bookRoutes.Group("")
		adminBooks.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
		{
			adminBooks.POST("", CreateBook)
			adminBooks.PUT("/:id", UpdateBook)
			adminBooks.DELETE("/:id", DeleteBook)
		}
	}

	// Club routes (protected)
	clubRoutes := api.Group("/clubs")
	clubRoutes.Use(auth.AuthMiddleware())
	{
		clubRoutes.POST("", CreateClub)
		clubRoutes.GET("", ListClubs)
		clubRoutes.GET("/:id", GetClubByID)
		clubRoutes.PUT("/:id", UpdateClub)
		clubRoutes.DELETE("/:id", DeleteClub)
		clubRoutes.POST("/:id/join", JoinClub)
		clubRoutes.POST("/:id/leave", LeaveClub)
		clubRoutes.GET("/:id/members", ListClubMembers)
		clubRoutes.POST("/:id/members", AddClubMember)
		clubRoutes.DELETE("/:id/members/:userId", RemoveClubMember)
		clubRoutes.PUT("/:id/members/:userId/role", UpdateClubMemberRole)
		clubRoutes.PUT("/:id/current-book", SetCurrentBook)
		clubRoutes.GET("/:id/messages", ListClubMessages)
		clubRoutes.POST("/:id/messages", PostClubMessage)
		clubRoutes.GET("/:id/ws", ClubChat)
	}

	// Friendship routes (protected)
	friendRoutes := api.Group("/friends")
	friendRoutes.Use(auth.AuthMiddleware())
	{
		friendRoutes.GET("", ListFriends)
		friendRoutes.POST("/requests/:userId", SendFriendRequest)
		friendRoutes.POST("/requests/:userId/accept", AcceptFriendRequest)
		friendRoutes.POST("/requests/:userId/decline", DeclineFriendRequest)
		friendRoutes.DELETE("/requests/:userId", CancelFriendRequest)
		friendRoutes.DELETE("/:userId", RemoveFriend)
		friendRoutes.POST("/:userId/block", BlockUser)
		friendRoutes.DELETE("/:userId/block", UnblockUser)
	}

	// Direct message routes (protected)
	messageRoutes := api.Group("/messages")
	messageRoutes.Use(auth.AuthMiddleware())
	{
		messageRoutes.POST("", SendDirectMessage)
		messageRoutes.GET("/conversations", ListConversations)
		messageRoutes.GET("/conversations/:userId", GetConversation)
		messageRoutes.POST("/conversations/:userId/read", MarkConversationRead)
		messageRoutes.GET("/unread-count", UnreadCount)
		messageRoutes.GET("/stream", StreamDirectMessages)
		messageRoutes.DELETE("/:id", DeleteMessage)
	}

	// Admin routes (protected by auth and admin check)
	adminRoutes := api.Group("/admin")
	adminRoutes.Use(auth.AuthMiddleware(), auth.AdminMiddleware())
	{
		adminRoutes.GET("/users", AdminListUsers)
		adminRoutes.PUT("/users/:id/role", AdminUpdateUserRole)
		adminRoutes.DELETE("/clubs/:id", DeleteClub)
		adminRoutes.GET("/stats", AdminGetStats)
	}
}
