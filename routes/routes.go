package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vnkhanh/matchday-server/controllers"
	"github.com/vnkhanh/matchday-server/middleware"
	"github.com/vnkhanh/matchday-server/utils"
)

// Options là những thứ routes cần ngoài handler.
type Options struct {
	DB             *gorm.DB
	Tokens         *utils.TokenIssuer
	AuthLimiter    *middleware.KeyedLimiter
	CreateLimiter  *middleware.KeyedLimiter
	RequestTimeout time.Duration
}

func SetupRoutes(r *gin.Engine, h *controllers.Handler, opt Options) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/health", h.HealthCheck)

	auth := middleware.AuthJWT(opt.DB, opt.Tokens)

	// websocket sống lâu, không gắn Timeout
	r.GET("/ws", auth, h.Socket)

	api := r.Group("/api")
	api.Use(middleware.Timeout(opt.RequestTimeout))
	{
		authGroup := api.Group("/auth")
		authGroup.Use(middleware.RateLimitByIP(opt.AuthLimiter))
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		protected := api.Group("/")
		protected.Use(auth)
		{
			protected.GET("/me", h.Me)
			protected.GET("/me/stats", h.MyStats)
			protected.GET("/me/history", h.MyHistory)
			protected.GET("/users/search", h.SearchUsers)
			protected.GET("/users/:id", h.GetUser)
			protected.GET("/users/:id/stats", h.UserStats)
			protected.GET("/users/:id/history", h.UserHistory)
			protected.GET("/users/:id/head-to-head", h.HeadToHead)
			protected.POST("/reports", h.CreateReport)
		}

		loadMatch := middleware.LoadMatch(opt.DB)
		creatorOnly := middleware.CheckMatchCreator()

		matches := api.Group("/matches")
		matches.Use(auth)
		{
			matches.POST("", middleware.RateLimitByUser(opt.CreateLimiter), h.CreateMatch)
			matches.GET("", h.ListMatches)
			matches.GET("/mine", h.MyMatches)
			matches.GET("/:id", loadMatch, h.GetMatch)
			matches.PATCH("/:id", loadMatch, creatorOnly, h.UpdateMatch)
			matches.PATCH("/:id/status", loadMatch, creatorOnly, h.UpdateMatchStatus)

			// roster
			matches.POST("/:id/join", h.JoinMatch)
			matches.POST("/:id/leave", h.LeaveMatch)
			matches.POST("/:id/participants/:userId/approve", h.ApproveParticipant)
			matches.POST("/:id/participants/:userId/reject", h.RejectParticipant)
			matches.PATCH("/:id/participants/:userId/team", h.MovePlayer)
			matches.POST("/:id/participants/:userId/captain", h.SetCaptain)
			matches.POST("/:id/participants/:userId/admin", h.ToggleAdmin)
			matches.POST("/:id/teams/generate", h.GenerateTeams)

			// votes
			matches.POST("/:id/votes", loadMatch, h.SubmitVote)
			matches.GET("/:id/votes", loadMatch, h.GetMatchVotes)
		}

		friends := api.Group("/friends")
		friends.Use(auth)
		{
			friends.GET("", h.ListFriends)
			friends.GET("/requests", h.ListPendingRequests)
			friends.POST("/requests", h.SendFriendRequest)
			friends.POST("/requests/:id/accept", h.AcceptFriendRequest)
			friends.POST("/requests/:id/reject", h.RejectFriendRequest)
			friends.GET("/status/:id", h.FriendshipStatus)
			friends.DELETE("/:id", h.RemoveFriend)
		}

		notifications := api.Group("/notifications")
		notifications.Use(auth)
		{
			notifications.GET("", h.ListNotifications)
			notifications.PATCH("/:id/read", h.MarkNotificationRead)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/stats", h.AdminStats)
			admin.GET("/users", h.AdminListUsers)
			admin.DELETE("/users/:id", h.AdminDeleteUser)
			admin.PATCH("/users/:id/rating", h.SetUserRating)
			admin.GET("/matches", h.AdminListMatches)
			admin.DELETE("/matches/:id", h.AdminDeleteMatch)
			admin.GET("/reports", h.ListReports)
			admin.PATCH("/reports/:id/status", h.UpdateReportStatus)
		}
	}
}
