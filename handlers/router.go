package handlers

import (
	"net/http"

	"consultancy-cms/middleware"
	"consultancy-cms/services"

	"github.com/gin-gonic/gin"
)

type Routes struct {
	Auth       *AuthHandler
	Comments   *CommentHandler
	Users      *UserAdminHandler
	Middleware *middleware.Auth
	Sessions   services.SessionService

	// SubmitLimit guards public comment submission. Nil disables it.
	SubmitLimit gin.HandlerFunc
	AllowOrigin string
}

func NewRouter(r Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS(r.AllowOrigin))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	submitLimit := r.SubmitLimit
	if submitLimit == nil {
		submitLimit = func(c *gin.Context) { c.Next() }
	}
	requireSession := r.Middleware.Require(r.Sessions.RequireSession)
	requireAdmin := r.Middleware.Require(r.Sessions.RequireAdmin)
	requireSuperAdmin := r.Middleware.Require(r.Sessions.RequireSuperAdmin)

	v1 := router.Group("/api/v1")
	v1.Use(r.Middleware.SessionMiddleware())
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/email", submitLimit, r.Auth.RequestEmailSignIn)
			auth.POST("/email/callback", r.Auth.EmailCallback)
			auth.POST("/oauth/callback", r.Auth.OAuthCallback)
			auth.POST("/refresh", requireSession, r.Auth.Refresh)
			auth.POST("/signout", r.Auth.SignOut)
		}

		profile := v1.Group("/profile")
		profile.Use(requireSession)
		{
			profile.GET("", r.Auth.GetProfile)
			profile.PATCH("", r.Auth.UpdateProfile)
		}

		public := v1.Group("/public")
		{
			public.GET("/posts/:post_id/comments", r.Comments.GetPublicComments)
			public.POST("/posts/:post_id/comments", submitLimit, r.Comments.SubmitComment)
		}

		admin := v1.Group("/admin")
		admin.Use(requireAdmin)
		{
			comments := admin.Group("/comments")
			{
				comments.GET("", r.Comments.GetComments)
				comments.PUT("/:id/status", r.Comments.UpdateCommentStatus)
				comments.DELETE("/:id", r.Comments.DeleteComment)
				comments.GET("/:id/history", r.Comments.GetCommentHistory)
			}

			users := admin.Group("/users")
			{
				users.GET("", r.Users.GetUsers)
				users.POST("/bulk/status", r.Users.BulkSetStatus)
				users.POST("/bulk/role", r.Users.BulkSetRole)
				users.POST("/bulk/delete", requireSuperAdmin, r.Users.BulkDelete)
			}
		}
	}

	return router
}
