package routes

import (
	"log/slog"
	"net/http"

	adminapi "subscription-tracker/internal/api/admin"
	authapi "subscription-tracker/internal/api/auth"
	subsapi "subscription-tracker/internal/api/subscriptions"
	usersapi "subscription-tracker/internal/api/users"
	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/domain/users"
	"subscription-tracker/internal/infra/session"
	"subscription-tracker/internal/infra/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Deps struct {
	DB            *gorm.DB
	Tokens        *session.Manager
	Subscriptions *store.SubscriptionStore
	Auth          *authapi.Handler
	Logger        *slog.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	subs := subsapi.NewHandler(d.Subscriptions, d.Logger)
	me := usersapi.NewHandler(d.DB, d.Logger)
	admin := adminapi.NewHandler(d.DB, d.Subscriptions, d.Logger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Input sanitization on public routes only
	public := r.Group("/")
	public.Use(middleware.SanitizeInput())

	public.POST("/auth/signup", d.Auth.SignUp)
	public.POST("/auth/signin", d.Auth.SignIn)
	public.GET("/auth/verify", d.Auth.VerifyEmail)
	public.POST("/auth/resend-verification", d.Auth.ResendVerification)
	public.POST("/auth/password/forgot", d.Auth.RequestPasswordReset)
	public.POST("/auth/password/reset", d.Auth.ResetPassword)

	public.GET("/auth/google", d.Auth.GoogleStart)
	public.GET("/auth/google/callback", d.Auth.GoogleCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(
		middleware.AuthMiddleware(d.Tokens, d.Logger),
		middleware.RequireExistingUser(d.DB, d.Logger),
		middleware.SanitizeInput(),
	)
	auth.GET("/me", me.GetCurrentUser)
	auth.POST("/auth/signout", d.Auth.SignOut)
	auth.POST("/auth/password/change", d.Auth.ChangePassword)

	auth.GET("/subscriptions", subs.List)
	auth.GET("/subscriptions/summary", subs.Summary)
	auth.GET("/subscriptions/:id", subs.Get)
	auth.POST("/subscriptions", subs.Create)
	auth.PUT("/subscriptions/:id", subs.Update)
	auth.DELETE("/subscriptions/:id", subs.Delete)

	// Admin routes
	adminGroup := r.Group("/admin")
	adminGroup.Use(
		middleware.AuthMiddleware(d.Tokens, d.Logger),
		middleware.RequireExistingUser(d.DB, d.Logger),
		middleware.RequireRole(users.RoleAdmin),
	)
	adminGroup.GET("/stats", admin.GetAdminStats)
	adminGroup.GET("/users", admin.ListAllUsers)
	adminGroup.GET("/user/:id", admin.GetUserDetails)
}
