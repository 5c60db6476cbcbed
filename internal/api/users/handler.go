package users

import (
	"errors"
	"log/slog"
	"net/http"

	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/domain/subscriptions"
	"subscription-tracker/internal/domain/users"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, logger: logger}
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var user users.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("load current user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	var overview OverviewDTO
	base := db.Model(&subscriptions.Subscription{}).Where("user_id = ?", userID)
	if err := base.Session(&gorm.Session{}).Count(&overview.Total).Error; err != nil {
		h.logger.Error("count subscriptions failed", "user_id", userID, "error", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&overview.Active).Error; err != nil {
		h.logger.Error("count active subscriptions failed", "user_id", userID, "error", err)
	}

	c.JSON(http.StatusOK, MeResponse{
		User:          BuildUserDTO(user),
		Subscriptions: overview,
	})
}

func BuildUserDTO(u users.User) UserDTO {
	return UserDTO{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
		HasPassword:  u.HasPassword(),
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
	}
}
