package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"subscription-tracker/internal/domain/subscriptions"
	"subscription-tracker/internal/domain/users"
	"subscription-tracker/internal/infra/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StatsSource interface {
	Stats(ctx context.Context) (store.Stats, error)
	List(ctx context.Context, userID uint, activeOnly bool) ([]subscriptions.Subscription, error)
}

type AdminUser struct {
	ID                  uint      `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Role                string    `json:"role"`
	AuthProvider        string    `json:"auth_provider"`
	IsVerified          bool      `json:"is_verified"`
	SubscriptionCount   int64     `json:"subscription_count"`
	ActiveSubscriptions int64     `json:"active_subscriptions"`
	CreatedAt           time.Time `json:"created_at"`
}

type Handler struct {
	db     *gorm.DB
	stats  StatsSource
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, stats StatsSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{db: db, stats: stats, logger: logger.With("component", "admin")}
}

// GET /admin/stats
func (h *Handler) GetAdminStats(c *gin.Context) {
	stats, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("admin stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	var all []users.User
	db := h.db.WithContext(c.Request.Context())
	if err := db.Order("created_at DESC").Find(&all).Error; err != nil {
		h.logger.Error("list users failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	type subCount struct {
		UserID uint
		Total  int64
		Active int64
	}
	var counts []subCount
	if err := db.Model(&subscriptions.Subscription{}).
		Select("user_id, COUNT(*) AS total, SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active").
		Group("user_id").
		Scan(&counts).Error; err != nil {
		h.logger.Error("count subscriptions per user failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	byUser := make(map[uint]subCount, len(counts))
	for _, sc := range counts {
		byUser[sc.UserID] = sc
	}

	adminUsers := make([]AdminUser, 0, len(all))
	for _, u := range all {
		sc := byUser[u.ID]
		adminUsers = append(adminUsers, AdminUser{
			ID:                  u.ID,
			Name:                u.Name,
			Email:               u.Email,
			Role:                u.Role,
			AuthProvider:        u.AuthProvider,
			IsVerified:          u.IsVerified,
			SubscriptionCount:   sc.Total,
			ActiveSubscriptions: sc.Active,
			CreatedAt:           u.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, adminUsers)
}

// GET /admin/user/:id
func (h *Handler) GetUserDetails(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	ctx := c.Request.Context()

	var user users.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("load user failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	subs, err := h.stats.List(ctx, user.ID, false)
	if err != nil {
		h.logger.Error("list user subscriptions failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"subscriptions": subs,
	})
}
