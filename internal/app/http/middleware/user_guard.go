package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"subscription-tracker/internal/domain/users"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RequireExistingUser rejects tokens whose user has since been removed.
// Must run after AuthMiddleware.
func RequireExistingUser(db *gorm.DB, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint(CtxUserID)

		var user users.User
		err := db.WithContext(c.Request.Context()).Select("id", "role").First(&user, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}
		if err != nil {
			logger.Error("user lookup failed", "user_id", userID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not verify session"})
			return
		}

		// the stored role wins over the one baked into the token
		c.Set(CtxRole, user.Role)
		c.Next()
	}
}
