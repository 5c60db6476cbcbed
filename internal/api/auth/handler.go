package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"subscription-tracker/config"
	usersapi "subscription-tracker/internal/api/users"
	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/domain/users"
	"subscription-tracker/internal/infra/mail"
	"subscription-tracker/internal/infra/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type Deps struct {
	DB          *gorm.DB
	Tokens      *session.Manager
	Mailer      mail.Mailer
	Logger      *slog.Logger
	PublicURL   string
	FrontendURL string
	Google      config.GoogleConfig
}

type Handler struct {
	db          *gorm.DB
	tokens      *session.Manager
	mailer      mail.Mailer
	logger      *slog.Logger
	publicURL   string
	frontendURL string
	google      config.GoogleConfig
	now         func() time.Time
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:          d.DB,
		tokens:      d.Tokens,
		mailer:      d.Mailer,
		logger:      logger.With("component", "auth"),
		publicURL:   strings.TrimRight(d.PublicURL, "/"),
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
		google:      d.Google,
		now:         time.Now,
	}
}

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// POST /auth/signup
func (h *Handler) SignUp(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and password are required"})
		return
	}

	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)

	if utf8.RuneCountInString(name) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name must be at least 2 characters long"})
		return
	}
	if !emailPattern.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if !isPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters long and contain both letters and numbers"})
		return
	}

	ctx := c.Request.Context()

	var existing int64
	if err := h.db.WithContext(ctx).Model(&users.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		h.logger.Error("signup lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create account"})
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	hash := string(hashed)

	token, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create account"})
		return
	}

	user := users.User{
		Name:         name,
		Email:        email,
		Password:     &hash,
		AuthProvider: users.ProviderLocal,
		Role:         users.RoleUser,
		IsVerified:   false,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&users.VerificationToken{
			UserID:    user.ID,
			Token:     token,
			Type:      users.TokenEmailVerification,
			ExpiresAt: h.now().Add(verificationTTL),
		}).Error
	})
	if err != nil {
		h.logger.Error("signup insert failed", "email", email, "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": "Email may already exist"})
		return
	}

	if err := h.mailer.Send(ctx, verificationMessage(user, h.verifyLink(token))); err != nil {
		h.logger.Error("verification email failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	h.logger.Info("user signed up", "user_id", user.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Account created. Please check your email to verify your account."})
}

// POST /auth/signin
func (h *Handler) SignIn(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var user users.User
	err := h.db.WithContext(c.Request.Context()).Where("email = ?", normalizeEmail(input.Email)).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.logger.Error("signin lookup failed", "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !user.HasPassword() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email before signing in"})
		return
	}

	tokenString, err := h.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString, "user": usersapi.BuildUserDTO(user)})
}

// POST /auth/signout
func (h *Handler) SignOut(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), claims); err != nil {
		h.logger.Error("signout failed", "user_id", claims.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not sign out"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// GET /auth/verify?token=
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var vt users.VerificationToken
		if err := tx.Where("token = ? AND type = ?", token, users.TokenEmailVerification).First(&vt).Error; err != nil {
			return err
		}
		if vt.Expired(h.now()) {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&users.User{}).Where("id = ?", vt.UserID).Update("is_verified", true).Error; err != nil {
			return err
		}
		return tx.Delete(&vt).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err != nil {
		h.logger.Error("verify email failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify user"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/signin?verified=1")
}

// POST /auth/resend-verification
func (h *Handler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid email"})
		return
	}

	ctx := c.Request.Context()

	var user users.User
	if err := h.db.WithContext(ctx).Where("email = ?", normalizeEmail(body.Email)).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if user.IsVerified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already verified"})
		return
	}

	token, err := h.replaceToken(c, user.ID, users.TokenEmailVerification, verificationTTL)
	if err != nil {
		h.logger.Error("store verification token failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store verification token"})
		return
	}

	if err := h.mailer.Send(ctx, verificationMessage(user, h.verifyLink(token))); err != nil {
		h.logger.Error("verification email failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification email resent"})
}

const resetRequestedMessage = "If your email exists, you'll receive a reset link."

// POST /auth/password/forgot
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	ctx := c.Request.Context()

	var user users.User
	if err := h.db.WithContext(ctx).Where("email = ?", normalizeEmail(body.Email)).First(&user).Error; err != nil {
		// Don't expose whether the email exists
		c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
		return
	}

	token, err := h.replaceToken(c, user.ID, users.TokenPasswordReset, resetTTL)
	if err != nil {
		h.logger.Error("store reset token failed", "user_id", user.ID, "error", err)
		c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
		return
	}

	if err := h.mailer.Send(ctx, resetMessage(user, h.resetLink(token))); err != nil {
		h.logger.Error("reset email failed", "user_id", user.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
}

// POST /auth/password/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if body.ConfirmPassword != "" && body.ConfirmPassword != body.NewPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters with letters and numbers"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var reset users.VerificationToken
		if err := tx.Where("token = ? AND type = ?", body.Token, users.TokenPasswordReset).First(&reset).Error; err != nil {
			return err
		}
		if reset.Expired(h.now()) {
			return gorm.ErrRecordNotFound
		}

		// the reset link proves ownership of the address
		if err := tx.Model(&users.User{}).Where("id = ?", reset.UserID).Updates(map[string]interface{}{
			"password":    string(hashed),
			"is_verified": true,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(&reset).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err != nil {
		h.logger.Error("reset password failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

// POST /auth/password/change
func (h *Handler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 8 characters with letters and numbers"})
		return
	}

	ctx := c.Request.Context()

	var user users.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	if !user.HasPassword() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "This account does not have a password. Sign in with Google or reset your password first.",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(body.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}

	hashedNew, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Update("password", string(hashedNew)).Error; err != nil {
		h.logger.Error("change password failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// replaceToken drops any earlier token of the same type and stores a fresh one.
func (h *Handler) replaceToken(c *gin.Context, userID uint, kind string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND type = ?", userID, kind).Delete(&users.VerificationToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&users.VerificationToken{
			UserID:    userID,
			Token:     token,
			Type:      kind,
			ExpiresAt: h.now().Add(ttl),
		}).Error
	})
	return token, err
}

func (h *Handler) verifyLink(token string) string {
	return h.publicURL + "/auth/verify?token=" + url.QueryEscape(token)
}

func (h *Handler) resetLink(token string) string {
	return h.frontendURL + "/signin/resetpassword?token=" + url.QueryEscape(token)
}
