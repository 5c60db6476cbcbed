package routes

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	authapi "subscription-tracker/internal/api/auth"
	"subscription-tracker/internal/domain/users"
	"subscription-tracker/internal/infra/mail"
	"subscription-tracker/internal/infra/session"
	"subscription-tracker/internal/infra/store"
	"subscription-tracker/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := session.NewManager("routes-secret", time.Hour, nil)

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:            db,
		Tokens:        tokens,
		Subscriptions: store.NewSubscriptionStore(db),
		Auth: authapi.NewHandler(authapi.Deps{
			DB:          db,
			Tokens:      tokens,
			Mailer:      mail.NewLogMailer(logger),
			Logger:      logger,
			PublicURL:   "http://api.test",
			FrontendURL: "http://app.test",
		}),
		Logger: logger,
	})
	return db, r
}

func call(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// signUpAndIn registers an account, marks it verified and returns a token.
func signUpAndIn(t *testing.T, db *gorm.DB, r http.Handler, email string) string {
	t.Helper()
	w := call(r, http.MethodPost, "/auth/signup", "", gin.H{"name": "Kim", "email": email, "password": "passw0rd"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, db.Model(&users.User{}).Where("email = ?", email).Update("is_verified", true).Error)

	w = call(r, http.MethodPost, "/auth/signin", "", gin.H{"email": email, "password": "passw0rd"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestHealth(t *testing.T) {
	_, r := newServer(t)
	w := call(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSubscriptionsRequireAuth(t *testing.T) {
	_, r := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/subscriptions", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/me", "", nil).Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	db, r := newServer(t)
	kim := signUpAndIn(t, db, r, "kim@example.com")
	lee := signUpAndIn(t, db, r, "lee@example.com")

	w := call(r, http.MethodPost, "/subscriptions", kim, gin.H{
		"name":          "<i>Netflix</i>",
		"price":         13500,
		"billing_cycle": "MONTHLY",
		"category":      "OTT",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Netflix", created["name"], "markup stripped")
	id := created["id"].(string)

	w = call(r, http.MethodGet, "/subscriptions/"+id, kim, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"annual_cost":162000`)

	// other users cannot see or touch it
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/subscriptions/"+id, lee, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodDelete, "/subscriptions/"+id, lee, nil).Code)

	w = call(r, http.MethodPut, "/subscriptions/"+id, kim, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodGet, "/subscriptions?active=true", kim, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscriptions":[]}`, w.Body.String())

	w = call(r, http.MethodGet, "/subscriptions/summary", kim, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active_count":0`)

	w = call(r, http.MethodGet, "/me", kim, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusOK, call(r, http.MethodDelete, "/subscriptions/"+id, kim, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(r, http.MethodGet, "/subscriptions/"+id, kim, nil).Code)
}

func TestAdminRoutes(t *testing.T) {
	db, r := newServer(t)
	token := signUpAndIn(t, db, r, "kim@example.com")

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/admin/stats", token, nil).Code)

	// promotion takes effect without a new token
	require.NoError(t, db.Model(&users.User{}).Where("email = ?", "kim@example.com").Update("role", users.RoleAdmin).Error)
	w := call(r, http.MethodGet, "/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_users":1`)

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/admin/users", token, nil).Code)
}

func TestSignOutEndsSession(t *testing.T) {
	db, r := newServer(t)
	token := signUpAndIn(t, db, r, "kim@example.com")

	require.Equal(t, http.StatusOK, call(r, http.MethodPost, "/auth/signout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/subscriptions", token, nil).Code)
}

func TestDeletedUserLosesAccess(t *testing.T) {
	db, r := newServer(t)
	token := signUpAndIn(t, db, r, "kim@example.com")

	require.NoError(t, db.Where("email = ?", "kim@example.com").Delete(&users.User{}).Error)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/subscriptions", token, nil).Code)
}
