package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/domain/subscriptions"
	"subscription-tracker/internal/infra/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) List(ctx context.Context, userID uint, activeOnly bool) ([]subscriptions.Subscription, error) {
	args := m.Called(ctx, userID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]subscriptions.Subscription), args.Error(1)
}

func (m *mockStore) GetByID(ctx context.Context, id uuid.UUID, userID uint) (*subscriptions.Subscription, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscriptions.Subscription), args.Error(1)
}

func (m *mockStore) Insert(ctx context.Context, sub *subscriptions.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockStore) Update(ctx context.Context, id uuid.UUID, userID uint, patch subscriptions.Patch) (*subscriptions.Subscription, error) {
	args := m.Called(ctx, id, userID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscriptions.Subscription), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id uuid.UUID, userID uint) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

const testUserID uint = 7

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newRouter(s Store) *gin.Engine {
	h := NewHandler(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return now }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, testUserID)
		c.Next()
	})
	r.GET("/subscriptions", h.List)
	r.GET("/subscriptions/summary", h.Summary)
	r.GET("/subscriptions/:id", h.Get)
	r.POST("/subscriptions", h.Create)
	r.PUT("/subscriptions/:id", h.Update)
	r.DELETE("/subscriptions/:id", h.Delete)
	return r
}

func do(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sample(cycle subscriptions.BillingCycle, price float64, daysAgo int) subscriptions.Subscription {
	return subscriptions.Subscription{
		ID:           uuid.New(),
		UserID:       testUserID,
		Name:         "Netflix",
		Price:        price,
		BillingCycle: cycle,
		Currency:     "KRW",
		IsActive:     true,
		CreatedAt:    now.AddDate(0, 0, -daysAgo),
		UpdatedAt:    now.AddDate(0, 0, -daysAgo),
	}
}

func TestList(t *testing.T) {
	s := new(mockStore)
	subs := []subscriptions.Subscription{sample(subscriptions.CycleMonthly, 9900, 10)}
	s.On("List", mock.Anything, testUserID, true).Return(subs, nil)

	w := do(newRouter(s), http.MethodGet, "/subscriptions?active=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	items := decode(t, w)["subscriptions"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, "Netflix", item["name"])
	assert.Equal(t, "월간", item["billing_cycle_label"])
	assert.Contains(t, item["price_display"], "9,900")
	s.AssertExpectations(t)
}

func TestListDegradesToEmpty(t *testing.T) {
	s := new(mockStore)
	s.On("List", mock.Anything, testUserID, false).Return(nil, errors.New("db down"))

	w := do(newRouter(s), http.MethodGet, "/subscriptions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subscriptions":[]}`, w.Body.String())
}

func TestGetWithMetrics(t *testing.T) {
	s := new(mockStore)
	sub := sample(subscriptions.CycleMonthly, 9900, 95)
	s.On("GetByID", mock.Anything, sub.ID, testUserID).Return(&sub, nil)

	w := do(newRouter(s), http.MethodGet, "/subscriptions/"+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, sub.ID.String(), body["id"])
	assert.Equal(t, float64(118800), body["annual_cost"])
	assert.Equal(t, float64(39600), body["total_spent"])
	assert.Contains(t, body["total_spent_display"], "39,600")
	assert.Equal(t, map[string]interface{}{"months": float64(3), "days": float64(5), "total_days": float64(95)}, body["duration"])
}

func TestGetOneTimeHasNoAnnualCost(t *testing.T) {
	s := new(mockStore)
	sub := sample(subscriptions.CycleOneTime, 50000, 400)
	s.On("GetByID", mock.Anything, sub.ID, testUserID).Return(&sub, nil)

	w := do(newRouter(s), http.MethodGet, "/subscriptions/"+sub.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Nil(t, body["annual_cost"])
	assert.Nil(t, body["annual_cost_display"])
	assert.Equal(t, float64(50000), body["total_spent"])
	assert.Equal(t, "일회성", body["billing_cycle_label"])
}

func TestGetErrors(t *testing.T) {
	s := new(mockStore)
	missing := uuid.New()
	broken := uuid.New()
	s.On("GetByID", mock.Anything, missing, testUserID).Return(nil, nil)
	s.On("GetByID", mock.Anything, broken, testUserID).Return(nil, errors.New("db down"))
	r := newRouter(s)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/subscriptions/"+missing.String(), nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/subscriptions/"+broken.String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/subscriptions/not-a-uuid", nil).Code)
}

func TestCreateDefaults(t *testing.T) {
	s := new(mockStore)
	s.On("Insert", mock.Anything, mock.MatchedBy(func(sub *subscriptions.Subscription) bool {
		return sub.UserID == testUserID &&
			sub.Name == "YouTube Premium" &&
			sub.BillingCycle == subscriptions.CycleMonthly &&
			sub.Currency == "KRW" &&
			sub.IsActive &&
			sub.Category == nil
	})).Run(func(args mock.Arguments) {
		sub := args.Get(1).(*subscriptions.Subscription)
		sub.ID = uuid.New()
		sub.CreatedAt = now
		sub.UpdatedAt = now
	}).Return(nil)

	w := do(newRouter(s), http.MethodPost, "/subscriptions", gin.H{
		"name":          "  YouTube Premium ",
		"price":         14900,
		"billing_cycle": "monthly",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "MONTHLY", body["billing_cycle"])
	assert.Equal(t, true, body["is_active"])
	// nothing elapsed yet, so nothing has been spent
	assert.Equal(t, float64(0), body["total_spent"])
	assert.Equal(t, float64(14900*12), body["annual_cost"])
	s.AssertExpectations(t)
}

func TestCreateExplicitFields(t *testing.T) {
	s := new(mockStore)
	s.On("Insert", mock.Anything, mock.MatchedBy(func(sub *subscriptions.Subscription) bool {
		return sub.Currency == "USD" &&
			!sub.IsActive &&
			sub.Category != nil && *sub.Category == subscriptions.CategoryVPN &&
			sub.Memo != nil && *sub.Memo == "family plan"
	})).Return(nil)

	w := do(newRouter(s), http.MethodPost, "/subscriptions", gin.H{
		"name":          "Mullvad",
		"price":         5,
		"billing_cycle": "MONTHLY",
		"category":      "vpn",
		"currency":      "usd",
		"memo":          "family plan",
		"is_active":     false,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s.AssertExpectations(t)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing price", gin.H{"name": "X", "billing_cycle": "MONTHLY"}},
		{"missing cycle", gin.H{"name": "X", "price": 1}},
		{"blank name", gin.H{"name": "   ", "price": 1, "billing_cycle": "MONTHLY"}},
		{"negative price", gin.H{"name": "X", "price": -1, "billing_cycle": "MONTHLY"}},
		{"unknown cycle", gin.H{"name": "X", "price": 1, "billing_cycle": "DAILY"}},
		{"unknown category", gin.H{"name": "X", "price": 1, "billing_cycle": "MONTHLY", "category": "GAMES"}},
		{"bad currency", gin.H{"name": "X", "price": 1, "billing_cycle": "MONTHLY", "currency": "WON!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(mockStore)
			w := do(newRouter(s), http.MethodPost, "/subscriptions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			s.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateZeroPriceAllowed(t *testing.T) {
	s := new(mockStore)
	s.On("Insert", mock.Anything, mock.Anything).Return(nil)

	w := do(newRouter(s), http.MethodPost, "/subscriptions", gin.H{"name": "Free tier", "price": 0, "billing_cycle": "MONTHLY"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUpdate(t *testing.T) {
	s := new(mockStore)
	id := uuid.New()
	updated := sample(subscriptions.CycleYearly, 120000, 30)
	updated.ID = id

	cycle := subscriptions.CycleYearly
	price := 120000.0
	s.On("Update", mock.Anything, id, testUserID, subscriptions.Patch{BillingCycle: &cycle, Price: &price}).
		Return(&updated, nil)

	w := do(newRouter(s), http.MethodPut, "/subscriptions/"+id.String(), gin.H{"billing_cycle": "yearly", "price": 120000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(120000), decode(t, w)["annual_cost"])
	s.AssertExpectations(t)
}

func TestUpdateClearsOptionalFields(t *testing.T) {
	s := new(mockStore)
	id := uuid.New()
	updated := sample(subscriptions.CycleMonthly, 9900, 3)
	updated.ID = id

	none := subscriptions.Category("")
	empty := ""
	s.On("Update", mock.Anything, id, testUserID, subscriptions.Patch{Category: &none, PaymentMethod: &empty, Memo: &empty}).
		Return(&updated, nil)

	w := do(newRouter(s), http.MethodPut, "/subscriptions/"+id.String(), gin.H{"category": "", "payment_method": " ", "memo": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Nil(t, body["category"])
	assert.Nil(t, body["memo"])
	s.AssertExpectations(t)
}

func TestUpdateNullLeavesFieldsUnchanged(t *testing.T) {
	s := new(mockStore)
	id := uuid.New()
	updated := sample(subscriptions.CycleMonthly, 9900, 3)
	updated.ID = id

	s.On("Update", mock.Anything, id, testUserID, subscriptions.Patch{}).Return(&updated, nil)

	w := do(newRouter(s), http.MethodPut, "/subscriptions/"+id.String(), gin.H{"category": nil, "memo": nil})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.AssertExpectations(t)
}

func TestUpdateErrors(t *testing.T) {
	s := new(mockStore)
	id := uuid.New()
	s.On("Update", mock.Anything, id, testUserID, mock.Anything).Return(nil, store.ErrNotFound)
	r := newRouter(s)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPut, "/subscriptions/"+id.String(), gin.H{"memo": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/subscriptions/"+id.String(), gin.H{"price": -5}).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/subscriptions/"+id.String(), gin.H{"name": ""}).Code)
}

func TestDelete(t *testing.T) {
	s := new(mockStore)
	id := uuid.New()
	gone := uuid.New()
	s.On("Delete", mock.Anything, id, testUserID).Return(nil)
	s.On("Delete", mock.Anything, gone, testUserID).Return(store.ErrNotFound)
	r := newRouter(s)

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/subscriptions/"+id.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/subscriptions/"+gone.String(), nil).Code)
	s.AssertExpectations(t)
}

func TestSummary(t *testing.T) {
	s := new(mockStore)
	usd := sample(subscriptions.CycleYearly, 100, 10)
	usd.Currency = "USD"
	subs := []subscriptions.Subscription{
		sample(subscriptions.CycleMonthly, 9900, 95),
		sample(subscriptions.CycleOneTime, 50000, 5),
		usd,
	}
	s.On("List", mock.Anything, testUserID, true).Return(subs, nil)

	w := do(newRouter(s), http.MethodGet, "/subscriptions/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ActiveCount int               `json:"active_count"`
		Currencies  []CurrencySummary `json:"currencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.ActiveCount)
	require.Len(t, body.Currencies, 2)

	krw := body.Currencies[0]
	assert.Equal(t, "KRW", krw.Currency)
	assert.Equal(t, 2, krw.Count)
	assert.Equal(t, 118800.0, krw.AnnualCost)
	assert.Equal(t, 39600.0+50000.0, krw.TotalSpent)

	assert.Equal(t, "USD", body.Currencies[1].Currency)
	assert.Equal(t, 100.0, body.Currencies[1].AnnualCost)
}
