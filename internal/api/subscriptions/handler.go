package subscriptions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"subscription-tracker/internal/app/http/middleware"
	"subscription-tracker/internal/domain/subscriptions"
	"subscription-tracker/internal/infra/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Store is the persistence the handlers need. *store.SubscriptionStore implements it.
type Store interface {
	List(ctx context.Context, userID uint, activeOnly bool) ([]subscriptions.Subscription, error)
	GetByID(ctx context.Context, id uuid.UUID, userID uint) (*subscriptions.Subscription, error)
	Insert(ctx context.Context, sub *subscriptions.Subscription) error
	Update(ctx context.Context, id uuid.UUID, userID uint, patch subscriptions.Patch) (*subscriptions.Subscription, error)
	Delete(ctx context.Context, id uuid.UUID, userID uint) error
}

type Handler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(s Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, logger: logger.With("component", "subscriptions"), now: time.Now}
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription id"})
		return uuid.Nil, false
	}
	return id, true
}

// GET /subscriptions?active=true
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	activeOnly := c.Query("active") == "true"

	subs, err := h.store.List(c.Request.Context(), userID, activeOnly)
	if err != nil {
		// the list screen shows an empty state rather than an error
		h.logger.Error("list subscriptions failed", "user_id", userID, "error", err)
		subs = nil
	}

	items := make([]ListItem, 0, len(subs))
	for _, s := range subs {
		items = append(items, buildListItem(s))
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": items})
}

// GET /subscriptions/:id
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	sub, err := h.store.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("get subscription failed", "user_id", userID, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	c.JSON(http.StatusOK, buildDetail(*sub, h.now()))
}

// POST /subscriptions
func (h *Handler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, price and billing_cycle are required"})
		return
	}
	sub, err := req.toSubscription(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Insert(c.Request.Context(), sub); err != nil {
		h.logger.Error("create subscription failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	h.logger.Info("subscription created", "user_id", userID, "id", sub.ID)
	c.JSON(http.StatusCreated, buildDetail(*sub, h.now()))
}

// PUT /subscriptions/:id
func (h *Handler) Update(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, userID, patch)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	if err != nil {
		h.logger.Error("update subscription failed", "user_id", userID, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, buildDetail(*updated, h.now()))
}

// DELETE /subscriptions/:id
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := h.store.Delete(c.Request.Context(), id, userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}
	if err != nil {
		h.logger.Error("delete subscription failed", "user_id", userID, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription deleted"})
}

// GET /subscriptions/summary
// Totals are kept per currency; amounts in different currencies are never added.
func (h *Handler) Summary(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return
	}

	subs, err := h.store.List(c.Request.Context(), userID, true)
	if err != nil {
		h.logger.Error("summary failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	now := h.now()
	byCurrency := map[string]*CurrencySummary{}
	for _, s := range subs {
		sum, ok := byCurrency[s.Currency]
		if !ok {
			sum = &CurrencySummary{Currency: s.Currency}
			byCurrency[s.Currency] = sum
		}
		sum.Count++
		if annual, ok := subscriptions.AnnualCost(s); ok {
			sum.AnnualCost += annual
		}
		sum.TotalSpent += subscriptions.TotalSpent(s, now)
	}

	out := make([]CurrencySummary, 0, len(byCurrency))
	for _, sum := range byCurrency {
		sum.AnnualCostDisplay = subscriptions.FormatAmount(sum.AnnualCost, sum.Currency)
		sum.TotalSpentDisplay = subscriptions.FormatAmount(sum.TotalSpent, sum.Currency)
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })

	c.JSON(http.StatusOK, gin.H{"active_count": len(subs), "currencies": out})
}
