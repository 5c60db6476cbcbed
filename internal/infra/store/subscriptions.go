package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subscription-tracker/internal/domain/subscriptions"
	"subscription-tracker/internal/domain/users"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

// SubscriptionStore persists subscriptions. Every query is scoped by the owning user.
type SubscriptionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db, now: time.Now}
}

func (s *SubscriptionStore) userQuery(ctx context.Context, userID uint) *gorm.DB {
	return s.db.WithContext(ctx).Where("user_id = ?", userID)
}

// List returns the user's subscriptions, newest first.
func (s *SubscriptionStore) List(ctx context.Context, userID uint, activeOnly bool) ([]subscriptions.Subscription, error) {
	q := s.userQuery(ctx, userID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	out := []subscriptions.Subscription{}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

// GetByID returns nil without an error when the subscription does not exist
// or belongs to someone else.
func (s *SubscriptionStore) GetByID(ctx context.Context, id uuid.UUID, userID uint) (*subscriptions.Subscription, error) {
	var sub subscriptions.Subscription
	err := s.userQuery(ctx, userID).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

// Insert stores a new subscription. ID and timestamps are assigned here.
func (s *SubscriptionStore) Insert(ctx context.Context, sub *subscriptions.Subscription) error {
	if sub.UserID == 0 {
		return errors.New("subscription has no owner")
	}
	sub.ID = uuid.Nil
	sub.CreatedAt = time.Time{}
	sub.UpdatedAt = time.Time{}

	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch and refreshes updated_at.
func (s *SubscriptionStore) Update(ctx context.Context, id uuid.UUID, userID uint, patch subscriptions.Patch) (*subscriptions.Subscription, error) {
	cols := patch.Columns()
	cols["updated_at"] = s.now()

	var updated subscriptions.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&subscriptions.Subscription{}).
			Where("id = ? AND user_id = ?", id, userID).
			Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.First(&updated, "id = ? AND user_id = ?", id, userID).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return &updated, nil
}

func (s *SubscriptionStore) Delete(ctx context.Context, id uuid.UUID, userID uint) error {
	res := s.db.WithContext(ctx).Delete(&subscriptions.Subscription{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return fmt.Errorf("delete subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type Stats struct {
	TotalUsers          int64            `json:"total_users"`
	TotalSubscriptions  int64            `json:"total_subscriptions"`
	ActiveSubscriptions int64            `json:"active_subscriptions"`
	PerCategory         map[string]int64 `json:"per_category"`
	PerBillingCycle     map[string]int64 `json:"per_billing_cycle"`
}

// Stats aggregates counts across all users.
func (s *SubscriptionStore) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	stats := Stats{
		PerCategory:     map[string]int64{},
		PerBillingCycle: map[string]int64{},
	}

	if err := db.Model(&users.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&subscriptions.Subscription{}).Count(&stats.TotalSubscriptions).Error; err != nil {
		return Stats{}, fmt.Errorf("count subscriptions: %w", err)
	}
	if err := db.Model(&subscriptions.Subscription{}).Where("is_active = ?", true).Count(&stats.ActiveSubscriptions).Error; err != nil {
		return Stats{}, fmt.Errorf("count active subscriptions: %w", err)
	}

	type groupCount struct {
		Name  *string
		Count int64
	}

	var categories []groupCount
	if err := db.Model(&subscriptions.Subscription{}).
		Select("category AS name, COUNT(*) AS count").
		Group("category").
		Scan(&categories).Error; err != nil {
		return Stats{}, fmt.Errorf("count per category: %w", err)
	}
	for _, c := range categories {
		name := "NONE"
		if c.Name != nil {
			name = *c.Name
		}
		stats.PerCategory[name] = c.Count
	}

	var cycles []groupCount
	if err := db.Model(&subscriptions.Subscription{}).
		Select("billing_cycle AS name, COUNT(*) AS count").
		Group("billing_cycle").
		Scan(&cycles).Error; err != nil {
		return Stats{}, fmt.Errorf("count per billing cycle: %w", err)
	}
	for _, c := range cycles {
		if c.Name != nil {
			stats.PerBillingCycle[*c.Name] = c.Count
		}
	}

	return stats, nil
}
