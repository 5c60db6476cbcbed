package subscriptions

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BillingCycle string

const (
	CycleMonthly BillingCycle = "MONTHLY"
	CycleYearly  BillingCycle = "YEARLY"
	CycleWeekly  BillingCycle = "WEEKLY"
	CycleOneTime BillingCycle = "ONE_TIME"
)

type Category string

const (
	CategoryOTT    Category = "OTT"
	CategoryVPN    Category = "VPN"
	CategoryCourse Category = "COURSE"
	CategoryOther  Category = "OTHER"
)

const DefaultCurrency = "KRW"

// Subscription is a user-owned record of a recurring or one-time paid service.
// CreatedAt doubles as the billing start date.
type Subscription struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uint         `gorm:"not null;index" json:"user_id"`
	Name          string       `gorm:"not null" json:"name"`
	Price         float64      `gorm:"not null;default:0" json:"price"`
	BillingCycle  BillingCycle `gorm:"type:varchar(16);not null" json:"billing_cycle"`
	Category      *Category    `gorm:"type:varchar(16)" json:"category"`
	Currency      string       `gorm:"type:varchar(8);not null;default:'KRW'" json:"currency"`
	PaymentMethod *string      `json:"payment_method"`
	Memo          *string      `json:"memo"`
	IsActive      bool         `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Currency == "" {
		s.Currency = DefaultCurrency
	}
	return nil
}

// Patch carries the fields of a partial update. Nil means "leave unchanged".
// An empty Category, PaymentMethod or Memo clears that column to NULL.
type Patch struct {
	Name          *string
	Price         *float64
	BillingCycle  *BillingCycle
	Category      *Category
	Currency      *string
	PaymentMethod *string
	Memo          *string
	IsActive      *bool
}

// Columns returns the column assignments for a GORM Updates call.
func (p Patch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.BillingCycle != nil {
		cols["billing_cycle"] = *p.BillingCycle
	}
	if p.Category != nil {
		cols["category"] = nullIfEmpty(string(*p.Category))
	}
	if p.Currency != nil {
		cols["currency"] = *p.Currency
	}
	if p.PaymentMethod != nil {
		cols["payment_method"] = nullIfEmpty(string(*p.PaymentMethod))
	}
	if p.Memo != nil {
		cols["memo"] = nullIfEmpty(string(*p.Memo))
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	return cols
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ParseBillingCycle accepts the canonical uppercase values and the older
// lowercase spellings (monthly, yearly, weekly, one-time).
func ParseBillingCycle(s string) (BillingCycle, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	switch BillingCycle(norm) {
	case CycleMonthly, CycleYearly, CycleWeekly, CycleOneTime:
		return BillingCycle(norm), nil
	}
	return "", fmt.Errorf("unknown billing cycle %q", s)
}

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToUpper(strings.TrimSpace(s))); c {
	case CategoryOTT, CategoryVPN, CategoryCourse, CategoryOther:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Label is the Korean display label shown next to the price.
func (c BillingCycle) Label() string {
	switch c {
	case CycleMonthly:
		return "월간"
	case CycleYearly:
		return "연간"
	case CycleWeekly:
		return "주간"
	case CycleOneTime:
		return "일회성"
	default:
		return string(c)
	}
}
