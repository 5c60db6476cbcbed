package subscriptions

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"subscription-tracker/internal/domain/subscriptions"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

/* ---------- REQUESTS ---------- */

type CreateRequest struct {
	Name          string   `json:"name" binding:"required"`
	Price         *float64 `json:"price" binding:"required"`
	BillingCycle  string   `json:"billing_cycle" binding:"required"`
	Category      *string  `json:"category"`
	Currency      *string  `json:"currency"`
	PaymentMethod *string  `json:"payment_method"`
	Memo          *string  `json:"memo"`
	IsActive      *bool    `json:"is_active"`
}

type UpdateRequest struct {
	Name          *string  `json:"name"`
	Price         *float64 `json:"price"`
	BillingCycle  *string  `json:"billing_cycle"`
	Category      *string  `json:"category"`
	Currency      *string  `json:"currency"`
	PaymentMethod *string  `json:"payment_method"`
	Memo          *string  `json:"memo"`
	IsActive      *bool    `json:"is_active"`
}

// toSubscription validates the request and fills in the defaults
// (currency KRW, active).
func (r CreateRequest) toSubscription(userID uint) (*subscriptions.Subscription, error) {
	name, err := validName(r.Name)
	if err != nil {
		return nil, err
	}
	if err := validPrice(*r.Price); err != nil {
		return nil, err
	}
	cycle, err := subscriptions.ParseBillingCycle(r.BillingCycle)
	if err != nil {
		return nil, err
	}

	sub := &subscriptions.Subscription{
		UserID:        userID,
		Name:          name,
		Price:         *r.Price,
		BillingCycle:  cycle,
		Currency:      subscriptions.DefaultCurrency,
		PaymentMethod: optionalText(r.PaymentMethod),
		Memo:          optionalText(r.Memo),
		IsActive:      true,
	}
	if r.Category != nil && strings.TrimSpace(*r.Category) != "" {
		cat, err := subscriptions.ParseCategory(*r.Category)
		if err != nil {
			return nil, err
		}
		sub.Category = &cat
	}
	if r.Currency != nil {
		code, err := validCurrency(*r.Currency)
		if err != nil {
			return nil, err
		}
		sub.Currency = code
	}
	if r.IsActive != nil {
		sub.IsActive = *r.IsActive
	}
	return sub, nil
}

func (r UpdateRequest) toPatch() (subscriptions.Patch, error) {
	// "" clears an optional field; null or absent leaves it unchanged
	patch := subscriptions.Patch{
		PaymentMethod: clearableText(r.PaymentMethod),
		Memo:          clearableText(r.Memo),
		IsActive:      r.IsActive,
	}
	if r.Name != nil {
		name, err := validName(*r.Name)
		if err != nil {
			return patch, err
		}
		patch.Name = &name
	}
	if r.Price != nil {
		if err := validPrice(*r.Price); err != nil {
			return patch, err
		}
		patch.Price = r.Price
	}
	if r.BillingCycle != nil {
		cycle, err := subscriptions.ParseBillingCycle(*r.BillingCycle)
		if err != nil {
			return patch, err
		}
		patch.BillingCycle = &cycle
	}
	if r.Category != nil {
		var cat subscriptions.Category
		if strings.TrimSpace(*r.Category) != "" {
			parsed, err := subscriptions.ParseCategory(*r.Category)
			if err != nil {
				return patch, err
			}
			cat = parsed
		}
		patch.Category = &cat
	}
	if r.Currency != nil {
		code, err := validCurrency(*r.Currency)
		if err != nil {
			return patch, err
		}
		patch.Currency = &code
	}
	return patch, nil
}

// optionalText drops blank values so they are stored as NULL.
func optionalText(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}

func clearableText(p *string) *string {
	if p == nil {
		return nil
	}
	if strings.TrimSpace(*p) == "" {
		empty := ""
		return &empty
	}
	return p
}

func validName(s string) (string, error) {
	name := strings.TrimSpace(s)
	if name == "" {
		return "", errors.New("name must not be empty")
	}
	return name, nil
}

func validPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return errors.New("price must be a non-negative number")
	}
	return nil
}

func validCurrency(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if !currencyPattern.MatchString(code) {
		return "", errors.New("currency must be a 3-letter ISO code")
	}
	return code, nil
}

/* ---------- RESPONSES ---------- */

// ListItem is a subscription with the display fields a list row needs.
type ListItem struct {
	subscriptions.Subscription
	PriceDisplay      string `json:"price_display"`
	BillingCycleLabel string `json:"billing_cycle_label"`
}

// Detail is a subscription together with its derived metrics.
// AnnualCost is null for ONE_TIME subscriptions.
type Detail struct {
	subscriptions.Subscription
	PriceDisplay      string                 `json:"price_display"`
	BillingCycleLabel string                 `json:"billing_cycle_label"`
	AnnualCost        *float64               `json:"annual_cost"`
	AnnualCostDisplay *string                `json:"annual_cost_display"`
	Duration          subscriptions.Duration `json:"duration"`
	TotalSpent        float64                `json:"total_spent"`
	TotalSpentDisplay string                 `json:"total_spent_display"`
}

type CurrencySummary struct {
	Currency          string  `json:"currency"`
	Count             int     `json:"count"`
	AnnualCost        float64 `json:"annual_cost"`
	AnnualCostDisplay string  `json:"annual_cost_display"`
	TotalSpent        float64 `json:"total_spent"`
	TotalSpentDisplay string  `json:"total_spent_display"`
}

func buildListItem(s subscriptions.Subscription) ListItem {
	return ListItem{
		Subscription:      s,
		PriceDisplay:      subscriptions.FormatAmount(s.Price, s.Currency),
		BillingCycleLabel: s.BillingCycle.Label(),
	}
}

func buildDetail(s subscriptions.Subscription, now time.Time) Detail {
	spent := subscriptions.TotalSpent(s, now)
	d := Detail{
		Subscription:      s,
		PriceDisplay:      subscriptions.FormatAmount(s.Price, s.Currency),
		BillingCycleLabel: s.BillingCycle.Label(),
		Duration:          subscriptions.ElapsedDuration(s, now),
		TotalSpent:        spent,
		TotalSpentDisplay: subscriptions.FormatAmount(spent, s.Currency),
	}
	if annual, ok := subscriptions.AnnualCost(s); ok {
		display := subscriptions.FormatAmount(annual, s.Currency)
		d.AnnualCost = &annual
		d.AnnualCostDisplay = &display
	}
	return d
}
