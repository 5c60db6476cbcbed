package subscriptions

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

/*
	Derived metrics
	---------------
	Pure functions over a Subscription snapshot and the current instant.
	No I/O, no errors: inputs were validated when the record was written.
*/

// Duration is the time elapsed since a subscription started.
// Months is a fixed 30-day approximation, not calendar arithmetic.
type Duration struct {
	Months    int `json:"months"`
	Days      int `json:"days"`
	TotalDays int `json:"total_days"`
}

var displayLocale = language.Korean

// FormatAmount renders amount as a Korean-locale currency string, e.g. "₩9,900"
// or "US$9.99".
// An empty code means KRW. Unrecognized codes are printed as-is in front of the
// amount with two decimals.
func FormatAmount(amount float64, currencyCode string) string {
	code := strings.ToUpper(strings.TrimSpace(currencyCode))
	if code == "" {
		code = DefaultCurrency
	}

	p := message.NewPrinter(displayLocale)

	symbol := code
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		// ko symbols disambiguate foreign dollars and yen ("US$", "JP¥")
		if unit == currency.KRW {
			symbol = p.Sprint(currency.NarrowSymbol(unit))
		} else {
			symbol = p.Sprint(currency.Symbol(unit))
		}
		scale, _ = currency.Standard.Rounding(unit)
	}

	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	// number.Scale rounds half to even; amounts round half away from zero
	pow := math.Pow10(scale)
	amount = math.Round(amount*pow) / pow
	if amount == 0 {
		sign = ""
	}
	return sign + symbol + p.Sprint(number.Decimal(amount, number.Scale(scale)))
}

// AnnualCost projects the yearly spend. The second result is false when the
// subscription has no recurring cost (ONE_TIME or an unknown cycle).
func AnnualCost(s Subscription) (float64, bool) {
	switch s.BillingCycle {
	case CycleYearly:
		return s.Price, true
	case CycleMonthly:
		return s.Price * 12, true
	case CycleWeekly:
		return s.Price * 52, true
	default:
		return 0, false
	}
}

// ElapsedDuration measures the absolute time between CreatedAt and now,
// rounding partial days up.
func ElapsedDuration(s Subscription, now time.Time) Duration {
	diff := now.Sub(s.CreatedAt)
	if diff < 0 {
		diff = -diff
	}
	totalDays := int(math.Ceil(diff.Hours() / 24))
	return Duration{
		Months:    totalDays / 30,
		Days:      totalDays % 30,
		TotalDays: totalDays,
	}
}

// TotalSpent estimates what has been paid so far. Every started billing period
// counts as paid, so this is an upper bound rather than a payment history.
func TotalSpent(s Subscription, now time.Time) float64 {
	days := ElapsedDuration(s, now).TotalDays

	switch s.BillingCycle {
	case CycleOneTime:
		return s.Price
	case CycleMonthly:
		return s.Price * float64(periods(days, 30))
	case CycleYearly:
		return s.Price * float64(periods(days, 365))
	case CycleWeekly:
		return s.Price * float64(periods(days, 7))
	default:
		return 0
	}
}

func periods(days, length int) int {
	return (days + length - 1) / length
}
