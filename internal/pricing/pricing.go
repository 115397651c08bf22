// Package pricing computes the shipping surcharge applied to storefront orders.
//
// Schedules are versioned. The quote path records the version it used in the
// provider session so confirmation reconciles with the same tiers even if the
// default changes between quote and payment.
package pricing

import (
	"fmt"
	"sort"

	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultVersion is used when no version is configured or recorded.
const DefaultVersion = "2024-01"

// Tier applies Rate to subtotals strictly below UpTo. A nil UpTo is unbounded.
type Tier struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

// Schedule is an ordered set of tiers identified by Version.
type Schedule struct {
	Version string
	Tiers   []Tier
}

// Quote is the server-computed breakdown of an order total.
type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Schedule string
}

var schedules = map[string]Schedule{
	DefaultVersion: {
		Version: DefaultVersion,
		Tiers: []Tier{
			{UpTo: bound(100), Rate: decimal.RequireFromString("0.15")},
			{UpTo: bound(500), Rate: decimal.RequireFromString("0.10")},
			{UpTo: bound(1000), Rate: decimal.RequireFromString("0.05")},
			{Rate: decimal.Zero},
		},
	},
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// Lookup returns the schedule registered under version. A blank version
// resolves to DefaultVersion.
func Lookup(version string) (Schedule, error) {
	if version == "" {
		version = DefaultVersion
	}
	s, ok := schedules[version]
	if !ok {
		return Schedule{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown shipping schedule %q", version))
	}
	return s, nil
}

// Versions lists the registered schedule versions in ascending order.
func Versions() []string {
	out := make([]string, 0, len(schedules))
	for v := range schedules {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ComputeShipping applies the default schedule.
func ComputeShipping(subtotal decimal.Decimal) decimal.Decimal {
	return schedules[DefaultVersion].Shipping(subtotal)
}

// Shipping returns the surcharge for subtotal rounded half to even at two
// places, the same result the storefront computes. Zero or negative
// subtotals ship free.
func (s Schedule) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	for _, tier := range s.Tiers {
		if tier.UpTo == nil || subtotal.LessThan(*tier.UpTo) {
			return subtotal.Mul(tier.Rate).RoundBank(2)
		}
	}
	return decimal.Zero
}

// Quote computes the full breakdown for subtotal.
func (s Schedule) Quote(subtotal decimal.Decimal) Quote {
	subtotal = subtotal.RoundBank(2)
	shipping := s.Shipping(subtotal)
	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    subtotal.Add(shipping),
		Schedule: s.Version,
	}
}

// ToCents converts an amount to minor units as the payment provider expects.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

// FromCents converts provider minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
