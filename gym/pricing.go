package gym

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRICING - Configuration-driven price lookup
// =============================================================================

// Pricing holds the configured price buckets. The payment service treats
// the lookup as a black box; the buckets come from configuration.
type Pricing struct {
	SingleSession decimal.Decimal
	Sessions13    decimal.Decimal
	Sessions15    decimal.Decimal
	Sessions30    decimal.Decimal
}

// DefaultPricing mirrors the shipped price list.
func DefaultPricing() Pricing {
	return Pricing{
		SingleSession: decimal.NewFromInt(200),
		Sessions13:    decimal.NewFromInt(1500),
		Sessions15:    decimal.NewFromInt(1800),
		Sessions30:    decimal.NewFromInt(1800),
	}
}

// PriceResolver maps a free-form subscription label to an amount.
type PriceResolver func(subscriptionType string) decimal.Decimal

// Resolver returns the lookup for this price list.
//
// The "monthly" label is aliased to the 13-session bucket, and unknown
// labels also fall back to it. The aliasing is carried over from the
// billing history; do not separate the buckets without checking existing
// payment records.
func (p Pricing) Resolver() PriceResolver {
	return func(subscriptionType string) decimal.Decimal {
		switch strings.TrimSpace(subscriptionType) {
		case "monthly":
			return p.Sessions13
		case string(Sub13):
			return p.Sessions13
		case string(Sub15):
			return p.Sessions15
		case string(Sub30):
			return p.Sessions30
		case "single-session":
			return p.SingleSession
		default:
			return p.Sessions13
		}
	}
}
