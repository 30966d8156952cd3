package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

var (
	// ErrNotEligible is returned when the voucher cannot be applied to the provided context.
	ErrNotEligible = errors.New("voucher not eligible")
	// ErrNotFound is returned when no voucher exists for the supplied code.
	ErrNotFound = errors.New("voucher not found")
	// ErrUsageLimitReached indicates the voucher has exhausted the global usage quota.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrPerUserLimitReached indicates the caller has exceeded the per-user allowance.
	ErrPerUserLimitReached = errors.New("voucher per-user usage limit reached")
	// ErrVoucherInactive is returned when attempting to use a voucher outside of its active window.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher has already expired.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the order subtotal did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
)

// Kind identifies how a voucher discounts an order.
type Kind string

const (
	KindPercent      Kind = "percent"
	KindFixed        Kind = "fixed"
	KindFreeShipping Kind = "free_shipping"
)

// ParseKind normalises the kind strings found in stored voucher rows.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percent", "percentage":
		return KindPercent, nil
	case "fixed", "fixed_amount", "amount":
		return KindFixed, nil
	case "free_shipping", "freeshipping", "shipping":
		return KindFreeShipping, nil
	default:
		return "", fmt.Errorf("voucher: unknown kind %q", value)
	}
}

// Rule captures the runtime constraints of a voucher.
type Rule struct {
	Code         string
	Kind         Kind
	Value        int64
	MinSpend     int64
	Active       bool
	UsageLimit   *int32
	UsedCount    int32
	PerUserLimit *int32
	PerUserUsed  int32
	ValidFrom    *time.Time
	ValidTo      *time.Time
}

// Validate ensures the rule can be applied at the provided instant and order subtotal.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if !r.Active {
		return ErrNotEligible
	}
	if subtotal < r.MinSpend {
		return ErrMinimumSpendUnmet
	}
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrVoucherInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrVoucherExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.PerUserLimit != nil && *r.PerUserLimit > 0 && r.PerUserUsed >= *r.PerUserLimit {
		return ErrPerUserLimitReached
	}
	return nil
}

// Promotion converts the rule into the promotion instrument consumed by pricing.Compose.
func (r Rule) Promotion() (pricing.Promotion, error) {
	switch r.Kind {
	case KindPercent:
		if r.Value < 0 || r.Value > 100 {
			return pricing.Promotion{}, fmt.Errorf("%w: percent value %d outside 0-100", ErrNotEligible, r.Value)
		}
		return pricing.Promotion{Kind: pricing.PromotionPercentage, Value: r.Value}, nil
	case KindFixed:
		if r.Value <= 0 {
			return pricing.Promotion{}, fmt.Errorf("%w: fixed value must be positive", ErrNotEligible)
		}
		return pricing.Promotion{Kind: pricing.PromotionFixed, Value: r.Value}, nil
	case KindFreeShipping:
		return pricing.Promotion{Kind: pricing.PromotionFreeShipping}, nil
	default:
		return pricing.Promotion{}, fmt.Errorf("%w: unsupported kind %q", ErrNotEligible, r.Kind)
	}
}
