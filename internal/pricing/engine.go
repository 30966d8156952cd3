package pricing

import (
	"errors"
	"fmt"
	"math"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ErrInvalidInput is returned when the caller supplies amounts that can never occur in a valid checkout.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Item describes a line item used for subtotal calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// PromotionKind enumerates how a promotion derives its discount.
type PromotionKind string

const (
	PromotionPercentage   PromotionKind = "percentage"
	PromotionFixed        PromotionKind = "fixed"
	PromotionFreeShipping PromotionKind = "free_shipping"
)

// Promotion is a validated promotion snapshot. Value is a whole percentage (0-100)
// for PromotionPercentage, an amount in minor units for PromotionFixed and is
// ignored for PromotionFreeShipping.
type Promotion struct {
	Kind  PromotionKind
	Value int64
}

// GiftCard carries the balance available on the card at checkout time.
type GiftCard struct {
	BalanceCents Money
}

// PointsRedemption is a loyalty redemption already converted to minor units.
type PointsRedemption struct {
	PointsUsed    int64
	DiscountCents Money
}

// Instruments groups the optional discount instruments for one checkout.
type Instruments struct {
	Promotion        *Promotion
	ReferralDiscount Money
	GiftCard         *GiftCard
	Points           *PointsRedemption
}

// Breakdown is the per-instrument result of Compose.
type Breakdown struct {
	PromoDiscount    Money `json:"promoDiscountCents"`
	PointsDiscount   Money `json:"pointsDiscountCents"`
	GiftCardDiscount Money `json:"giftCardDiscountCents"`
	Total            Money `json:"totalCents"`
}

// Subtotal sums quantity times unit price. Lines with a non-positive quantity are skipped.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	return subtotal
}

// Compose stacks the instruments against subtotal+shipping in a fixed order:
// promotion and referral credit first, then loyalty points, then the gift card.
// Every stage saturates at zero, so the total is never negative and no
// instrument contributes more than it holds.
func Compose(subtotal, shipping Money, in Instruments) (Breakdown, error) {
	if err := validate(subtotal, shipping, in); err != nil {
		return Breakdown{}, err
	}

	base := subtotal + shipping

	promo := addCapped(promotionDiscount(subtotal, shipping, in.Promotion), in.ReferralDiscount, base)
	afterPromo := base - promo

	var points Money
	if in.Points != nil {
		points = minMoney(in.Points.DiscountCents, afterPromo)
	}
	afterPoints := afterPromo - points

	var gift Money
	if in.GiftCard != nil {
		gift = minMoney(in.GiftCard.BalanceCents, afterPoints)
	}

	return Breakdown{
		PromoDiscount:    promo,
		PointsDiscount:   points,
		GiftCardDiscount: gift,
		Total:            afterPoints - gift,
	}, nil
}

// ReferralApplied reports how much of the referral credit the first-stage
// deduction consumed. The promotion's own discount is counted first.
func ReferralApplied(subtotal, shipping Money, p *Promotion, b Breakdown) Money {
	own := minMoney(promotionDiscount(subtotal, shipping, p), b.PromoDiscount)
	return b.PromoDiscount - own
}

func promotionDiscount(subtotal, shipping Money, p *Promotion) Money {
	if p == nil {
		return 0
	}
	switch p.Kind {
	case PromotionPercentage:
		// split so subtotal*value cannot overflow; the result still truncates
		return (subtotal/100)*p.Value + (subtotal%100)*p.Value/100
	case PromotionFixed:
		return p.Value
	case PromotionFreeShipping:
		return shipping
	default:
		return 0
	}
}

func validate(subtotal, shipping Money, in Instruments) error {
	if subtotal < 0 {
		return fmt.Errorf("%w: negative subtotal %d", ErrInvalidInput, subtotal)
	}
	if shipping < 0 {
		return fmt.Errorf("%w: negative shipping %d", ErrInvalidInput, shipping)
	}
	if shipping > math.MaxInt64-subtotal {
		return fmt.Errorf("%w: subtotal %d plus shipping %d overflows", ErrInvalidInput, subtotal, shipping)
	}
	if in.ReferralDiscount < 0 {
		return fmt.Errorf("%w: negative referral discount %d", ErrInvalidInput, in.ReferralDiscount)
	}
	if p := in.Promotion; p != nil {
		switch p.Kind {
		case PromotionPercentage:
			if p.Value < 0 || p.Value > 100 {
				return fmt.Errorf("%w: percentage %d outside 0-100", ErrInvalidInput, p.Value)
			}
		case PromotionFixed:
			if p.Value < 0 {
				return fmt.Errorf("%w: negative fixed promotion %d", ErrInvalidInput, p.Value)
			}
		case PromotionFreeShipping:
		default:
			return fmt.Errorf("%w: unknown promotion kind %q", ErrInvalidInput, p.Kind)
		}
	}
	if g := in.GiftCard; g != nil && g.BalanceCents < 0 {
		return fmt.Errorf("%w: negative gift card balance %d", ErrInvalidInput, g.BalanceCents)
	}
	if pts := in.Points; pts != nil {
		if pts.PointsUsed < 0 || pts.DiscountCents < 0 {
			return fmt.Errorf("%w: negative points redemption", ErrInvalidInput)
		}
	}
	return nil
}

// addCapped returns min(a+b, limit) for non-negative a and b without overflowing.
func addCapped(a, b, limit Money) Money {
	if a >= limit || b >= limit-a {
		return limit
	}
	return a + b
}

func minMoney(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}
