package loyalty

import (
	"errors"
	"fmt"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

// PointsPerCent is the single exchange rate used for redemption and display: 1 point buys 1 cent.
const PointsPerCent = 1

var (
	// ErrAccountNotFound is returned when the customer has no loyalty account.
	ErrAccountNotFound = errors.New("loyalty account not found")
	// ErrInvalidPoints is returned for negative redemption requests.
	ErrInvalidPoints = errors.New("loyalty: invalid points amount")
)

// Account is a snapshot of a customer's loyalty balance and referral credit.
type Account struct {
	CustomerID          string
	Points              int64
	ReferralCreditCents pricing.Money
}

// CentsForPoints converts points to their redemption value.
func CentsForPoints(points int64) pricing.Money {
	return pricing.Money(points / PointsPerCent)
}

// PointsForCents converts a cent amount to the points needed to cover it.
func PointsForCents(cents pricing.Money) int64 {
	return int64(cents) * PointsPerCent
}

// Redeem builds a points redemption for the requested amount, capped at the
// available balance. A zero request yields a nil redemption.
func Redeem(requested, available int64) (*pricing.PointsRedemption, error) {
	if requested < 0 {
		return nil, fmt.Errorf("%w: requested %d", ErrInvalidPoints, requested)
	}
	if available < 0 {
		return nil, fmt.Errorf("%w: available %d", ErrInvalidPoints, available)
	}
	used := requested
	if used > available {
		used = available
	}
	if used == 0 {
		return nil, nil
	}
	return &pricing.PointsRedemption{PointsUsed: used, DiscountCents: CentsForPoints(used)}, nil
}

// Settle trims a redemption to the discount Compose actually applied, so
// customers are only debited for points that reduced the total.
func Settle(r *pricing.PointsRedemption, applied pricing.Money) int64 {
	if r == nil || applied <= 0 {
		return 0
	}
	points := PointsForCents(applied)
	if points > r.PointsUsed {
		points = r.PointsUsed
	}
	return points
}
