package checkout

import (
	"context"
	"errors"

	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/loyalty"
	"github.com/noah-isme/toko-checkout/internal/resilience"
	"github.com/noah-isme/toko-checkout/internal/voucher"
)

// GuardedLookups trips a breaker when the instrument store keeps failing so
// quotes fail fast instead of queueing on a degraded database.
type GuardedLookups struct {
	Next    Lookups
	Breaker *resilience.Breaker
}

// storeFailure reports whether err says anything about store health. Unknown
// codes and missing accounts are answers, not outages.
func storeFailure(err error) bool {
	switch {
	case errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, giftcard.ErrCardNotFound),
		errors.Is(err, loyalty.ErrAccountNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func (g GuardedLookups) Promotion(ctx context.Context, code, customerID string) (voucher.Rule, error) {
	var rule voucher.Rule
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		rule, err = g.Next.Promotion(ctx, code, customerID)
		return err
	}, storeFailure)
	return rule, err
}

func (g GuardedLookups) GiftCard(ctx context.Context, code string) (giftcard.Card, error) {
	var card giftcard.Card
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		card, err = g.Next.GiftCard(ctx, code)
		return err
	}, storeFailure)
	return card, err
}

func (g GuardedLookups) LoyaltyAccount(ctx context.Context, customerID string) (loyalty.Account, error) {
	var acct loyalty.Account
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		acct, err = g.Next.LoyaltyAccount(ctx, customerID)
		return err
	}, storeFailure)
	return acct, err
}
