package loyalty

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

func TestRedeemCapsAtAvailable(t *testing.T) {
	r, err := Redeem(500, 300)
	require.NoError(t, err)
	require.Equal(t, &pricing.PointsRedemption{PointsUsed: 300, DiscountCents: 300}, r)

	r, err = Redeem(200, 1_000)
	require.NoError(t, err)
	require.Equal(t, int64(200), r.PointsUsed)
	require.Equal(t, pricing.Money(200), r.DiscountCents)
}

func TestRedeemZeroAndInvalid(t *testing.T) {
	r, err := Redeem(0, 1_000)
	require.NoError(t, err)
	require.Nil(t, r)

	r, err = Redeem(100, 0)
	require.NoError(t, err)
	require.Nil(t, r)

	_, err = Redeem(-1, 10)
	require.True(t, errors.Is(err, ErrInvalidPoints))
}

func TestSettleUsesAppliedDiscount(t *testing.T) {
	r := &pricing.PointsRedemption{PointsUsed: 500, DiscountCents: 500}
	b, err := pricing.Compose(100, 0, pricing.Instruments{Points: r})
	require.NoError(t, err)
	require.Equal(t, int64(100), Settle(r, b.PointsDiscount))
	require.Zero(t, Settle(nil, 100))
	require.Zero(t, Settle(r, 0))
}

func TestExchangeRateRoundTrip(t *testing.T) {
	require.Equal(t, pricing.Money(100), CentsForPoints(100))
	require.Equal(t, int64(250), PointsForCents(250))
}
