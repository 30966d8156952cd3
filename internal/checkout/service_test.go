package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/loyalty"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/voucher"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type stubLookups struct {
	rules    map[string]voucher.Rule
	cards    map[string]giftcard.Card
	accounts map[string]loyalty.Account
	err      error
}

func (s stubLookups) Promotion(_ context.Context, code, _ string) (voucher.Rule, error) {
	if s.err != nil {
		return voucher.Rule{}, s.err
	}
	r, ok := s.rules[code]
	if !ok {
		return voucher.Rule{}, voucher.ErrNotFound
	}
	return r, nil
}

func (s stubLookups) GiftCard(_ context.Context, code string) (giftcard.Card, error) {
	c, ok := s.cards[code]
	if !ok {
		return giftcard.Card{}, giftcard.ErrCardNotFound
	}
	return c, nil
}

func (s stubLookups) LoyaltyAccount(_ context.Context, customerID string) (loyalty.Account, error) {
	a, ok := s.accounts[customerID]
	if !ok {
		return loyalty.Account{}, loyalty.ErrAccountNotFound
	}
	return a, nil
}

type stubSettler struct {
	err   error
	calls []string
}

func (s *stubSettler) Settle(_ context.Context, orderID string, _ Quote) error {
	s.calls = append(s.calls, orderID)
	return s.err
}

func newTestService(t *testing.T, lookups Lookups) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Service{
		Lookups:  lookups,
		Cache:    NewQuoteCache(client, 10*time.Minute),
		Currency: "USD",
		Metrics:  obs.NewCheckoutMetrics("test", prometheus.NewRegistry()),
		Now:      func() time.Time { return testNow },
	}, mr
}

func fixtureLookups() stubLookups {
	expired := testNow.Add(-time.Hour)
	return stubLookups{
		rules: map[string]voucher.Rule{
			"HALF":   {Code: "HALF", Kind: voucher.KindPercent, Value: 50, Active: true},
			"SHIP":   {Code: "SHIP", Kind: voucher.KindFreeShipping, Active: true},
			"SEVEN":  {Code: "SEVEN", Kind: voucher.KindFixed, Value: 700, Active: true},
			"OLD":    {Code: "OLD", Kind: voucher.KindPercent, Value: 10, Active: true, ValidTo: &expired},
			"BIGMIN": {Code: "BIGMIN", Kind: voucher.KindFixed, Value: 100, Active: true, MinSpend: 1_000_000},
		},
		cards: map[string]giftcard.Card{
			"GIFT900": {Code: "GIFT900", BalanceCents: 900, Currency: "USD"},
			"EURO":    {Code: "EURO", BalanceCents: 900, Currency: "EUR"},
		},
		accounts: map[string]loyalty.Account{
			"cust-1": {CustomerID: "cust-1", Points: 300, ReferralCreditCents: 500},
		},
	}
}

func oneItem(cents int64) []LineItem {
	return []LineItem{{SKU: "sku-1", Qty: 1, UnitPriceCents: cents}}
}

func requireAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, status, appErr.HTTPStatus)
	require.Equal(t, code, appErr.Code)
}

func TestQuotePromotionThenGiftCard(t *testing.T) {
	svc, mr := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{
		Items:         []LineItem{{SKU: "a", Qty: 2, UnitPriceCents: 500}},
		PromotionCode: " half ",
		GiftCardCode:  "gift-900",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), q.SubtotalCents)
	require.Equal(t, int64(500), q.PromoDiscount)
	require.Equal(t, int64(500), q.GiftCardDiscount)
	require.Zero(t, q.Total)
	require.Equal(t, "HALF", q.PromotionCode)
	require.Equal(t, "GIFT900", q.GiftCardCode)
	require.Equal(t, "USD", q.Currency)
	require.Equal(t, testNow.Add(10*time.Minute), q.ExpiresAt)
	require.True(t, mr.Exists(quoteKeyPrefix+q.ID))
	require.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.QuoteTotal.WithLabelValues("ok")))
	require.Equal(t, 500.0, testutil.ToFloat64(svc.Metrics.DiscountCents.WithLabelValues("gift_card")))
}

func TestQuoteFreeShipping(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{
		Items:         oneItem(2000),
		ShippingCents: 500,
		PromotionCode: "SHIP",
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), q.PromoDiscount)
	require.Equal(t, int64(2000), q.Total)
}

func TestQuotePointsCappedAndSettledToApplied(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(100), RedeemPoints: 500})
	require.NoError(t, err)
	require.Equal(t, int64(100), q.PointsDiscount)
	require.Equal(t, int64(100), q.PointsUsed)
	require.Zero(t, q.Total)
}

func TestQuoteReferralCreditSplit(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{
		Items:             oneItem(1000),
		PromotionCode:     "SEVEN",
		UseReferralCredit: true,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1000), q.PromoDiscount)
	require.Equal(t, int64(300), q.ReferralAppliedCents)
	require.Zero(t, q.Total)
}

func TestQuoteNoInstruments(t *testing.T) {
	svc, _ := newTestService(t, stubLookups{})
	q, err := svc.Quote(context.Background(), "cust-2", QuoteRequest{Items: oneItem(1500), ShippingCents: 300})
	require.NoError(t, err)
	require.Equal(t, int64(1800), q.Total)
	require.Empty(t, q.PromotionCode)
	require.Empty(t, q.GiftCardCode)
}

func TestQuoteRejectsInstruments(t *testing.T) {
	cases := []struct {
		name   string
		req    QuoteRequest
		status int
		code   string
	}{
		{"expired promotion", QuoteRequest{Items: oneItem(1000), PromotionCode: "OLD"}, http.StatusUnprocessableEntity, "PROMOTION_EXPIRED"},
		{"unknown promotion", QuoteRequest{Items: oneItem(1000), PromotionCode: "NOPE"}, http.StatusUnprocessableEntity, "PROMOTION_NOT_FOUND"},
		{"minimum spend", QuoteRequest{Items: oneItem(1000), PromotionCode: "BIGMIN"}, http.StatusUnprocessableEntity, "PROMOTION_MIN_SPEND"},
		{"currency mismatch", QuoteRequest{Items: oneItem(1000), GiftCardCode: "EURO"}, http.StatusUnprocessableEntity, "GIFT_CARD_CURRENCY"},
		{"unknown gift card", QuoteRequest{Items: oneItem(1000), GiftCardCode: "NOPE"}, http.StatusUnprocessableEntity, "GIFT_CARD_NOT_FOUND"},
		{"no items", QuoteRequest{}, http.StatusBadRequest, "BAD_REQUEST"},
		{"negative shipping", QuoteRequest{Items: oneItem(1000), ShippingCents: -1}, http.StatusBadRequest, "BAD_REQUEST"},
		{"zero quantity", QuoteRequest{Items: []LineItem{{SKU: "a", Qty: 0, UnitPriceCents: 10}}}, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(t, fixtureLookups())
			_, err := svc.Quote(context.Background(), "cust-1", tc.req)
			requireAppError(t, err, tc.status, tc.code)
			require.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.QuoteTotal.WithLabelValues("rejected")))
		})
	}
}

func TestQuoteMissingLoyaltyAccount(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	_, err := svc.Quote(context.Background(), "cust-9", QuoteRequest{Items: oneItem(1000), RedeemPoints: 10})
	requireAppError(t, err, http.StatusUnprocessableEntity, "LOYALTY_ACCOUNT_NOT_FOUND")
}

func TestQuoteLookupFailureIsInternal(t *testing.T) {
	svc, _ := newTestService(t, stubLookups{err: errors.New("connection reset")})
	_, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000), PromotionCode: "HALF"})
	requireAppError(t, err, http.StatusInternalServerError, "INTERNAL")
	require.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.QuoteTotal.WithLabelValues("error")))
}

func TestGetScopesToCustomer(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000)})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "cust-1", q.ID)
	require.NoError(t, err)
	require.Equal(t, q.Total, got.Total)
	require.Equal(t, q.ID, got.ID)

	_, err = svc.Get(context.Background(), "cust-2", q.ID)
	requireAppError(t, err, http.StatusNotFound, "QUOTE_NOT_FOUND")

	_, err = svc.Get(context.Background(), "cust-1", "not-a-uuid")
	requireAppError(t, err, http.StatusNotFound, "QUOTE_NOT_FOUND")
}

func TestQuoteExpires(t *testing.T) {
	svc, mr := newTestService(t, fixtureLookups())
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000)})
	require.NoError(t, err)
	mr.FastForward(11 * time.Minute)
	_, err = svc.Get(context.Background(), "cust-1", q.ID)
	requireAppError(t, err, http.StatusNotFound, "QUOTE_NOT_FOUND")
}

func TestSettleDropsQuote(t *testing.T) {
	svc, mr := newTestService(t, fixtureLookups())
	settler := &stubSettler{}
	svc.Settler = settler
	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000), GiftCardCode: "GIFT900"})
	require.NoError(t, err)

	orderID := "5b0c1a4e-7f44-4d0a-8a55-2a4c8f1f6f10"
	settled, err := svc.Settle(context.Background(), "cust-1", q.ID, orderID)
	require.NoError(t, err)
	require.Equal(t, q.ID, settled.ID)
	require.Equal(t, []string{orderID}, settler.calls)
	require.False(t, mr.Exists(quoteKeyPrefix+q.ID))
	require.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.SettlementTotal.WithLabelValues("ok")))
}

func TestSettleErrors(t *testing.T) {
	orderID := "5b0c1a4e-7f44-4d0a-8a55-2a4c8f1f6f10"
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"duplicate", ErrAlreadySettled, http.StatusConflict, "ORDER_ALREADY_SETTLED"},
		{"balance changed", ErrBalanceChanged, http.StatusUnprocessableEntity, "BALANCE_CHANGED"},
		{"internal", errors.New("tx aborted"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mr := newTestService(t, fixtureLookups())
			svc.Settler = &stubSettler{err: tc.err}
			q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000)})
			require.NoError(t, err)
			_, err = svc.Settle(context.Background(), "cust-1", q.ID, orderID)
			requireAppError(t, err, tc.status, tc.code)
			require.True(t, mr.Exists(quoteKeyPrefix+q.ID))
		})
	}
}

func TestSettleRejectsBadOrderID(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	svc.Settler = &stubSettler{}
	_, err := svc.Settle(context.Background(), "cust-1", "5b0c1a4e-7f44-4d0a-8a55-2a4c8f1f6f10", "order-1")
	requireAppError(t, err, http.StatusBadRequest, "BAD_REQUEST")
}

func TestQuoteExpiryDefaultsWithoutCache(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	svc.Cache = nil

	q, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000)})
	require.NoError(t, err)
	require.Equal(t, testNow.UTC(), q.CreatedAt)
	require.Equal(t, testNow.UTC().Add(DefaultQuoteTTL), q.ExpiresAt)

	var zero QuoteCache
	require.Equal(t, DefaultQuoteTTL, zero.TTL())
	require.Equal(t, 10*time.Minute, NewQuoteCache(nil, 10*time.Minute).TTL())
}
