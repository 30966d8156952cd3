package checkout

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/resilience"
)

func TestGuardedLookupsOpensOnStoreFailures(t *testing.T) {
	breaker := resilience.NewBreaker("instrument_store", 2, 0.5, time.Minute)
	svc, _ := newTestService(t, GuardedLookups{Next: stubLookups{err: errors.New("connection reset")}, Breaker: breaker})

	req := QuoteRequest{Items: oneItem(1000), PromotionCode: "HALF"}
	for i := 0; i < 2; i++ {
		_, err := svc.Quote(context.Background(), "cust-1", req)
		requireAppError(t, err, http.StatusInternalServerError, "INTERNAL")
	}
	_, err := svc.Quote(context.Background(), "cust-1", req)
	requireAppError(t, err, http.StatusServiceUnavailable, "UNAVAILABLE")
}

func TestGuardedLookupsIgnoresUnknownCodes(t *testing.T) {
	breaker := resilience.NewBreaker("instrument_store", 1, 0.5, time.Minute)
	svc, _ := newTestService(t, GuardedLookups{Next: fixtureLookups(), Breaker: breaker})

	for i := 0; i < 3; i++ {
		_, err := svc.Quote(context.Background(), "cust-1", QuoteRequest{Items: oneItem(1000), GiftCardCode: "MISSING"})
		requireAppError(t, err, http.StatusUnprocessableEntity, "GIFT_CARD_NOT_FOUND")
	}
	require.Equal(t, resilience.Closed, breaker.State())
}
