package checkout

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/loyalty"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/resilience"
	"github.com/noah-isme/toko-checkout/internal/voucher"
)

// ErrAlreadySettled is returned by a Settler when the order was settled before.
var ErrAlreadySettled = errors.New("checkout: order already settled")

// ErrBalanceChanged is returned by a Settler when an instrument no longer covers the quoted amount.
var ErrBalanceChanged = errors.New("checkout: instrument balance changed since quote")

var instrumentErrors = []struct {
	err     error
	code    string
	message string
}{
	{voucher.ErrNotFound, "PROMOTION_NOT_FOUND", "promotion code not found"},
	{voucher.ErrVoucherExpired, "PROMOTION_EXPIRED", "promotion has expired"},
	{voucher.ErrVoucherInactive, "PROMOTION_INACTIVE", "promotion is not active yet"},
	{voucher.ErrMinimumSpendUnmet, "PROMOTION_MIN_SPEND", "order does not meet the promotion minimum spend"},
	{voucher.ErrUsageLimitReached, "PROMOTION_USAGE_LIMIT", "promotion usage limit reached"},
	{voucher.ErrPerUserLimitReached, "PROMOTION_PER_USER_LIMIT", "promotion already used by this customer"},
	{voucher.ErrNotEligible, "PROMOTION_NOT_ELIGIBLE", "promotion cannot be applied"},
	{giftcard.ErrCardNotFound, "GIFT_CARD_NOT_FOUND", "gift card not found"},
	{giftcard.ErrCardDisabled, "GIFT_CARD_DISABLED", "gift card is disabled"},
	{giftcard.ErrCardExpired, "GIFT_CARD_EXPIRED", "gift card has expired"},
	{giftcard.ErrCardEmpty, "GIFT_CARD_EMPTY", "gift card has no balance"},
	{giftcard.ErrCurrencyMismatch, "GIFT_CARD_CURRENCY", "gift card currency does not match the order"},
	{loyalty.ErrAccountNotFound, "LOYALTY_ACCOUNT_NOT_FOUND", "customer has no loyalty account"},
	{ErrBalanceChanged, "BALANCE_CHANGED", "an instrument balance changed, request a new quote"},
}

// toAppError classifies service errors for the HTTP layer.
func toAppError(err error) error {
	if err == nil || common.IsAppError(err) {
		return err
	}
	for _, ie := range instrumentErrors {
		if errors.Is(err, ie.err) {
			return common.NewAppError(ie.code, ie.message, http.StatusUnprocessableEntity, err)
		}
	}
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError("UNAVAILABLE", "checkout temporarily unavailable", http.StatusServiceUnavailable, err)
	case errors.Is(err, ErrQuoteNotFound):
		return common.NewAppError("QUOTE_NOT_FOUND", "quote not found or expired", http.StatusNotFound, err)
	case errors.Is(err, pricing.ErrInvalidInput), errors.Is(err, loyalty.ErrInvalidPoints):
		return common.NewAppError("BAD_REQUEST", err.Error(), http.StatusBadRequest, err)
	}
	return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, fmt.Errorf("checkout: %w", err))
}
