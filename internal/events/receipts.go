package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// SettledPayload is published once an order's discounts have been debited.
type SettledPayload struct {
	OrderID          string `json:"orderId"`
	CustomerID       string `json:"customerId"`
	QuoteID          string `json:"quoteId"`
	Currency         string `json:"currency"`
	PromoDiscount    int64  `json:"promoDiscountCents"`
	PointsUsed       int64  `json:"pointsUsed"`
	PointsDiscount   int64  `json:"pointsDiscountCents"`
	GiftCardDiscount int64  `json:"giftCardDiscountCents"`
	Total            int64  `json:"totalCents"`
}

// ReceiptHandler consumes checkout:settled tasks. Receipt rendering and email
// live in the storefront; this handler records the settled breakdown.
type ReceiptHandler struct {
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h ReceiptHandler) ProcessTask(_ context.Context, task *asynq.Task) error {
	var p SettledPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	if p.OrderID == "" {
		return fmt.Errorf("%s without order id: %w", task.Type(), asynq.SkipRetry)
	}
	h.Logger.Info().
		Str("order_id", p.OrderID).
		Str("customer_id", p.CustomerID).
		Str("currency", p.Currency).
		Int64("promo_discount_cents", p.PromoDiscount).
		Int64("points_used", p.PointsUsed).
		Int64("points_discount_cents", p.PointsDiscount).
		Int64("gift_card_discount_cents", p.GiftCardDiscount).
		Int64("total_cents", p.Total).
		Msg("checkout settled")
	return nil
}

// NewServeMux routes checkout task types to their handlers.
func NewServeMux(receipts ReceiptHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TopicCheckoutSettled, receipts)
	return mux
}
