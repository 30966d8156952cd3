package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

var (
	// ErrDuplicateOrder is returned when a redemption for the order id or the quote id already exists.
	ErrDuplicateOrder = errors.New("store: order already redeemed")
	// ErrInsufficientBalance is returned when a guarded debit matched no row.
	ErrInsufficientBalance = errors.New("store: insufficient balance")
)

// Redemption is the row persisted once per finalised order.
type Redemption struct {
	OrderID          string
	CustomerID       string
	QuoteID          string
	PromotionCode    string
	GiftCardCode     string
	Subtotal         pricing.Money
	Shipping         pricing.Money
	PromoDiscount    pricing.Money
	ReferralApplied  pricing.Money
	PointsUsed       int64
	PointsDiscount   pricing.Money
	GiftCardDiscount pricing.Money
	Total            pricing.Money
}

const insertRedemption = `INSERT INTO redemptions (
    order_id, customer_id, quote_id, promotion_code, gift_card_code, subtotal_cents, shipping_cents,
    promo_discount_cents, referral_applied_cents, points_used, points_discount_cents,
    gift_card_discount_cents, total_cents
) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT DO NOTHING`

// InsertRedemption records the amounts applied to an order. Order id and quote id
// are both unique, so settling either one twice fails with ErrDuplicateOrder.
func (s *Store) InsertRedemption(ctx context.Context, r Redemption) error {
	tag, err := s.DB.Exec(ctx, insertRedemption,
		r.OrderID, r.CustomerID, r.QuoteID, r.PromotionCode, r.GiftCardCode, r.Subtotal, r.Shipping,
		r.PromoDiscount, r.ReferralApplied, r.PointsUsed, r.PointsDiscount, r.GiftCardDiscount, r.Total,
	)
	if err != nil {
		return fmt.Errorf("store: insert redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateOrder
	}
	return nil
}

const debitGiftCard = `UPDATE gift_cards
SET balance_cents = balance_cents - $2, updated_at = now()
WHERE code = $1 AND balance_cents >= $2 AND NOT disabled`

// DebitGiftCard subtracts amount from the card if the balance still covers it.
func (s *Store) DebitGiftCard(ctx context.Context, code string, amount pricing.Money) error {
	if amount <= 0 {
		return nil
	}
	return s.guardedExec(ctx, "debit gift card", debitGiftCard, code, amount)
}

const debitPoints = `UPDATE loyalty_accounts
SET points = points - $2, updated_at = now()
WHERE customer_id = $1 AND points >= $2`

// DebitPoints subtracts points from the customer's loyalty balance if it still covers them.
func (s *Store) DebitPoints(ctx context.Context, customerID string, points int64) error {
	if points <= 0 {
		return nil
	}
	return s.guardedExec(ctx, "debit points", debitPoints, customerID, points)
}

const consumeReferralCredit = `UPDATE loyalty_accounts
SET referral_credit_cents = referral_credit_cents - $2, updated_at = now()
WHERE customer_id = $1 AND referral_credit_cents >= $2`

// ConsumeReferralCredit subtracts the referral credit that was applied to the order.
func (s *Store) ConsumeReferralCredit(ctx context.Context, customerID string, amount pricing.Money) error {
	if amount <= 0 {
		return nil
	}
	return s.guardedExec(ctx, "consume referral credit", consumeReferralCredit, customerID, amount)
}

const recordPromotionUsage = `WITH usage AS (
    INSERT INTO promotion_usages (promotion_code, customer_id, order_id, amount_cents)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (promotion_code, order_id) DO NOTHING
    RETURNING promotion_code
)
UPDATE promotions p SET used_count = p.used_count + 1
WHERE p.code IN (SELECT promotion_code FROM usage)
  AND (p.usage_limit IS NULL OR p.used_count < p.usage_limit)
  AND (p.per_user_limit IS NULL OR (
      SELECT count(*) FROM promotion_usages pu
      WHERE pu.promotion_code = $1 AND pu.customer_id = $2
  ) < p.per_user_limit)`

// RecordPromotionUsage stores the usage row and bumps the promotion counter while
// both the global and the per-customer usage limits allow it. The usage row
// inserted by the same statement is not visible to the count.
func (s *Store) RecordPromotionUsage(ctx context.Context, code, customerID, orderID string, amount pricing.Money) error {
	if code == "" {
		return nil
	}
	return s.guardedExec(ctx, "record promotion usage", recordPromotionUsage, code, customerID, orderID, amount)
}

func (s *Store) guardedExec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.DB.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return fmt.Errorf("store: %s: %w", op, ErrInsufficientBalance)
		}
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: %s: %w", op, ErrInsufficientBalance)
	}
	return nil
}
