package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/events"
	"github.com/noah-isme/toko-checkout/internal/lock"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/store"
)

// Beginner opens transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Locker serialises work per key. lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Publisher emits settlement events. *events.Bus satisfies it.
type Publisher interface {
	Emit(ctx context.Context, topic, dedupeID string, payload any) error
}

// Service applies the debits of a quote exactly once per order id.
type Service struct {
	DB      Beginner
	Locks   Locker
	Events  Publisher
	LockTTL time.Duration
}

// Settle debits every instrument the quote drew on inside one transaction.
// Settlements of one customer are serialised on a lock, so the balance and
// per-customer usage guards see each other's commits. A second settlement of
// the same order or the same quote fails with checkout.ErrAlreadySettled and
// changes nothing.
func (s *Service) Settle(ctx context.Context, orderID string, q checkout.Quote) error {
	if s == nil || s.DB == nil || s.Locks == nil {
		return errors.New("settlement: service not configured")
	}
	if orderID == "" || q.ID == "" || q.CustomerID == "" {
		return errors.New("settlement: order id and quote are required")
	}

	err := s.Locks.WithLock(ctx, lock.Key("settle", q.CustomerID), s.LockTTL, func(ctx context.Context) error {
		return s.apply(ctx, orderID, q)
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateOrder):
		return fmt.Errorf("%w: %s", checkout.ErrAlreadySettled, orderID)
	case errors.Is(err, store.ErrInsufficientBalance):
		return fmt.Errorf("%w: %v", checkout.ErrBalanceChanged, err)
	default:
		return err
	}

	if s.Events != nil {
		payload := events.SettledPayload{
			OrderID:          orderID,
			CustomerID:       q.CustomerID,
			QuoteID:          q.ID,
			Currency:         q.Currency,
			PromoDiscount:    q.PromoDiscount,
			PointsUsed:       q.PointsUsed,
			PointsDiscount:   q.PointsDiscount,
			GiftCardDiscount: q.GiftCardDiscount,
			Total:            q.Total,
		}
		if err := s.Events.Emit(ctx, events.TopicCheckoutSettled, orderID, payload); err != nil {
			// debits are committed; the receipt can be replayed from the redemptions table
			zerolog.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("publish settlement")
		}
	}
	return nil
}

func (s *Service) apply(ctx context.Context, orderID string, q checkout.Quote) (err error) {
	ctx, span := obs.StartSpan(ctx, "settlement.apply", attribute.String("checkout.order_id", orderID))
	defer func() { obs.EndSpan(span, err) }()

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("settlement: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	st := store.New(tx)
	if err := st.InsertRedemption(ctx, store.Redemption{
		OrderID:          orderID,
		CustomerID:       q.CustomerID,
		QuoteID:          q.ID,
		PromotionCode:    q.PromotionCode,
		GiftCardCode:     q.GiftCardCode,
		Subtotal:         q.SubtotalCents,
		Shipping:         q.ShippingCents,
		PromoDiscount:    q.PromoDiscount,
		ReferralApplied:  q.ReferralAppliedCents,
		PointsUsed:       q.PointsUsed,
		PointsDiscount:   q.PointsDiscount,
		GiftCardDiscount: q.GiftCardDiscount,
		Total:            q.Total,
	}); err != nil {
		return err
	}
	if err := st.RecordPromotionUsage(ctx, q.PromotionCode, q.CustomerID, orderID, q.PromoDiscount-q.ReferralAppliedCents); err != nil {
		return err
	}
	if err := st.ConsumeReferralCredit(ctx, q.CustomerID, q.ReferralAppliedCents); err != nil {
		return err
	}
	if err := st.DebitPoints(ctx, q.CustomerID, q.PointsUsed); err != nil {
		return err
	}
	if err := st.DebitGiftCard(ctx, q.GiftCardCode, q.GiftCardDiscount); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("settlement: commit: %w", err)
	}
	return nil
}
