package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/loyalty"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/pricing"
	"github.com/noah-isme/toko-checkout/internal/voucher"
)

// Lookups resolves discount instruments from the external store.
type Lookups interface {
	Promotion(ctx context.Context, code, customerID string) (voucher.Rule, error)
	GiftCard(ctx context.Context, code string) (giftcard.Card, error)
	LoyaltyAccount(ctx context.Context, customerID string) (loyalty.Account, error)
}

// Settler applies the balance debits of a quote exactly once per order id.
type Settler interface {
	Settle(ctx context.Context, orderID string, q Quote) error
}

// LineItem is one cart line as priced by the storefront.
type LineItem struct {
	SKU            string `json:"sku" validate:"required,max=64"`
	Qty            int    `json:"qty" validate:"required,min=1,max=10000"`
	UnitPriceCents int64  `json:"unitPriceCents" validate:"gte=0,lte=100000000000"`
}

// QuoteRequest is the payload for POST /checkout/quote.
type QuoteRequest struct {
	Items             []LineItem `json:"items" validate:"required,min=1,max=200,dive"`
	ShippingCents     int64      `json:"shippingCents" validate:"gte=0,lte=100000000000"`
	PromotionCode     string     `json:"promotionCode,omitempty" validate:"omitempty,max=64"`
	GiftCardCode      string     `json:"giftCardCode,omitempty" validate:"omitempty,max=64"`
	RedeemPoints      int64      `json:"redeemPoints,omitempty" validate:"gte=0"`
	UseReferralCredit bool       `json:"useReferralCredit,omitempty"`
}

// Quote is a priced checkout. It is cached until ExpiresAt and settled at most once.
type Quote struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customerId"`
	Currency      string `json:"currency"`
	SubtotalCents int64  `json:"subtotalCents"`
	ShippingCents int64  `json:"shippingCents"`
	pricing.Breakdown
	PromotionCode        string    `json:"promotionCode,omitempty"`
	GiftCardCode         string    `json:"giftCardCode,omitempty"`
	PointsUsed           int64     `json:"pointsUsed"`
	ReferralAppliedCents int64     `json:"referralAppliedCents"`
	CreatedAt            time.Time `json:"createdAt"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

// Service builds quotes from a request and the customer's instruments.
type Service struct {
	Lookups   Lookups
	Cache     *QuoteCache
	Settler   Settler
	Validator *validator.Validate
	Currency  string
	Metrics   *obs.CheckoutMetrics
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) validate(req QuoteRequest) error {
	v := s.Validator
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(req); err != nil {
		appErr := common.NewAppError("BAD_REQUEST", "invalid checkout request", http.StatusBadRequest, err)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			appErr.Details = fields
		}
		return appErr
	}
	return nil
}

// Quote prices req for customerID. Instruments are validated before they reach
// the composer; a rejected instrument fails the whole quote.
func (s *Service) Quote(ctx context.Context, customerID string, req QuoteRequest) (Quote, error) {
	ctx, span := obs.StartSpan(ctx, "checkout.quote", attribute.Int("checkout.items", len(req.Items)))
	q, err := s.quote(ctx, customerID, req)
	if err != nil {
		err = toAppError(err)
		s.Metrics.Quote(resultOf(err))
		obs.EndSpan(span, err)
		return Quote{}, err
	}
	s.Metrics.Quote("ok")
	span.SetAttributes(attribute.String("checkout.quote_id", q.ID), attribute.Int64("checkout.total_cents", q.Total))
	obs.EndSpan(span, nil)
	return q, nil
}

func (s *Service) quote(ctx context.Context, customerID string, req QuoteRequest) (Quote, error) {
	if s == nil || s.Lookups == nil {
		return Quote{}, errors.New("checkout service not configured")
	}
	if strings.TrimSpace(customerID) == "" {
		return Quote{}, common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, nil)
	}
	if err := s.validate(req); err != nil {
		return Quote{}, err
	}

	now := s.now()
	items := make([]pricing.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, pricing.Item{Qty: it.Qty, UnitPrice: it.UnitPriceCents})
	}
	subtotal := pricing.Subtotal(items)
	shipping := req.ShippingCents

	var in pricing.Instruments
	promoCode := strings.ToUpper(strings.TrimSpace(req.PromotionCode))
	if promoCode != "" {
		rule, err := s.Lookups.Promotion(ctx, promoCode, customerID)
		if err != nil {
			return Quote{}, err
		}
		if err := rule.Validate(now, subtotal); err != nil {
			return Quote{}, err
		}
		promo, err := rule.Promotion()
		if err != nil {
			return Quote{}, err
		}
		in.Promotion = &promo
	}

	if req.RedeemPoints > 0 || req.UseReferralCredit {
		acct, err := s.Lookups.LoyaltyAccount(ctx, customerID)
		if err != nil {
			return Quote{}, err
		}
		in.Points, err = loyalty.Redeem(req.RedeemPoints, acct.Points)
		if err != nil {
			return Quote{}, err
		}
		if req.UseReferralCredit && acct.ReferralCreditCents > 0 {
			in.ReferralDiscount = acct.ReferralCreditCents
		}
	}

	cardCode := giftcard.NormalizeCode(strings.TrimSpace(req.GiftCardCode))
	if cardCode != "" {
		card, err := s.Lookups.GiftCard(ctx, cardCode)
		if err != nil {
			return Quote{}, err
		}
		if err := card.Validate(now, s.Currency); err != nil {
			return Quote{}, err
		}
		in.GiftCard = card.Instrument()
	}

	breakdown, err := pricing.Compose(subtotal, shipping, in)
	if err != nil {
		return Quote{}, err
	}

	referral := pricing.ReferralApplied(subtotal, shipping, in.Promotion, breakdown)
	q := Quote{
		ID:                   uuid.NewString(),
		CustomerID:           customerID,
		Currency:             s.Currency,
		SubtotalCents:        subtotal,
		ShippingCents:        shipping,
		Breakdown:            breakdown,
		PointsUsed:           loyalty.Settle(in.Points, breakdown.PointsDiscount),
		ReferralAppliedCents: referral,
		CreatedAt:            now,
		ExpiresAt:            now.Add(s.Cache.TTL()),
	}
	if in.Promotion != nil {
		q.PromotionCode = promoCode
	}
	if in.GiftCard != nil && breakdown.GiftCardDiscount > 0 {
		q.GiftCardCode = cardCode
	}

	if err := s.Cache.Put(ctx, q); err != nil {
		return Quote{}, fmt.Errorf("cache quote: %w", err)
	}

	s.Metrics.Discount("promotion", breakdown.PromoDiscount-referral)
	s.Metrics.Discount("referral", referral)
	s.Metrics.Discount("points", breakdown.PointsDiscount)
	s.Metrics.Discount("gift_card", breakdown.GiftCardDiscount)

	zerolog.Ctx(ctx).Debug().
		Str("quote_id", q.ID).
		Int64("subtotal_cents", subtotal).
		Int64("total_cents", breakdown.Total).
		Msg("checkout quoted")
	return q, nil
}

// Get returns a cached quote that belongs to customerID.
func (s *Service) Get(ctx context.Context, customerID, id string) (Quote, error) {
	q, err := s.load(ctx, customerID, id)
	if err != nil {
		return Quote{}, toAppError(err)
	}
	return q, nil
}

func (s *Service) load(ctx context.Context, customerID, id string) (Quote, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Quote{}, ErrQuoteNotFound
	}
	q, err := s.Cache.Get(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	if q.CustomerID != customerID {
		return Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

// Settle finalises quote id against orderID. The quote is dropped from the
// cache once its debits have been applied.
func (s *Service) Settle(ctx context.Context, customerID, id, orderID string) (q Quote, err error) {
	ctx, span := obs.StartSpan(ctx, "checkout.settle",
		attribute.String("checkout.quote_id", id), attribute.String("checkout.order_id", orderID))
	defer func() { obs.EndSpan(span, err) }()

	if s == nil || s.Settler == nil {
		return Quote{}, toAppError(errors.New("settlement not configured"))
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return Quote{}, common.NewAppError("BAD_REQUEST", "orderId must be a uuid", http.StatusBadRequest, err)
	}
	q, err = s.load(ctx, customerID, id)
	if err != nil {
		s.Metrics.Settlement("not_found")
		return Quote{}, toAppError(err)
	}
	if err := s.Settler.Settle(ctx, orderID, q); err != nil {
		switch {
		case errors.Is(err, ErrAlreadySettled):
			s.Metrics.Settlement("duplicate")
			return Quote{}, common.NewAppError("ORDER_ALREADY_SETTLED", "order has already been settled", http.StatusConflict, err)
		case errors.Is(err, ErrBalanceChanged):
			s.Metrics.Settlement("balance_changed")
		default:
			s.Metrics.Settlement("error")
		}
		return Quote{}, toAppError(err)
	}
	s.Metrics.Settlement("ok")
	if err := s.Cache.Delete(ctx, q.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("quote_id", q.ID).Msg("drop settled quote")
	}
	return q, nil
}

func resultOf(err error) string {
	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		return "rejected"
	}
	return "error"
}
