package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/loyalty"
	"github.com/noah-isme/toko-checkout/internal/voucher"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads discount instruments from the promotion, gift card and loyalty tables.
type Store struct {
	DB DBTX
}

// New constructs a Store.
func New(db DBTX) *Store {
	return &Store{DB: db}
}

const getPromotion = `SELECT p.code, p.kind, p.value, p.min_spend, p.active, p.usage_limit, p.used_count,
       p.per_user_limit, p.valid_from, p.valid_to,
       (SELECT count(*) FROM promotion_usages u WHERE u.promotion_code = p.code AND u.customer_id = $2)::int4
FROM promotions p
WHERE p.code = $1`

// Promotion loads the voucher rule for code along with the customer's usage count.
func (s *Store) Promotion(ctx context.Context, code, customerID string) (voucher.Rule, error) {
	var (
		rule voucher.Rule
		kind string
	)
	err := s.DB.QueryRow(ctx, getPromotion, strings.ToUpper(strings.TrimSpace(code)), customerID).Scan(
		&rule.Code,
		&kind,
		&rule.Value,
		&rule.MinSpend,
		&rule.Active,
		&rule.UsageLimit,
		&rule.UsedCount,
		&rule.PerUserLimit,
		&rule.ValidFrom,
		&rule.ValidTo,
		&rule.PerUserUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return voucher.Rule{}, voucher.ErrNotFound
		}
		return voucher.Rule{}, fmt.Errorf("store: get promotion: %w", err)
	}
	parsed, err := voucher.ParseKind(kind)
	if err != nil {
		return voucher.Rule{}, err
	}
	rule.Kind = parsed
	return rule, nil
}

const getGiftCard = `SELECT code, balance_cents, currency, expires_at, disabled
FROM gift_cards
WHERE code = $1`

// GiftCard loads a gift card by its normalised code.
func (s *Store) GiftCard(ctx context.Context, code string) (giftcard.Card, error) {
	var (
		card      giftcard.Card
		expiresAt *time.Time
	)
	err := s.DB.QueryRow(ctx, getGiftCard, giftcard.NormalizeCode(code)).Scan(
		&card.Code,
		&card.BalanceCents,
		&card.Currency,
		&expiresAt,
		&card.Disabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return giftcard.Card{}, giftcard.ErrCardNotFound
		}
		return giftcard.Card{}, fmt.Errorf("store: get gift card: %w", err)
	}
	card.ExpiresAt = expiresAt
	return card, nil
}

const getLoyaltyAccount = `SELECT customer_id, points, referral_credit_cents
FROM loyalty_accounts
WHERE customer_id = $1`

// LoyaltyAccount loads the customer's redeemable points and referral credit.
func (s *Store) LoyaltyAccount(ctx context.Context, customerID string) (loyalty.Account, error) {
	var acct loyalty.Account
	err := s.DB.QueryRow(ctx, getLoyaltyAccount, customerID).Scan(
		&acct.CustomerID,
		&acct.Points,
		&acct.ReferralCreditCents,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return loyalty.Account{}, loyalty.ErrAccountNotFound
		}
		return loyalty.Account{}, fmt.Errorf("store: get loyalty account: %w", err)
	}
	return acct, nil
}
