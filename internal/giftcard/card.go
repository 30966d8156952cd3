package giftcard

import (
	"errors"
	"strings"
	"time"

	"github.com/noah-isme/toko-checkout/internal/pricing"
)

var (
	// ErrCardNotFound is returned when no gift card matches the supplied code.
	ErrCardNotFound = errors.New("gift card not found")
	// ErrCardDisabled indicates the card was deactivated by an operator.
	ErrCardDisabled = errors.New("gift card disabled")
	// ErrCardExpired indicates the card is past its expiry instant.
	ErrCardExpired = errors.New("gift card expired")
	// ErrCardEmpty indicates the card has no remaining balance.
	ErrCardEmpty = errors.New("gift card has no balance")
	// ErrCurrencyMismatch indicates the card is denominated in another currency.
	ErrCurrencyMismatch = errors.New("gift card currency mismatch")
)

// Card is a snapshot of a gift card at lookup time.
type Card struct {
	Code         string
	BalanceCents pricing.Money
	Currency     string
	ExpiresAt    *time.Time
	Disabled     bool
}

// Validate checks the card can be drawn against for an order in the given currency.
func (c Card) Validate(now time.Time, currency string) error {
	if c.Disabled {
		return ErrCardDisabled
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return ErrCardExpired
	}
	if c.BalanceCents <= 0 {
		return ErrCardEmpty
	}
	if currency != "" && c.Currency != "" && !strings.EqualFold(c.Currency, currency) {
		return ErrCurrencyMismatch
	}
	return nil
}

// Instrument returns the value passed to pricing.Compose.
func (c Card) Instrument() *pricing.GiftCard {
	return &pricing.GiftCard{BalanceCents: c.BalanceCents}
}

// NormalizeCode strips separators so "abcd-1234 efgh" and "ABCD1234EFGH" resolve to the same card.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
