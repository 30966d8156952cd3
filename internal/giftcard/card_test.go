package giftcard

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Minute)
	later := now.Add(24 * time.Hour)

	cases := []struct {
		name string
		card Card
		want error
	}{
		{"valid", Card{BalanceCents: 500, Currency: "IDR", ExpiresAt: &later}, nil},
		{"disabled", Card{BalanceCents: 500, Disabled: true}, ErrCardDisabled},
		{"expired", Card{BalanceCents: 500, ExpiresAt: &expired}, ErrCardExpired},
		{"empty", Card{BalanceCents: 0}, ErrCardEmpty},
		{"currency", Card{BalanceCents: 500, Currency: "USD"}, ErrCurrencyMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.card.Validate(now, "idr"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" abcd-1234 efgh"); got != "ABCD1234EFGH" {
		t.Fatalf("unexpected normalised code %q", got)
	}
}
