package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/giftcard"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

type promotion struct {
	Code         string
	Kind         string
	Value        int64
	MinSpend     int64
	UsageLimit   *int32
	PerUserLimit *int32
	ValidTo      *time.Time
}

type card struct {
	Code     string
	Balance  int64
	Currency string
}

type account struct {
	CustomerID string
	Points     int64
	Referral   int64
}

func int32p(v int32) *int32 { return &v }

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	currency := os.Getenv("CURRENCY_CODE")
	if currency == "" {
		currency = "IDR"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer conn.Close(context.Background())

	expired := time.Now().Add(-24 * time.Hour)
	promotions := []promotion{
		{Code: "WELCOME10", Kind: "percent", Value: 10, PerUserLimit: int32p(1)},
		{Code: "HALFOFF", Kind: "percent", Value: 50, MinSpend: 100000, UsageLimit: int32p(100)},
		{Code: "HEMAT25K", Kind: "fixed", Value: 25000, MinSpend: 150000},
		{Code: "ONGKIRGRATIS", Kind: "free_shipping"},
		{Code: "LAMA", Kind: "percent", Value: 20, ValidTo: &expired},
	}
	cards := []card{
		{Code: "GIFT-1000-0001", Balance: 100000, Currency: currency},
		{Code: "GIFT-5000-0002", Balance: 500000, Currency: currency},
		{Code: "GIFT-EMPTY-0003", Balance: 0, Currency: currency},
	}
	accounts := []account{
		{CustomerID: "budi@example.com", Points: 5000, Referral: 20000},
		{CustomerID: "siti@example.com", Points: 120000},
		{CustomerID: "andi@example.com", Referral: 50000},
	}

	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if err := seedPromotions(ctx, tx, promotions, logger); err != nil {
			return err
		}
		if err := seedGiftCards(ctx, tx, cards, logger); err != nil {
			return err
		}
		return seedAccounts(ctx, tx, accounts, logger)
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Msg("seeding completed")
}

func seedPromotions(ctx context.Context, tx pgx.Tx, rows []promotion, logger zerolog.Logger) error {
	for _, p := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO promotions (code, kind, value, min_spend, usage_limit, per_user_limit, valid_to)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (code) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value,
				min_spend = EXCLUDED.min_spend, usage_limit = EXCLUDED.usage_limit,
				per_user_limit = EXCLUDED.per_user_limit, valid_to = EXCLUDED.valid_to, updated_at = now()`,
			p.Code, p.Kind, p.Value, p.MinSpend, p.UsageLimit, p.PerUserLimit, p.ValidTo)
		if err != nil {
			return err
		}
	}
	logger.Info().Int("count", len(rows)).Msg("promotions seeded")
	return nil
}

func seedGiftCards(ctx context.Context, tx pgx.Tx, rows []card, logger zerolog.Logger) error {
	for _, c := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO gift_cards (code, balance_cents, currency)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO UPDATE SET balance_cents = EXCLUDED.balance_cents, updated_at = now()`,
			giftcard.NormalizeCode(c.Code), c.Balance, c.Currency)
		if err != nil {
			return err
		}
	}
	logger.Info().Int("count", len(rows)).Msg("gift cards seeded")
	return nil
}

func seedAccounts(ctx context.Context, tx pgx.Tx, rows []account, logger zerolog.Logger) error {
	for _, a := range rows {
		_, err := tx.Exec(ctx, `
			INSERT INTO loyalty_accounts (customer_id, points, referral_credit_cents)
			VALUES ($1, $2, $3)
			ON CONFLICT (customer_id) DO UPDATE SET points = EXCLUDED.points,
				referral_credit_cents = EXCLUDED.referral_credit_cents, updated_at = now()`,
			a.CustomerID, a.Points, a.Referral)
		if err != nil {
			return err
		}
	}
	logger.Info().Int("count", len(rows)).Msg("loyalty accounts seeded")
	return nil
}
