package main

import (
	"flag"
	"os"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/migrations"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg := config.MustLoad()
	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), os.Getenv("OBS_LOG_LEVEL")).With().Str("component", "migrate").Logger()

	if *down > 0 {
		if err := migrations.Down(cfg.DatabaseURL, *down, logger); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
		logger.Info().Int("steps", *down).Msg("rolled back")
		return
	}
	if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrate up")
	}
}
