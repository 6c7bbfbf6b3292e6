package main

import (
	"context"
	"os"
	"time"

	"theradash/internal/app"
	"theradash/internal/config"
	"theradash/internal/db"
	"theradash/internal/telemetry"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// One-shot sync pass for cron or manual invocation. Exits non-zero when
// the run fails outright; partial unit failures are recorded in the
// checkpoint and exit zero.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, using environment variables")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	shutdown, _, err := telemetry.InitTelemetry()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
		shutdown = func() {}
	}
	defer shutdown()

	database, err := db.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := db.RunMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	services := app.NewServices(database, cfg)

	checkpoint, err := services.SyncService.Run(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Sync run failed")
		shutdown()
		os.Exit(1)
	}

	log.Info().
		Int("participants", checkpoint.ParticipantsSynced).
		Int("messages", checkpoint.MessagesSynced).
		Int("alerts", checkpoint.AlertsSent).
		Int("failed_units", checkpoint.FailedUnits).
		Msg("Sync run finished")
}
