package db

import (
	"fmt"

	"theradash/internal/config"
	"theradash/pkg/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase creates a new database connection
func NewDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// AutoMigrate runs database migrations using GORM
func AutoMigrate(db *gorm.DB) error {
	log.Info().Msg("Running GORM AutoMigrate...")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn().Err(err).Msg("Could not create uuid-ossp extension")
	}

	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	if err := createCustomIndexes(db); err != nil {
		log.Warn().Err(err).Msg("Failed to create some custom indexes")
	}

	log.Info().Msg("GORM AutoMigrate completed")
	return nil
}

// createCustomIndexes creates the indexes GORM tags cannot express.
// The unique indexes on remote ids are load-bearing: insert-if-absent
// during sync relies on the constraint living in the database, so two
// overlapping runs can both attempt the same insert and exactly one
// row survives.
func createCustomIndexes(db *gorm.DB) error {
	indexes := []string{
		// Remote id is optional on participants; uniqueness applies only when present
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_remote_id ON participants(remote_id) WHERE remote_id IS NOT NULL`,

		// Directory-only participants are matched by their REDCap record id
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_participants_redcap_id ON participants(redcap_id) WHERE redcap_id IS NOT NULL AND remote_id IS NULL`,

		// Risk review queue: undispatched high-risk messages per participant
		`CREATE INDEX IF NOT EXISTS idx_messages_alert_pending ON messages(risk_score, occurred_at) WHERE alert_sent = false`,

		// Timeline reads per participant without a conversation join
		`CREATE INDEX IF NOT EXISTS idx_messages_participant_occurred ON messages(participant_id, occurred_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Warn().Err(err).Str("index", idx).Msg("Failed to create index")
		}
	}

	return nil
}

// RunMigrations is the main migration function called from main
func RunMigrations(db *gorm.DB) error {
	log.Info().Msg("Starting database migrations...")

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}

	log.Info().Msg("All migrations completed")
	return nil
}
