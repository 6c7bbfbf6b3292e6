package repo

import (
	"errors"
	"time"

	"theradash/pkg/models"

	"gorm.io/gorm"
)

// CheckpointRepository handles the append-only sync run ledger
type CheckpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository creates a new checkpoint repository
func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// Create appends one checkpoint row. Checkpoints are never updated or
// deleted; the table is the audit trail of sync runs.
func (r *CheckpointRepository) Create(checkpoint *models.SyncCheckpoint) error {
	return r.db.Create(checkpoint).Error
}

// Latest returns the most recent checkpoint, nil when no run has
// completed yet
func (r *CheckpointRepository) Latest() (*models.SyncCheckpoint, error) {
	var checkpoint models.SyncCheckpoint
	err := r.db.Order("run_at desc").First(&checkpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &checkpoint, nil
}

// LastWatermark returns the watermark of the most recent checkpoint,
// nil on a fresh store (first run fetches everything)
func (r *CheckpointRepository) LastWatermark() (*time.Time, error) {
	checkpoint, err := r.Latest()
	if err != nil || checkpoint == nil {
		return nil, err
	}
	return checkpoint.Watermark, nil
}
