package repo

import (
	"theradash/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository handles message data access
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// InsertIfAbsent inserts a message unless its remote id already exists
// and reports whether a row was written. Re-ingesting the same remote
// message, within a run or across runs, collapses to the existing row.
func (r *MessageRepository) InsertIfAbsent(message *models.Message) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoNothing: true,
	}).Create(message)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListUndispatchedAbove returns messages over the risk threshold whose
// alert has not gone out yet. This intentionally covers rows from
// earlier runs too, so an alert that failed to send is retried on the
// next pass instead of being lost.
func (r *MessageRepository) ListUndispatchedAbove(threshold float64) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("risk_score >= ? AND alert_sent = ?", threshold, false).
		Order("occurred_at asc").
		Find(&messages).Error
	return messages, err
}

// ClaimAlert atomically flips alert_sent false -> true and reports
// whether this caller won the claim. Under concurrent runs both may
// select the same message, but the conditional update lets exactly one
// of them dispatch.
func (r *MessageRepository) ClaimAlert(id uuid.UUID) (bool, error) {
	result := r.db.Model(&models.Message{}).
		Where("id = ? AND alert_sent = ?", id, false).
		Update("alert_sent", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseAlert returns a claimed message to the undispatched pool after
// a transport failure, so a later pass retries it.
func (r *MessageRepository) ReleaseAlert(id uuid.UUID) error {
	return r.db.Model(&models.Message{}).
		Where("id = ?", id).
		Update("alert_sent", false).Error
}

// CountByParticipant returns how many messages a participant has
func (r *MessageRepository) CountByParticipant(participantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("participant_id = ?", participantID).
		Count(&count).Error
	return count, err
}
