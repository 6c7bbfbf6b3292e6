package repo

import (
	"errors"

	"theradash/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository handles conversation data access
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// InsertIfAbsent inserts a conversation unless its remote id is already
// known, and reports whether a row was actually written. Conversations
// are immutable once recorded, so a conflict never updates the existing
// row. The dedup lives in the database's unique index, which keeps
// overlapping sync runs safe: both may attempt the insert, one wins.
func (r *ConversationRepository) InsertIfAbsent(conversation *models.Conversation) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoNothing: true,
	}).Create(conversation)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByRemoteID gets a conversation by its remote id, nil when absent
func (r *ConversationRepository) GetByRemoteID(remoteID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.Where("remote_id = ?", remoteID).First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListByParticipant returns all conversations of one participant
func (r *ConversationRepository) ListByParticipant(participantID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.Where("participant_id = ?", participantID).
		Order("started_at asc").
		Find(&conversations).Error
	return conversations, err
}
