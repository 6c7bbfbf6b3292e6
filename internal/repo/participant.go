package repo

import (
	"errors"

	"theradash/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantRepository handles participant data access
type ParticipantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// GetByID gets a participant by primary key
func (r *ParticipantRepository) GetByID(id uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.Where("id = ?", id).First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetByRemoteID gets a participant by chat store id, nil when absent
func (r *ParticipantRepository) GetByRemoteID(remoteID string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.Where("remote_id = ?", remoteID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// GetByRedcapID gets a participant by directory record id, nil when absent
func (r *ParticipantRepository) GetByRedcapID(redcapID string) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.Where("redcap_id = ?", redcapID).First(&participant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

// Create creates a new participant
func (r *ParticipantRepository) Create(participant *models.Participant) error {
	return r.db.Create(participant).Error
}

// Update saves all fields of an existing participant
func (r *ParticipantRepository) Update(participant *models.Participant) error {
	return r.db.Save(participant).Error
}

// DeactivateAll soft-deactivates every active participant. The sync
// pass reactivates the ones the fresh roster names, so a mode switch
// retires stale participants without touching their history.
func (r *ParticipantRepository) DeactivateAll() (int64, error) {
	result := r.db.Model(&models.Participant{}).
		Where("is_active = ?", true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// ListActive returns all active participants
func (r *ParticipantRepository) ListActive() ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.Where("is_active = ?", true).Order("created_at asc").Find(&participants).Error
	return participants, err
}
