package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel is the base model for all persisted entities
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook to generate UUID if not set
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Participant represents a monitored study participant.
//
// At least one of RedcapID (directory identity) and RemoteID (chat store
// identity) is always set. Participants are never hard-deleted; a roster
// change flips IsActive instead, so conversation and message history
// keeps valid foreign keys.
type Participant struct {
	BaseModel
	RemoteID              *string    `gorm:"uniqueIndex" json:"remote_id"`
	RedcapID              *string    `gorm:"index" json:"redcap_id"`
	Identifier            string     `gorm:"size:255" json:"identifier"` // email or username from the chat store profile
	ResearchAssistant     string     `gorm:"size:100" json:"research_assistant"`
	CurrentConversationID string     `gorm:"size:100" json:"current_conversation_id"`
	IsActive              bool       `gorm:"default:true;index" json:"is_active"`
	LastSyncedAt          *time.Time `json:"last_synced_at"`

	// Relations
	Conversations []Conversation `gorm:"foreignKey:ParticipantID" json:"conversations,omitempty"`
	Messages      []Message      `gorm:"foreignKey:ParticipantID" json:"messages,omitempty"`
}

// Conversation represents a chat session owned by one participant.
// Rows are insert-only: a conversation observed remotely is recorded
// once and never updated afterwards.
type Conversation struct {
	BaseModel
	RemoteID      string    `gorm:"uniqueIndex;not null" json:"remote_id"`
	ParticipantID uuid.UUID `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"participant_id"`
	Prompt        string    `gorm:"type:text" json:"prompt"`
	StartedAt     time.Time `gorm:"not null;index" json:"started_at"` // UTC

	// Relations
	Participant *Participant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
	Messages    []Message    `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// Message represents a single chat turn.
//
// RemoteID is globally unique in the local store: re-ingesting the same
// remote message collapses to the existing row. ParticipantID duplicates
// the conversation's owner so risk queries skip a join.
type Message struct {
	BaseModel
	RemoteID       string     `gorm:"uniqueIndex;not null" json:"remote_id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"conversation_id"`
	ParticipantID  uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"participant_id"`
	Body           string     `gorm:"type:text;not null" json:"body"`
	RiskScore      float64    `gorm:"default:0" json:"risk_score"` // 0.0-1.0, scored by the chat system
	AlertSent      bool       `gorm:"default:false;index" json:"alert_sent"`
	IsReviewed     bool       `gorm:"default:false" json:"is_reviewed"`
	ReviewedByID   *uuid.UUID `gorm:"type:uuid" json:"reviewed_by_id"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	OccurredAt     time.Time  `gorm:"not null;index" json:"occurred_at"` // UTC

	// Relations
	Conversation *Conversation `gorm:"foreignKey:ConversationID" json:"conversation,omitempty"`
	Participant  *Participant  `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
}

// SyncCheckpoint is the append-only ledger of completed sync runs.
// Watermark carries the "since" cursor for the next run and is
// monotonically non-decreasing across rows. Rows are never updated.
type SyncCheckpoint struct {
	BaseModel
	RunAt               time.Time  `gorm:"not null;index" json:"run_at"`
	ParticipantsSynced  int        `gorm:"default:0" json:"participants_synced"`
	ConversationsSynced int        `gorm:"default:0" json:"conversations_synced"`
	MessagesSynced      int        `gorm:"default:0" json:"messages_synced"`
	AlertsSent          int        `gorm:"default:0" json:"alerts_sent"`
	FailedUnits         int        `gorm:"default:0" json:"failed_units"`
	DurationSeconds     float64    `json:"duration_seconds"`
	Watermark           *time.Time `gorm:"index" json:"watermark"`
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&Participant{},
		&Conversation{},
		&Message{},
		&SyncCheckpoint{},
	}
}
