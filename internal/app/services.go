package app

import (
	"theradash/internal/chatstore"
	"theradash/internal/config"
	"theradash/internal/redcap"
	"theradash/internal/repo"
	"theradash/internal/roster"
	"theradash/internal/services"
	"theradash/internal/twilio"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Services holds all application services
type Services struct {
	DB               *gorm.DB
	ParticipantRepo  *repo.ParticipantRepository
	ConversationRepo *repo.ConversationRepository
	MessageRepo      *repo.MessageRepository
	CheckpointRepo   *repo.CheckpointRepository
	ChatStoreClient  *chatstore.Client
	REDCapClient     *redcap.Client
	TwilioClient     *twilio.Client
	AlertService     *services.AlertService
	SyncService      *services.SyncService
	SyncScheduler    *services.SyncScheduler
}

// NewServices creates a new services container
func NewServices(db *gorm.DB, cfg *config.Config) *Services {
	// Initialize repositories
	participantRepo := repo.NewParticipantRepository(db)
	conversationRepo := repo.NewConversationRepository(db)
	messageRepo := repo.NewMessageRepository(db)
	checkpointRepo := repo.NewCheckpointRepository(db)

	// Initialize integration clients
	chatStoreClient := chatstore.NewClient(cfg.ChatStore.BaseURL, cfg.ChatStore.APIToken, cfg.ChatStore.Timeout)
	redcapClient := redcap.NewClient(cfg.REDCap)
	twilioClient := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	if !twilioClient.Configured() {
		log.Warn().Msg("Twilio credentials not set, risk alerts will fail to dispatch")
	}

	resolver := roster.NewResolver(redcapClient, chatStoreClient, cfg.Sync, cfg.REDCap)
	alertService := services.NewAlertService(twilioClient, cfg.Twilio, cfg.Sync.Timezone)
	syncService := services.NewSyncService(db, resolver, chatStoreClient, alertService, cfg.Sync)
	syncScheduler := services.NewSyncScheduler(syncService, cfg.Sync.Interval)

	return &Services{
		DB:               db,
		ParticipantRepo:  participantRepo,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		CheckpointRepo:   checkpointRepo,
		ChatStoreClient:  chatStoreClient,
		REDCapClient:     redcapClient,
		TwilioClient:     twilioClient,
		AlertService:     alertService,
		SyncService:      syncService,
		SyncScheduler:    syncScheduler,
	}
}
