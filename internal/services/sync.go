package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"theradash/internal/chatstore"
	"theradash/internal/config"
	"theradash/internal/repo"
	"theradash/internal/roster"
	"theradash/pkg/models"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// RemoteSource is the read-only view of the chat-log document store the
// orchestrator consumes. Every call is idempotent on the remote side.
type RemoteSource interface {
	GetUser(ctx context.Context, remoteID string) (*chatstore.UserRecord, error)
	ListConversations(ctx context.Context, remoteID string) ([]chatstore.ConversationRecord, error)
	ListMessages(ctx context.Context, remoteID, conversationID string, since *time.Time) ([]chatstore.MessageRecord, error)
}

// RosterResolver produces the participant set for one run
type RosterResolver interface {
	Resolve(ctx context.Context) ([]roster.Descriptor, error)
}

// RiskNotifier dispatches one high-risk message alert
type RiskNotifier interface {
	SendRiskAlert(ctx context.Context, participantLabel string, riskScore float64, body string, occurredAt time.Time) error
}

// SyncService drives one end-to-end synchronization pass: resolve the
// roster, pull incremental data per participant, persist it, dispatch
// risk alerts, record a checkpoint.
//
// In-process runs are serialized by a mutex. Runs overlapping across
// processes are tolerated: the watermark one of them reads may be
// stale, which only causes redundant refetching that the store's
// unique indexes collapse.
type SyncService struct {
	db       *gorm.DB
	resolver RosterResolver
	remote   RemoteSource
	notifier RiskNotifier
	cfg      config.SyncConfig

	runMu sync.Mutex
}

// NewSyncService creates a new sync orchestrator
func NewSyncService(db *gorm.DB, resolver RosterResolver, remote RemoteSource, notifier RiskNotifier, cfg config.SyncConfig) *SyncService {
	return &SyncService{
		db:       db,
		resolver: resolver,
		remote:   remote,
		notifier: notifier,
		cfg:      cfg,
	}
}

// unitResult is the outcome of one participant's fetch-and-persist work
type unitResult struct {
	conversations int
	messages      int
	maxOccurredAt time.Time
	failedUnits   int
}

// Run executes one sync pass and returns the checkpoint it recorded.
// A directory failure or an unrecoverable store write aborts the run
// with no checkpoint; the next run retries from the same watermark.
func (s *SyncService) Run(ctx context.Context) (*models.SyncCheckpoint, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now().UTC()
	tracer := otel.Tracer("theradash-sync")
	ctx, span := tracer.Start(ctx, "sync.run")
	defer span.End()

	checkpoints := repo.NewCheckpointRepository(s.db)
	watermark, err := checkpoints.LastWatermark()
	if err != nil {
		return nil, fmt.Errorf("failed to load last watermark: %w", err)
	}

	descriptors, err := s.resolver.Resolve(ctx)
	if err != nil {
		// Fail fast: a partial roster would silently drop participants
		return nil, fmt.Errorf("roster resolution failed: %w", err)
	}
	log.Info().Int("roster_size", len(descriptors)).Str("mode", s.cfg.Mode).Msg("Starting sync pass")

	participants := repo.NewParticipantRepository(s.db)
	deactivated, err := participants.DeactivateAll()
	if err != nil {
		return nil, fmt.Errorf("failed to reset active flags: %w", err)
	}
	if deactivated > 0 {
		log.Debug().Int64("count", deactivated).Msg("Reset participants to inactive pending roster")
	}

	totals := unitResult{}
	participantsSynced := 0

	for _, descriptor := range descriptors {
		participant, err := s.upsertParticipant(ctx, participants, descriptor)
		if err != nil {
			log.Error().Err(err).
				Str("remote_id", descriptor.RemoteID).
				Str("redcap_id", descriptor.RedcapID).
				Msg("Failed to upsert participant, skipping unit")
			totals.failedUnits++
			continue
		}
		participantsSynced++

		// Directory-only participants have no chat data yet; they stay
		// on the roster with an empty conversation set.
		if participant.RemoteID == nil {
			continue
		}

		unit := s.syncParticipantUnit(ctx, participant, watermark)
		totals.conversations += unit.conversations
		totals.messages += unit.messages
		totals.failedUnits += unit.failedUnits
		if unit.maxOccurredAt.After(totals.maxOccurredAt) {
			totals.maxOccurredAt = unit.maxOccurredAt
		}
	}

	alertsSent := s.dispatchAlerts(ctx)

	newWatermark := s.nextWatermark(watermark, totals.maxOccurredAt, start)

	checkpoint := &models.SyncCheckpoint{
		RunAt:               start,
		ParticipantsSynced:  participantsSynced,
		ConversationsSynced: totals.conversations,
		MessagesSynced:      totals.messages,
		AlertsSent:          alertsSent,
		FailedUnits:         totals.failedUnits,
		DurationSeconds:     time.Since(start).Seconds(),
		Watermark:           newWatermark,
	}
	if err := checkpoints.Create(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to record sync checkpoint: %w", err)
	}

	span.SetAttributes(
		attribute.Int("sync.participants", participantsSynced),
		attribute.Int("sync.conversations", totals.conversations),
		attribute.Int("sync.messages", totals.messages),
		attribute.Int("sync.alerts", alertsSent),
		attribute.Int("sync.failed_units", totals.failedUnits),
	)
	log.Info().
		Int("participants", participantsSynced).
		Int("conversations", totals.conversations).
		Int("messages", totals.messages).
		Int("alerts", alertsSent).
		Int("failed_units", totals.failedUnits).
		Float64("duration_seconds", checkpoint.DurationSeconds).
		Msg("Sync pass completed")

	return checkpoint, nil
}

// upsertParticipant reconciles one roster descriptor with the local
// store. Matching prefers the remote id; a directory-only row created
// earlier is promoted in place once the directory learns its remote id.
// Directory metadata never gets clobbered by absence: an empty handler
// label or identifier in the incoming data leaves the stored value
// alone.
func (s *SyncService) upsertParticipant(ctx context.Context, participants *repo.ParticipantRepository, descriptor roster.Descriptor) (*models.Participant, error) {
	var participant *models.Participant
	var err error

	if descriptor.RemoteID != "" {
		participant, err = participants.GetByRemoteID(descriptor.RemoteID)
		if err != nil {
			return nil, err
		}
	}
	if participant == nil && descriptor.RedcapID != "" {
		participant, err = participants.GetByRedcapID(descriptor.RedcapID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	created := false
	if participant == nil {
		participant = &models.Participant{}
		created = true
	}

	if descriptor.RemoteID != "" {
		remoteID := descriptor.RemoteID
		participant.RemoteID = &remoteID
	}
	if descriptor.RedcapID != "" {
		redcapID := descriptor.RedcapID
		participant.RedcapID = &redcapID
	}
	if descriptor.ResearchAssistant != "" {
		participant.ResearchAssistant = descriptor.ResearchAssistant
	}
	participant.IsActive = true
	participant.LastSyncedAt = &now

	// Refresh the profile fields the chat store owns
	if participant.RemoteID != nil {
		user, err := s.remote.GetUser(ctx, *participant.RemoteID)
		switch {
		case errors.Is(err, chatstore.ErrNotFound):
			// Enrolled in the directory but not in the chat system yet
		case err != nil:
			log.Warn().Err(err).Str("remote_id", *participant.RemoteID).Msg("Could not refresh participant profile")
		default:
			if user.Identifier != "" {
				participant.Identifier = user.Identifier
			}
			participant.CurrentConversationID = user.CurrentConversationID
		}
	}

	if created {
		if err := participants.Create(participant); err != nil {
			return nil, err
		}
		log.Info().
			Str("remote_id", descriptor.RemoteID).
			Str("redcap_id", descriptor.RedcapID).
			Msg("Created participant")
		return participant, nil
	}
	if err := participants.Update(participant); err != nil {
		return nil, err
	}
	return participant, nil
}

// syncParticipantUnit fetches and persists one participant's new data.
// All fetching happens before the transaction opens, so a slow remote
// call never holds a database transaction. A failed conversation-level
// fetch skips just that conversation; a failed conversation listing or
// store write fails the whole unit. Either way the run continues with
// the next participant.
func (s *SyncService) syncParticipantUnit(ctx context.Context, participant *models.Participant, watermark *time.Time) unitResult {
	result := unitResult{}
	remoteID := *participant.RemoteID

	conversations, err := s.remote.ListConversations(ctx, remoteID)
	if err != nil {
		log.Error().Err(err).Str("remote_id", remoteID).Msg("Conversation fetch failed, skipping participant")
		result.failedUnits++
		return result
	}

	type fetchedConversation struct {
		record   chatstore.ConversationRecord
		messages []chatstore.MessageRecord
	}

	fetched := make([]fetchedConversation, 0, len(conversations))
	for _, conversation := range conversations {
		messages, err := s.remote.ListMessages(ctx, remoteID, conversation.ID, watermark)
		if err != nil {
			log.Error().Err(err).
				Str("remote_id", remoteID).
				Str("conversation_id", conversation.ID).
				Msg("Message fetch failed, skipping conversation")
			result.failedUnits++
			continue
		}
		fetched = append(fetched, fetchedConversation{record: conversation, messages: messages})

		// The watermark advances only past timestamps we actually saw
		for _, message := range messages {
			if message.Timestamp.After(result.maxOccurredAt) {
				result.maxOccurredAt = message.Timestamp
			}
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		conversationRepo := repo.NewConversationRepository(tx)
		messageRepo := repo.NewMessageRepository(tx)

		for _, fc := range fetched {
			conversation := &models.Conversation{
				RemoteID:      fc.record.ID,
				ParticipantID: participant.ID,
				Prompt:        fc.record.Prompt,
				StartedAt:     fc.record.CreatedAt.UTC(),
			}
			inserted, err := conversationRepo.InsertIfAbsent(conversation)
			if err != nil {
				return fmt.Errorf("conversation insert failed: %w", err)
			}
			if inserted {
				result.conversations++
			} else {
				// Row already existed; load it for the message FK
				existing, err := conversationRepo.GetByRemoteID(fc.record.ID)
				if err != nil {
					return fmt.Errorf("conversation lookup failed: %w", err)
				}
				if existing == nil {
					return fmt.Errorf("conversation %s vanished after conflict", fc.record.ID)
				}
				conversation = existing
			}

			for _, record := range fc.messages {
				message := &models.Message{
					RemoteID:       record.ID,
					ConversationID: conversation.ID,
					ParticipantID:  participant.ID,
					Body:           record.Text,
					RiskScore:      record.RiskScore,
					OccurredAt:     record.Timestamp.UTC(),
				}
				inserted, err := messageRepo.InsertIfAbsent(message)
				if err != nil {
					return fmt.Errorf("message insert failed: %w", err)
				}
				if inserted {
					result.messages++
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("remote_id", remoteID).Msg("Unit persist failed")
		return unitResult{failedUnits: result.failedUnits + 1}
	}

	return result
}

// dispatchAlerts sends SMS alerts for undispatched messages over the
// risk threshold, including rows from earlier runs whose dispatch
// failed. The claim-dispatch-release dance keeps alerts at-most-once
// under concurrent runs while a transport failure releases the claim
// for the next pass.
func (s *SyncService) dispatchAlerts(ctx context.Context) int {
	messageRepo := repo.NewMessageRepository(s.db)
	participantRepo := repo.NewParticipantRepository(s.db)

	pending, err := messageRepo.ListUndispatchedAbove(s.cfg.RiskThreshold)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list undispatched high-risk messages")
		return 0
	}

	sent := 0
	for _, message := range pending {
		claimed, err := messageRepo.ClaimAlert(message.ID)
		if err != nil {
			log.Error().Err(err).Str("message_id", message.ID.String()).Msg("Failed to claim alert")
			continue
		}
		if !claimed {
			// Another run got there first
			continue
		}

		label := message.ParticipantID.String()
		if participant, err := participantRepo.GetByID(message.ParticipantID); err == nil {
			label = participantLabel(participant)
		}

		if err := s.notifier.SendRiskAlert(ctx, label, message.RiskScore, message.Body, message.OccurredAt); err != nil {
			log.Error().Err(err).Str("message_id", message.ID.String()).Msg("Risk alert dispatch failed, releasing claim")
			if releaseErr := messageRepo.ReleaseAlert(message.ID); releaseErr != nil {
				log.Error().Err(releaseErr).Str("message_id", message.ID.String()).Msg("Failed to release alert claim")
			}
			continue
		}
		sent++
	}

	return sent
}

// nextWatermark picks the cursor for the following run. The fetched
// maximum wins when anything was fetched; otherwise the previous
// watermark carries forward so a no-op run never regresses. A first
// run that fetched nothing stamps its own start time to bound future
// full rescans of an initially empty remote store.
func (s *SyncService) nextWatermark(previous *time.Time, fetchedMax time.Time, runStart time.Time) *time.Time {
	if !fetchedMax.IsZero() {
		if previous != nil && previous.After(fetchedMax) {
			return previous
		}
		utc := fetchedMax.UTC()
		return &utc
	}
	if previous != nil {
		return previous
	}
	return &runStart
}

// participantLabel picks the most recognizable identity for alert text
func participantLabel(participant *models.Participant) string {
	switch {
	case participant.Identifier != "":
		return participant.Identifier
	case participant.RemoteID != nil:
		return *participant.RemoteID
	case participant.RedcapID != nil:
		return "REDCap " + *participant.RedcapID
	default:
		return participant.ID.String()
	}
}
