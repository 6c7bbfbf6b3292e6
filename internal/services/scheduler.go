package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SyncScheduler triggers sync passes on a fixed interval. Manual
// triggers (the HTTP surface) call SyncService.Run directly; the
// orchestrator's own locking keeps the two from interleaving.
type SyncScheduler struct {
	syncService *SyncService
	interval    time.Duration
	mutex       sync.Mutex
	isRunning   bool
	stopChan    chan struct{}
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(syncService *SyncService, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		syncService: syncService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins periodic sync passes. The first pass runs immediately.
func (s *SyncScheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	if s.isRunning {
		s.mutex.Unlock()
		return
	}
	s.isRunning = true
	s.mutex.Unlock()

	log.Info().Dur("interval", s.interval).Msg("Starting sync scheduler")

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.stopChan:
				log.Info().Msg("Stopping sync scheduler")
				return
			case <-ctx.Done():
				log.Info().Msg("Context cancelled, stopping sync scheduler")
				return
			}
		}
	}()
}

// Stop stops the periodic passes
func (s *SyncScheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isRunning {
		return
	}

	s.isRunning = false
	close(s.stopChan)
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	if _, err := s.syncService.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled sync pass failed")
	}
}
