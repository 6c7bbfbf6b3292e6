package handlers

import (
	"net/http"

	"theradash/internal/repo"
	"theradash/internal/services"
	"theradash/pkg/models"

	"github.com/labstack/echo/v4"
)

// SyncHandler exposes the manual sync trigger and run status
type SyncHandler struct {
	syncService    *services.SyncService
	checkpointRepo *repo.CheckpointRepository
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncService *services.SyncService, checkpointRepo *repo.CheckpointRepository) *SyncHandler {
	return &SyncHandler{
		syncService:    syncService,
		checkpointRepo: checkpointRepo,
	}
}

// syncRunResponse summarizes one completed sync pass
type syncRunResponse struct {
	Checkpoint *models.SyncCheckpoint `json:"checkpoint"`
}

// syncStatusResponse reports the last completed run, if any. Failed
// runs write no checkpoint, so LastCheckpoint goes stale when sync is
// broken.
type syncStatusResponse struct {
	LastCheckpoint *models.SyncCheckpoint `json:"last_checkpoint"`
}

// TriggerSync runs one sync pass synchronously and reports its result
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	checkpoint, err := h.syncService.Run(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, syncRunResponse{Checkpoint: checkpoint})
}

// GetStatus returns the most recent sync checkpoint
func (h *SyncHandler) GetStatus(c echo.Context) error {
	checkpoint, err := h.checkpointRepo.Latest()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, syncStatusResponse{LastCheckpoint: checkpoint})
}
