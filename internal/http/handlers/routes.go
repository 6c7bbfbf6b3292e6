package handlers

import (
	"theradash/internal/app"

	"github.com/labstack/echo/v4"
)

// SetupRoutes wires the trigger surface. Authentication, sessions and
// the dashboard views live in a separate service.
func SetupRoutes(api *echo.Group, services *app.Services) {
	syncHandler := NewSyncHandler(services.SyncService, services.CheckpointRepo)

	api.POST("/sync", syncHandler.TriggerSync)
	api.GET("/sync/status", syncHandler.GetStatus)
}
