package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"theradash/internal/config"
	"theradash/internal/http/handlers"
	"theradash/internal/repo"
	"theradash/internal/roster"
	"theradash/internal/services"
	"theradash/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context) ([]roster.Descriptor, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]roster.Descriptor), args.Error(1)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.GetAllModels()...))
	return db
}

func TestTriggerSync(t *testing.T) {
	db := newTestDB(t)
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything).Return([]roster.Descriptor{}, nil)

	syncService := services.NewSyncService(db, resolver, nil, nil, config.SyncConfig{Mode: config.ModeUIDs})
	handler := handlers.NewSyncHandler(syncService, repo.NewCheckpointRepository(db))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handler.TriggerSync(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Checkpoint *models.SyncCheckpoint `json:"checkpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Checkpoint)
	assert.Equal(t, 0, body.Checkpoint.ParticipantsSynced)
}

func TestTriggerSyncFailure(t *testing.T) {
	db := newTestDB(t)
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything).Return(nil, errors.New("directory unreachable"))

	syncService := services.NewSyncService(db, resolver, nil, nil, config.SyncConfig{Mode: config.ModeRedcap})
	handler := handlers.NewSyncHandler(syncService, repo.NewCheckpointRepository(db))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.TriggerSync(c)
	require.Error(t, err)

	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Code)
}

func TestGetStatus(t *testing.T) {
	db := newTestDB(t)
	checkpoints := repo.NewCheckpointRepository(db)
	handler := handlers.NewSyncHandler(nil, checkpoints)

	e := echo.New()

	// No runs yet
	req := httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler.GetStatus(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_checkpoint":null`)

	runAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, checkpoints.Create(&models.SyncCheckpoint{RunAt: runAt, MessagesSynced: 5}))

	req = httptest.NewRequest(http.MethodGet, "/sync/status", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler.GetStatus(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LastCheckpoint *models.SyncCheckpoint `json:"last_checkpoint"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.LastCheckpoint)
	assert.Equal(t, 5, body.LastCheckpoint.MessagesSynced)
}
