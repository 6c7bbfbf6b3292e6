package chatstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"theradash/internal/chatstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/uid-1", r.URL.Path)
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "uid-1", "identifier": "p101@example.edu", "current_conversation_id": "conv-9"}`))
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "tok-abc", time.Second)
	user, err := client.GetUser(context.Background(), "uid-1")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", user.ID)
	assert.Equal(t, "p101@example.edu", user.Identifier)
	assert.Equal(t, "conv-9", user.CurrentConversationID)
}

func TestGetUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "", time.Second)
	_, err := client.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, chatstore.ErrNotFound)
}

func TestListConversations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/uid-1/conversations", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "conv-1", "user_id": "uid-1", "prompt": "daily check-in", "created_at": "2026-03-01T10:00:00Z"},
			{"id": "conv-2", "user_id": "uid-1", "prompt": "", "created_at": "2026-03-02T08:30:00Z"}
		]`))
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "", time.Second)
	convos, err := client.ListConversations(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, convos, 2)

	assert.Equal(t, "conv-1", convos[0].ID)
	assert.Equal(t, "daily check-in", convos[0].Prompt)
	assert.Equal(t, 2026, convos[0].CreatedAt.Year())
}

func TestListMessagesSinceCursor(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/uid-1/conversations/conv-1/messages", r.URL.Path)
		assert.Equal(t, since.Format(time.RFC3339Nano), r.URL.Query().Get("since"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": "msg-1", "conversation_id": "conv-1", "user_id": "uid-1", "text": "hello", "risk_score": 0.1, "timestamp": "2026-03-01T13:00:00Z"}
		]`))
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "", time.Second)
	messages, err := client.ListMessages(context.Background(), "uid-1", "conv-1", &since)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, 0.1, messages[0].RiskScore)
}

func TestListMessagesNoCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("since"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "", time.Second)
	messages, err := client.ListMessages(context.Background(), "uid-1", "conv-1", nil)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := chatstore.NewClient(server.URL, "", time.Second)
	_, err := client.ListUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
