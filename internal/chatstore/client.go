package chatstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the remote store has no document for the
// requested id.
var ErrNotFound = errors.New("chatstore: not found")

// UserRecord is a user document from the remote conversation store
type UserRecord struct {
	ID                    string `json:"id"`
	Identifier            string `json:"identifier"` // email or display name from the chat system's auth
	CurrentConversationID string `json:"current_conversation_id"`
}

// ConversationRecord is a conversation header from the remote store
type ConversationRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRecord is a single chat turn from the remote store
type MessageRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Text           string    `json:"text"`
	RiskScore      float64   `json:"risk_score"`
	Timestamp      time.Time `json:"timestamp"`
}

// Client is a read-only accessor to the chat-log document store.
// Every read is charged per document on the remote side, which is why
// ListMessages takes a since cursor: callers bound each fetch to
// documents newer than their last watermark instead of re-reading
// history on every pass.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new chat store client
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListUsers fetches every user document in the store
func (c *Client) ListUsers(ctx context.Context) ([]UserRecord, error) {
	var users []UserRecord
	if err := c.get(ctx, "/v1/users", nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUser fetches a single user document. Returns ErrNotFound when the
// id has no document, which callers treat as "not enrolled yet" rather
// than a failure.
func (c *Client) GetUser(ctx context.Context, remoteID string) (*UserRecord, error) {
	var user UserRecord
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(remoteID), nil, &user); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", remoteID, err)
	}
	return &user, nil
}

// ListConversations fetches all conversation headers for a user.
// Headers are few and cheap, so no since filtering is applied here.
func (c *Client) ListConversations(ctx context.Context, remoteID string) ([]ConversationRecord, error) {
	var convos []ConversationRecord
	path := "/v1/users/" + url.PathEscape(remoteID) + "/conversations"
	if err := c.get(ctx, path, nil, &convos); err != nil {
		return nil, fmt.Errorf("failed to list conversations for user %s: %w", remoteID, err)
	}
	return convos, nil
}

// ListMessages fetches messages for one conversation, ordered by
// timestamp ascending. When since is non-nil only messages strictly
// newer than it are returned.
func (c *Client) ListMessages(ctx context.Context, remoteID, conversationID string, since *time.Time) ([]MessageRecord, error) {
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var messages []MessageRecord
	path := "/v1/users/" + url.PathEscape(remoteID) + "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.get(ctx, path, query, &messages); err != nil {
		return nil, fmt.Errorf("failed to list messages for conversation %s: %w", conversationID, err)
	}
	return messages, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("chat store returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
