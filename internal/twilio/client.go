package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// Client sends SMS through the Twilio Messages API
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// messageResponse is the subset of the Twilio response we care about
type messageResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// apiError is Twilio's error body for non-2xx responses
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new Twilio client
func NewClient(accountSID, authToken string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint (for tests)
func NewClientWithBaseURL(accountSID, authToken, baseURL string) *Client {
	c := NewClient(accountSID, authToken)
	c.baseURL = baseURL
	return c
}

// Configured reports whether credentials are present. An unconfigured
// client is valid in development; sends just fail with a clear error.
func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != ""
}

// SendSMS sends one message and returns the Twilio message SID
func (c *Client) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("twilio client not configured")
	}

	form := url.Values{
		"From": {from},
		"To":   {to},
		"Body": {body},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return "", fmt.Errorf("twilio error %d: %s", apiErr.Code, apiErr.Message)
		}
		return "", fmt.Errorf("twilio returned status %d", resp.StatusCode)
	}

	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("failed to decode twilio response: %w", err)
	}
	if msg.Status == "failed" {
		return "", fmt.Errorf("twilio rejected message: %s", msg.ErrorMessage)
	}

	return msg.SID, nil
}
