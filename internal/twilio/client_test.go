package twilio_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"theradash/internal/twilio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		sid, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", sid)
		assert.Equal(t, "secret", token)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001111", r.PostFormValue("From"))
		assert.Equal(t, "+15552223333", r.PostFormValue("To"))
		assert.Equal(t, "test body", r.PostFormValue("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM456", "status": "queued"}`))
	}))
	defer server.Close()

	client := twilio.NewClientWithBaseURL("AC123", "secret", server.URL)
	sid, err := client.SendSMS(context.Background(), "+15550001111", "+15552223333", "test body")
	require.NoError(t, err)
	assert.Equal(t, "SM456", sid)
}

func TestSendSMSAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 21211, "message": "Invalid 'To' phone number"}`))
	}))
	defer server.Close()

	client := twilio.NewClientWithBaseURL("AC123", "secret", server.URL)
	_, err := client.SendSMS(context.Background(), "+15550001111", "bogus", "test body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
	assert.Contains(t, err.Error(), "Invalid 'To' phone number")
}

func TestSendSMSRejectedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid": "SM456", "status": "failed", "error_message": "carrier rejected"}`))
	}))
	defer server.Close()

	client := twilio.NewClientWithBaseURL("AC123", "secret", server.URL)
	_, err := client.SendSMS(context.Background(), "+15550001111", "+15552223333", "test body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier rejected")
}

func TestUnconfiguredClient(t *testing.T) {
	client := twilio.NewClient("", "")
	assert.False(t, client.Configured())

	_, err := client.SendSMS(context.Background(), "+15550001111", "+15552223333", "test body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
