package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"theradash/internal/config"
	"theradash/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendSMS(ctx context.Context, from, to, body string) (string, error) {
	args := m.Called(ctx, from, to, body)
	return args.String(0), args.Error(1)
}

func twilioConfig(numbers ...string) config.TwilioConfig {
	return config.TwilioConfig{
		FromNumber:   "+15550001111",
		AdminNumbers: numbers,
	}
}

func TestSendRiskAlertFormatsMessage(t *testing.T) {
	sms := new(MockSMSSender)
	var captured string
	sms.On("SendSMS", mock.Anything, "+15550001111", "+15552223333", mock.Anything).
		Run(func(args mock.Arguments) { captured = args.String(3) }).
		Return("SM1", nil)

	svc := services.NewAlertService(sms, twilioConfig("+15552223333"), "America/New_York")
	occurredAt := time.Date(2026, 3, 1, 16, 30, 0, 0, time.UTC)

	err := svc.SendRiskAlert(context.Background(), "p101@example.edu", 0.92, "I feel hopeless", occurredAt)
	require.NoError(t, err)

	assert.Contains(t, captured, "THERABOT ALERT")
	assert.Contains(t, captured, "User: p101@example.edu")
	assert.Contains(t, captured, "Risk Score: 0.92")
	// 16:30 UTC is 11:30 AM eastern in March
	assert.Contains(t, captured, "11:30:00 AM EST")
	assert.Contains(t, captured, "Message preview: I feel hopeless...")
}

func TestSendRiskAlertTruncatesPreview(t *testing.T) {
	sms := new(MockSMSSender)
	var captured string
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.String(3) }).
		Return("SM1", nil)

	svc := services.NewAlertService(sms, twilioConfig("+15552223333"), "UTC")
	longBody := strings.Repeat("x", 250)

	err := svc.SendRiskAlert(context.Background(), "uid-1", 0.8, longBody, time.Now())
	require.NoError(t, err)

	preview := captured[strings.Index(captured, "Message preview: ")+len("Message preview: "):]
	assert.Equal(t, strings.Repeat("x", 100)+"...", preview)
}

func TestSendRiskAlertFansOutToAllAdmins(t *testing.T) {
	sms := new(MockSMSSender)
	sms.On("SendSMS", mock.Anything, mock.Anything, "+15552223333", mock.Anything).Return("SM1", nil).Once()
	sms.On("SendSMS", mock.Anything, mock.Anything, "+15554445555", mock.Anything).Return("SM2", nil).Once()

	svc := services.NewAlertService(sms, twilioConfig("+15552223333", "+15554445555"), "UTC")
	err := svc.SendRiskAlert(context.Background(), "uid-1", 0.8, "body", time.Now())
	require.NoError(t, err)
	sms.AssertExpectations(t)
}

func TestSendRiskAlertSucceedsOnPartialDelivery(t *testing.T) {
	sms := new(MockSMSSender)
	sms.On("SendSMS", mock.Anything, mock.Anything, "+15552223333", mock.Anything).
		Return("", errors.New("rejected")).Once()
	sms.On("SendSMS", mock.Anything, mock.Anything, "+15554445555", mock.Anything).
		Return("SM2", nil).Once()

	svc := services.NewAlertService(sms, twilioConfig("+15552223333", "+15554445555"), "UTC")
	err := svc.SendRiskAlert(context.Background(), "uid-1", 0.8, "body", time.Now())
	assert.NoError(t, err)
}

func TestSendRiskAlertFailsWhenNoRecipientAccepts(t *testing.T) {
	sms := new(MockSMSSender)
	sms.On("SendSMS", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("gateway down"))

	svc := services.NewAlertService(sms, twilioConfig("+15552223333"), "UTC")
	err := svc.SendRiskAlert(context.Background(), "uid-1", 0.8, "body", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
}

func TestSendRiskAlertRequiresAdminNumbers(t *testing.T) {
	svc := services.NewAlertService(new(MockSMSSender), twilioConfig(), "UTC")
	err := svc.SendRiskAlert(context.Background(), "uid-1", 0.8, "body", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin numbers")
}
