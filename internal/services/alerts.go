package services

import (
	"context"
	"fmt"
	"time"

	"theradash/internal/config"

	"github.com/rs/zerolog/log"
)

// SMSSender sends one SMS message
type SMSSender interface {
	SendSMS(ctx context.Context, from, to, body string) (string, error)
}

// AlertService sends SMS alerts about high-risk messages to the study
// admins. It is stateless: whether an alert already went out for a
// message is tracked on the message row, not here.
type AlertService struct {
	sms      SMSSender
	cfg      config.TwilioConfig
	location *time.Location
}

// NewAlertService creates a new alert service. An invalid timezone
// falls back to UTC rather than failing startup.
func NewAlertService(sms SMSSender, cfg config.TwilioConfig, timezone string) *AlertService {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Str("timezone", timezone).Msg("Unknown timezone, alert timestamps will use UTC")
		location = time.UTC
	}
	return &AlertService{
		sms:      sms,
		cfg:      cfg,
		location: location,
	}
}

// SendRiskAlert notifies every configured admin number about one
// high-risk message. It succeeds when at least one recipient accepted
// the message; individual rejections are logged and do not stop the
// remaining sends.
func (s *AlertService) SendRiskAlert(ctx context.Context, participantLabel string, riskScore float64, body string, occurredAt time.Time) error {
	if len(s.cfg.AdminNumbers) == 0 {
		return fmt.Errorf("no admin numbers configured for risk alerts")
	}

	text := s.formatRiskAlert(participantLabel, riskScore, body, occurredAt)

	sentCount := 0
	var lastError error
	for _, number := range s.cfg.AdminNumbers {
		sid, err := s.sms.SendSMS(ctx, s.cfg.FromNumber, number, text)
		if err != nil {
			log.Error().Err(err).Str("to", number).Msg("Failed to send risk alert")
			lastError = err
			continue
		}
		log.Info().Str("to", number).Str("sid", sid).Msg("Risk alert sent")
		sentCount++
	}

	if sentCount == 0 {
		return fmt.Errorf("risk alert reached no recipients: %w", lastError)
	}
	return nil
}

// formatRiskAlert builds the alert text. The preview is capped at 100
// characters so a long message never blows past SMS segment limits.
func (s *AlertService) formatRiskAlert(participantLabel string, riskScore float64, body string, occurredAt time.Time) string {
	preview := body
	if len(preview) > 100 {
		preview = preview[:100]
	}

	return fmt.Sprintf(
		"THERABOT ALERT\nHigh-risk message detected!\n\nUser: %s\nRisk Score: %.2f\nTime: %s\n\nMessage preview: %s...",
		participantLabel,
		riskScore,
		occurredAt.In(s.location).Format("2006-01-02 03:04:05 PM MST"),
		preview,
	)
}
