package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/logger"
)

// AllowAllPrefs permits every channel and never reports quiet hours.
// Stands in until a real preference service is wired.
type AllowAllPrefs struct{}

func (AllowAllPrefs) IsChannelAllowed(ctx context.Context, userID uuid.UUID, channel string, category string) (bool, error) {
	return true, nil
}

func (AllowAllPrefs) IsInQuietHours(ctx context.Context, userID uuid.UUID) (bool, error) {
	return false, nil
}

// LogSenders writes deliveries to the log instead of external channels.
// Used when no email/sms/push integration is configured.
type LogSenders struct {
	Logger logger.Logger
}

func (s LogSenders) SendEmail(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	s.Logger.Info("Email notification", "user_id", userID, "title", title, "message", message)
	return nil
}

func (s LogSenders) SendSms(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	s.Logger.Info("SMS notification", "user_id", userID, "title", title, "message", message)
	return nil
}

func (s LogSenders) SendPush(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	s.Logger.Info("Push notification", "user_id", userID, "title", title, "message", message)
	return nil
}
