// Package notification fans a settlement outcome out to the user's allowed
// channels. One channel failing never suppresses the others, and an in-app
// record is written no matter what the preference filtering decides.
package notification

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
)

// PreferenceStore answers whether a user wants a message on a channel.
// Backed by an external preference service; the dispatcher only asks.
type PreferenceStore interface {
	IsChannelAllowed(ctx context.Context, userID uuid.UUID, channel string, category string) (bool, error)
	IsInQuietHours(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Senders deliver to one external channel each.
type Senders interface {
	SendEmail(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error
	SendSms(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error
	SendPush(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error
}

type Dispatcher struct {
	notifications repository.NotificationRepo
	prefs         PreferenceStore
	senders       Senders
	logger        logger.Logger
}

func NewDispatcher(notifications repository.NotificationRepo, prefs PreferenceStore, senders Senders, l logger.Logger) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		prefs:         prefs,
		senders:       senders,
		logger:        l,
	}
}

// Dispatch filters the requested channels against the user's preferences,
// materializes the in-app record, fans out to the surviving channels in
// parallel and writes the per-channel outcome back onto the record.
//
// Dispatch never returns an error: a purchase result already computed must
// not be failed by its announcement.
func (d *Dispatcher) Dispatch(ctx context.Context, userID uuid.UUID, eventType string, category string, channels []string, title string, message string, data map[string]string) {
	delivery := map[string]string{}

	allowed := make([]string, 0, len(channels))
	for _, channel := range channels {
		ok, err := d.channelAllowed(ctx, userID, channel, category)
		if err != nil {
			d.logger.Warn("Preference check failed, skipping channel", "user_id", userID, "channel", channel, "error", err)
			delivery[channel] = models.DeliverySkipped
			continue
		}
		if !ok {
			delivery[channel] = models.DeliverySkipped
			continue
		}
		allowed = append(allowed, channel)
	}

	// The in-app record is the audit trail of "this happened". It exists
	// even when every outbound channel was filtered away.
	record, err := d.notifications.CreateNotification(ctx, models.Notification{
		UserID:    userID,
		EventType: eventType,
		Category:  category,
		Title:     title,
		Message:   message,
		Data:      data,
	})
	if err != nil {
		d.logger.Error("Failed to create notification record", "user_id", userID, "event_type", eventType, "error", err)
		return
	}
	delivery[models.ChannelInApp] = models.DeliverySent

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, channel := range allowed {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()

			status := models.DeliverySent
			if err := d.send(ctx, channel, userID, title, message, data); err != nil {
				d.logger.Warn("Channel delivery failed", "user_id", userID, "channel", channel, "error", err)
				status = models.DeliveryFailed
			}

			mu.Lock()
			delivery[channel] = status
			mu.Unlock()
		}(channel)
	}
	wg.Wait()

	if err := d.notifications.SetDelivery(ctx, record.ID, delivery); err != nil {
		d.logger.Warn("Failed to record delivery summary", "notification_id", record.ID, "error", err)
	}
}

// channelAllowed applies opt-outs and quiet hours. SECURITY messages ignore
// quiet hours: a login alert at 3am is the point of a login alert.
func (d *Dispatcher) channelAllowed(ctx context.Context, userID uuid.UUID, channel string, category string) (bool, error) {
	ok, err := d.prefs.IsChannelAllowed(ctx, userID, channel, category)
	if err != nil || !ok {
		return false, err
	}

	if category == models.CategorySecurity {
		return true, nil
	}

	quiet, err := d.prefs.IsInQuietHours(ctx, userID)
	if err != nil {
		return false, err
	}
	return !quiet, nil
}

func (d *Dispatcher) send(ctx context.Context, channel string, userID uuid.UUID, title string, message string, data map[string]string) error {
	switch channel {
	case models.ChannelEmail:
		return d.senders.SendEmail(ctx, userID, title, message, data)
	case models.ChannelSms:
		return d.senders.SendSms(ctx, userID, title, message, data)
	case models.ChannelPush:
		return d.senders.SendPush(ctx, userID, title, message, data)
	default:
		d.logger.Warn("Unknown notification channel", "channel", channel)
		return nil
	}
}
