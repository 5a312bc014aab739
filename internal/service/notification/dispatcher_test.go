package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/repository/postgres"
	"github.com/emeka-o/billvault/internal/testutil"
)

type fakePrefs struct {
	disallowed map[string]bool
	quietHours bool
	checkErr   error
}

func (p fakePrefs) IsChannelAllowed(ctx context.Context, userID uuid.UUID, channel string, category string) (bool, error) {
	if p.checkErr != nil {
		return false, p.checkErr
	}
	return !p.disallowed[channel], nil
}

func (p fakePrefs) IsInQuietHours(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.quietHours, nil
}

type recordingSenders struct {
	mu     sync.Mutex
	sent   []string
	failOn map[string]bool
}

func (s *recordingSenders) record(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[channel] {
		return errors.New("delivery rejected")
	}
	s.sent = append(s.sent, channel)
	return nil
}

func (s *recordingSenders) SendEmail(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	return s.record(models.ChannelEmail)
}

func (s *recordingSenders) SendSms(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	return s.record(models.ChannelSms)
}

func (s *recordingSenders) SendPush(ctx context.Context, userID uuid.UUID, title string, message string, data map[string]string) error {
	return s.record(models.ChannelPush)
}

func Test_Dispatcher(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	allChannels := []string{models.ChannelEmail, models.ChannelSms, models.ChannelPush}

	// Begin a rolled-back transaction with a user to notify.
	withUser := func(t *testing.T, fn func(st repository.Storage, userID uuid.UUID)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			user, err := storage.User().CreateUser(t.Context(), "obinna", "hashed-pwd")
			require.NoError(t, err)
			fn(storage, user.ID)
		})
	}

	// The single record Dispatch materialized for the user.
	onlyRecord := func(t *testing.T, st repository.Storage, userID uuid.UUID) models.Notification {
		t.Helper()
		records, err := st.Notification().ListByUser(t.Context(), userID, 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		return records[0]
	}

	t.Run("delivers to every allowed channel", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{}
			d := NewDispatcher(st.Notification(), fakePrefs{}, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "purchase.completed", models.CategoryTransaction,
				allChannels, "Purchase successful", "Your purchase went through.", map[string]string{"reference": "BV-1"})

			record := onlyRecord(t, st, userID)
			require.Equal(t, "purchase.completed", record.EventType)
			require.Equal(t, "BV-1", record.Data["reference"])

			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelInApp])
			for _, channel := range allChannels {
				require.Equal(t, models.DeliverySent, record.Delivery[channel])
			}
			require.ElementsMatch(t, allChannels, senders.sent)
		})
	})

	t.Run("opted-out channel is skipped, the rest still go", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{}
			prefs := fakePrefs{disallowed: map[string]bool{models.ChannelSms: true}}
			d := NewDispatcher(st.Notification(), prefs, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "purchase.completed", models.CategoryTransaction,
				allChannels, "t", "m", nil)

			record := onlyRecord(t, st, userID)
			require.Equal(t, models.DeliverySkipped, record.Delivery[models.ChannelSms])
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelEmail])
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelPush])
			require.NotContains(t, senders.sent, models.ChannelSms)
		})
	})

	t.Run("quiet hours suppress outbound but keep the in-app record", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{}
			d := NewDispatcher(st.Notification(), fakePrefs{quietHours: true}, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "purchase.completed", models.CategoryTransaction,
				allChannels, "t", "m", nil)

			record := onlyRecord(t, st, userID)
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelInApp], "in-app record exists even with every channel filtered")
			for _, channel := range allChannels {
				require.Equal(t, models.DeliverySkipped, record.Delivery[channel])
			}
			require.Empty(t, senders.sent)
		})
	})

	t.Run("security events ignore quiet hours", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{}
			d := NewDispatcher(st.Notification(), fakePrefs{quietHours: true}, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "auth.login", models.CategorySecurity,
				[]string{models.ChannelEmail}, "New login", "A new device signed in.", nil)

			record := onlyRecord(t, st, userID)
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelEmail])
			require.Contains(t, senders.sent, models.ChannelEmail)
		})
	})

	t.Run("one channel failing does not suppress the others", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{failOn: map[string]bool{models.ChannelEmail: true}}
			d := NewDispatcher(st.Notification(), fakePrefs{}, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "purchase.completed", models.CategoryTransaction,
				allChannels, "t", "m", nil)

			record := onlyRecord(t, st, userID)
			require.Equal(t, models.DeliveryFailed, record.Delivery[models.ChannelEmail])
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelSms])
			require.Equal(t, models.DeliverySent, record.Delivery[models.ChannelPush])
		})
	})

	t.Run("preference check error skips the channel", func(t *testing.T) {
		withUser(t, func(st repository.Storage, userID uuid.UUID) {
			senders := &recordingSenders{}
			d := NewDispatcher(st.Notification(), fakePrefs{checkErr: errors.New("prefs service down")}, senders, logger.NewNoOpLogger())

			d.Dispatch(t.Context(), userID, "purchase.completed", models.CategoryTransaction,
				allChannels, "t", "m", nil)

			record := onlyRecord(t, st, userID)
			for _, channel := range allChannels {
				require.Equal(t, models.DeliverySkipped, record.Delivery[channel])
			}
			require.Empty(t, senders.sent)
		})
	})
}
