package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
)

type NotificationRepo struct {
	DB DBTX
}

const createNotification = `-- name: CreateNotification
INSERT INTO notifications (id, user_id, event_type, category, title, message, data, delivery)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, event_type, category, title, message, data, delivery, created_at
`

func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Data == nil {
		n.Data = map[string]string{}
	}
	if n.Delivery == nil {
		n.Delivery = map[string]string{}
	}

	rows, _ := r.DB.Query(ctx, createNotification, n.ID, n.UserID, n.EventType, n.Category, n.Title, n.Message, n.Data, n.Delivery)
	n, err := pgx.CollectOneRow(rows, rowToNotification)
	if err != nil {
		return n, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

const setNotificationDelivery = `-- name: SetNotificationDelivery
UPDATE notifications
SET delivery = $2
WHERE id = $1
`

func (r *NotificationRepo) SetDelivery(ctx context.Context, notificationID uuid.UUID, delivery map[string]string) error {
	tag, err := r.DB.Exec(ctx, setNotificationDelivery, notificationID, delivery)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

const listNotificationsByUser = `-- name: ListNotificationsByUser
SELECT id, user_id, event_type, category, title, message, data, delivery, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Notification, error) {
	rows, _ := r.DB.Query(ctx, listNotificationsByUser, userID, limit, offset)
	notifications, err := pgx.CollectRows(rows, rowToNotification)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return notifications, nil
}

func rowToNotification(row pgx.CollectableRow) (models.Notification, error) {
	var n models.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.EventType, &n.Category, &n.Title, &n.Message, &n.Data, &n.Delivery, &n.CreatedAt)
	return n, err
}
