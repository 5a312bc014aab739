package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emeka-o/billvault/internal/models"
)

type RecipientRepo struct {
	DB DBTX
}

const upsertRecipient = `-- name: UpsertRecipient
INSERT INTO saved_recipients (id, user_id, service_type, recipient, last_used_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id, service_type, recipient)
DO UPDATE SET last_used_at = now()
`

func (r *RecipientRepo) UpsertRecipient(ctx context.Context, userID uuid.UUID, serviceType string, recipient string) error {
	_, err := r.DB.Exec(ctx, upsertRecipient, uuid.New(), userID, serviceType, recipient)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listRecipients = `-- name: ListRecipients
SELECT id, user_id, service_type, recipient, last_used_at
FROM saved_recipients
WHERE user_id = $1 AND ($2 = '' OR service_type = $2)
ORDER BY last_used_at DESC
`

func (r *RecipientRepo) ListRecipients(ctx context.Context, userID uuid.UUID, serviceType string) ([]models.SavedRecipient, error) {
	rows, _ := r.DB.Query(ctx, listRecipients, userID, serviceType)
	recipients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SavedRecipient, error) {
		var s models.SavedRecipient
		err := row.Scan(&s.ID, &s.UserID, &s.ServiceType, &s.Recipient, &s.LastUsedAt)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return recipients, nil
}
