package models

import (
	"time"

	"github.com/google/uuid"
)

// SavedRecipient caches a (user, service, recipient) triple after a
// successful purchase so clients can autofill. Not safety-critical.
type SavedRecipient struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ServiceType string
	Recipient   string
	LastUsedAt  time.Time
}
