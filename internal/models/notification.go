package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChannelInApp = "IN_APP"
	ChannelEmail = "EMAIL"
	ChannelSms   = "SMS"
	ChannelPush  = "PUSH"
)

const (
	CategoryTransaction = "TRANSACTION"
	CategorySecurity    = "SECURITY"
	CategoryMarketing   = "MARKETING"
)

const (
	DeliverySent    = "SENT"
	DeliveryFailed  = "FAILED"
	DeliverySkipped = "SKIPPED"
)

// Notification is the always-materialized in-app record of one dispatched
// event. Delivery holds the per-channel outcome written back after fan-out.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EventType string
	Category  string
	Title     string
	Message   string
	Data      map[string]string
	Delivery  map[string]string
	CreatedAt time.Time
}
