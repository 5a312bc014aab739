package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusFailed    = "FAILED"
)

const (
	ServiceAirtime       = "AIRTIME"
	ServiceData          = "DATA"
	ServiceCableTV       = "CABLE_TV"
	ServiceElectricity   = "ELECTRICITY"
	ServiceInternational = "INTL_AIRTIME"
)

// Order is one attempt to buy a third-party service unit. It correlates 1:1
// with exactly one debit transaction sharing its reference and, if it fails,
// exactly one refund transaction pointing back at it.
type Order struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	WalletID    uuid.UUID
	Reference   string
	ServiceType string
	Provider    string
	Recipient   string
	ProductCode string
	Amount      decimal.Decimal
	Status      string

	ProviderRef   string
	ProviderToken string

	// ProviderResponse keeps the raw provider payload for audit.
	ProviderResponse []byte

	// NeedsRecheck flags an order that was refunded on an indeterminate
	// provider outcome. The reconciler requeries the provider and posts a
	// compensating entry if the purchase actually went through.
	NeedsRecheck bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
