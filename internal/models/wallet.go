package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "NGN"

// Wallet is the persisted balance record for one (user, currency) pair.
//
// Balance and LedgerBalance mirror each other for now. LedgerBalance is kept
// as a separate column so reservation semantics can be added later without a
// schema change.
type Wallet struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Currency      string
	Balance       decimal.Decimal
	LedgerBalance decimal.Decimal

	// IsLocked is the per-wallet purchase mutex. While set, no other
	// purchase may start against this wallet.
	IsLocked     bool
	LockedReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
