package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit    = "DEPOSIT"
	TransactionTypeWithdrawal = "WITHDRAWAL"
	TransactionTypePurchase   = "PURCHASE"
	TransactionTypeRefund     = "REFUND"
	TransactionTypeReversal   = "REVERSAL"
	TransactionTypeAdjustment = "ADJUSTMENT"

	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
	TransactionStatusReversed  = "REVERSED"
)

// Transaction is one immutable row of the append-only ledger.
// A downstream auditor reconstructs account history solely by replaying
// BalanceBefore -> BalanceAfter deltas in reference-chronological order, so
// a row is never edited once terminal, only offset by a new row.
//
// TotalAmount is always the magnitude of that delta. For debits that is
// Amount plus Fee; for deposits the fee comes off the incoming Amount, so
// TotalAmount is the net credited.
type Transaction struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Reference   string
	Type        string
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	TotalAmount decimal.Decimal

	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal

	Status string

	// Metadata holds free-form context: provider reference, originating
	// order id, original reference for refunds.
	Metadata map[string]string

	CreatedAt time.Time
}
