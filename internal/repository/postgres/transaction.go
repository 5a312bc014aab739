package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
)

type TransactionRepo struct {
	DB DBTX
}

const getTransactionByReference = `-- name: GetTransactionByReference
SELECT id, wallet_id, reference, type, amount, fee, total_amount, balance_before, balance_after, status, metadata, created_at
FROM transactions
WHERE reference = $1
`

func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, getTransactionByReference, reference)
	return collectTransaction(rows)
}

const findRefundForReference = `-- name: FindRefundForReference
SELECT id, wallet_id, reference, type, amount, fee, total_amount, balance_before, balance_after, status, metadata, created_at
FROM transactions
WHERE type = 'REFUND' AND metadata->>'original_reference' = $1
`

// FindRefundForReference looks up the refund recorded against an order
// reference. The refund engine calls it inside the refund transaction, so a
// second refund for the same order is caught before money moves again.
func (r *TransactionRepo) FindRefundForReference(ctx context.Context, originalReference string) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, findRefundForReference, originalReference)
	return collectTransaction(rows)
}

const listTransactionsByWallet = `-- name: ListTransactionsByWallet
SELECT id, wallet_id, reference, type, amount, fee, total_amount, balance_before, balance_after, status, metadata, created_at
FROM transactions
WHERE wallet_id = $1
ORDER BY created_at DESC, reference DESC
LIMIT $2 OFFSET $3
`

func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit int, offset int) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactionsByWallet, walletID, limit, offset)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return transactions, nil
}

const attachProviderRef = `-- name: AttachProviderRef
UPDATE transactions
SET metadata = metadata || jsonb_build_object('provider_ref', $2::text)
WHERE reference = $1
`

// AttachProviderRef adds provider correlation data to a settled row.
// The only permitted post-terminal mutation: amounts and balances stay as
// written.
func (r *TransactionRepo) AttachProviderRef(ctx context.Context, reference string, providerRef string) error {
	tag, err := r.DB.Exec(ctx, attachProviderRef, reference, providerRef)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

func collectTransaction(rows pgx.Rows) (models.Transaction, error) {
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrTransactionNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}
}
