package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (id, user_id, currency)
VALUES ($1, $2, $3)
RETURNING id, user_id, currency, balance, ledger_balance, is_locked, locked_reason, created_at, updated_at
`

func (r *WalletRepo) CreateWallet(ctx context.Context, userID uuid.UUID, currency string) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet, uuid.New(), userID, currency)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return wallet, apperrors.ErrWalletAlreadyExists
		}

		return wallet, fmt.Errorf("db error: %w", err)
	}

	return wallet, nil
}

const getWallet = `-- name: GetWallet
SELECT id, user_id, currency, balance, ledger_balance, is_locked, locked_reason, created_at, updated_at
FROM wallets
WHERE id = $1
`

func (r *WalletRepo) GetWallet(ctx context.Context, walletID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWallet, walletID)
	return collectWallet(rows)
}

const getWalletByUserID = `-- name: GetWalletByUserID
SELECT id, user_id, currency, balance, ledger_balance, is_locked, locked_reason, created_at, updated_at
FROM wallets
WHERE user_id = $1 AND currency = $2
`

func (r *WalletRepo) GetWalletByUserID(ctx context.Context, userID uuid.UUID, currency string) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, getWalletByUserID, userID, currency)
	return collectWallet(rows)
}

// The balance condition lives in the UPDATE itself: even if a caller managed
// to reach the debit without holding the account lock, the row can never go
// below zero. The CHECK constraint on the column is the last line of defense.
const debitWallet = `-- name: DebitWallet
UPDATE wallets
SET balance = balance - $2,
    ledger_balance = ledger_balance - $2,
    updated_at = now()
WHERE id = $1 AND balance >= $2
RETURNING balance
`

const creditWallet = `-- name: CreditWallet
UPDATE wallets
SET balance = balance + $2,
    ledger_balance = ledger_balance + $2,
    updated_at = now()
WHERE id = $1
RETURNING balance
`

// Debit decrements the balance by t.TotalAmount and inserts the ledger row
// in one go. Run it inside Storage.InTx so the two statements commit or roll
// back together.
func (r *WalletRepo) Debit(ctx context.Context, walletID uuid.UUID, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, debitWallet, walletID, t.TotalAmount)
	newBalance, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])

	switch {
	case err == nil:
		// updated ok
	case errors.Is(err, pgx.ErrNoRows):
		// Either the wallet does not exist or the balance was short.
		_, getErr := r.GetWallet(ctx, walletID)
		if getErr != nil {
			return t, getErr
		}
		return t, apperrors.ErrInsufficientFunds
	default:
		return t, fmt.Errorf("db error: %w", err)
	}

	t.WalletID = walletID
	t.BalanceBefore = newBalance.Add(t.TotalAmount)
	t.BalanceAfter = newBalance

	return r.insertTransaction(ctx, t)
}

// Credit is the symmetric increment, used for deposits and refunds.
func (r *WalletRepo) Credit(ctx context.Context, walletID uuid.UUID, t models.Transaction) (models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, creditWallet, walletID, t.TotalAmount)
	newBalance, err := pgx.CollectOneRow(rows, pgx.RowTo[decimal.Decimal])

	switch {
	case err == nil:
		// updated ok
	case errors.Is(err, pgx.ErrNoRows):
		return t, apperrors.ErrWalletNotFound
	default:
		return t, fmt.Errorf("db error: %w", err)
	}

	t.WalletID = walletID
	t.BalanceBefore = newBalance.Sub(t.TotalAmount)
	t.BalanceAfter = newBalance

	return r.insertTransaction(ctx, t)
}

const insertTransaction = `-- name: InsertTransaction
INSERT INTO transactions (id, wallet_id, reference, type, amount, fee, total_amount, balance_before, balance_after, status, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, wallet_id, reference, type, amount, fee, total_amount, balance_before, balance_after, status, metadata, created_at
`

func (r *WalletRepo) insertTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}

	rows, _ := r.DB.Query(ctx, insertTransaction,
		t.ID, t.WalletID, t.Reference, t.Type, t.Amount, t.Fee, t.TotalAmount,
		t.BalanceBefore, t.BalanceAfter, t.Status, t.Metadata,
	)
	t, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return t, apperrors.ErrReferenceExists
		}

		return t, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

const acquireLock = `-- name: AcquireLock
UPDATE wallets
SET is_locked = TRUE, locked_reason = $2, updated_at = now()
WHERE id = $1 AND is_locked = FALSE
`

// AcquireLock grabs the per-wallet purchase mutex. Fails fast with
// ErrWalletLocked instead of waiting: a second concurrent purchase by the
// same user is reported, not queued.
func (r *WalletRepo) AcquireLock(ctx context.Context, walletID uuid.UUID, reason string) error {
	tag, err := r.DB.Exec(ctx, acquireLock, walletID, reason)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.GetWallet(ctx, walletID); err != nil {
			return err
		}
		return apperrors.ErrWalletLocked
	}

	return nil
}

const releaseLock = `-- name: ReleaseLock
UPDATE wallets
SET is_locked = FALSE, locked_reason = '', updated_at = now()
WHERE id = $1
`

// ReleaseLock is idempotent. Releasing an unlocked wallet is a no-op.
func (r *WalletRepo) ReleaseLock(ctx context.Context, walletID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, releaseLock, walletID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func collectWallet(rows pgx.Rows) (models.Wallet, error) {
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.LedgerBalance, &w.IsLocked, &w.LockedReason, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Reference, &t.Type, &t.Amount, &t.Fee, &t.TotalAmount, &t.BalanceBefore, &t.BalanceAfter, &t.Status, &t.Metadata, &t.CreatedAt)
	return t, err
}
