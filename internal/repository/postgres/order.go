package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
)

type OrderRepo struct {
	DB DBTX
}

const orderColumns = `id, user_id, wallet_id, reference, service_type, provider, recipient, product_code, amount, status, provider_ref, provider_token, provider_response, needs_recheck, created_at, updated_at`

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, user_id, wallet_id, reference, service_type, provider, recipient, product_code, amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

func (r *OrderRepo) CreateOrder(ctx context.Context, o models.Order) (models.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}

	rows, _ := r.DB.Query(ctx, createOrder,
		o.ID, o.UserID, o.WalletID, o.Reference, o.ServiceType, o.Provider,
		o.Recipient, o.ProductCode, o.Amount, o.Status,
	)
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return o, apperrors.ErrReferenceExists
		}

		return o, fmt.Errorf("db error: %w", err)
	}

	return o, nil
}

const getOrder = `-- name: GetOrder
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (r *OrderRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, getOrder, orderID)
	return collectOrder(rows)
}

const getOrderByReference = `-- name: GetOrderByReference
SELECT ` + orderColumns + ` FROM orders
WHERE reference = $1
`

func (r *OrderRepo) GetOrderByReference(ctx context.Context, reference string) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, getOrderByReference, reference)
	return collectOrder(rows)
}

const setOrderOutcome = `-- name: SetOrderOutcome
UPDATE orders
SET status = $2,
    provider_ref = $3,
    provider_token = $4,
    provider_response = $5,
    updated_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + orderColumns

// SetOutcome settles a PENDING order. Settled orders stay as written, so a
// late second settlement attempt surfaces as ErrOrderSettled instead of
// silently overwriting history.
func (r *OrderRepo) SetOutcome(ctx context.Context, orderID uuid.UUID, status string, providerRef string, providerToken string, providerResponse []byte) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, setOrderOutcome, orderID, status, providerRef, providerToken, providerResponse)
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, pgx.ErrNoRows):
		if _, getErr := r.GetOrder(ctx, orderID); getErr != nil {
			return o, getErr
		}
		return o, apperrors.ErrOrderSettled
	default:
		return o, fmt.Errorf("db error: %w", err)
	}
}

const setNeedsRecheck = `-- name: SetNeedsRecheck
UPDATE orders
SET needs_recheck = $2, updated_at = now()
WHERE id = $1
`

func (r *OrderRepo) SetNeedsRecheck(ctx context.Context, orderID uuid.UUID, needsRecheck bool) error {
	tag, err := r.DB.Exec(ctx, setNeedsRecheck, orderID, needsRecheck)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}

const findRecentDuplicate = `-- name: FindRecentDuplicate
SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1
  AND service_type = $2
  AND recipient = $3
  AND amount = $4
  AND status IN ('PENDING', 'COMPLETED')
  AND created_at > now() - $5::interval
ORDER BY created_at DESC
LIMIT 1
`

// FindRecentDuplicate backs the idempotency guard: an advisory pre-filter,
// reference uniqueness at the transactions table stays the hard guarantee.
func (r *OrderRepo) FindRecentDuplicate(ctx context.Context, q repository.DuplicateQuery) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, findRecentDuplicate, q.UserID, q.ServiceType, q.Recipient, q.Amount, q.Window)
	return collectOrder(rows)
}

const listNeedingRecheck = `-- name: ListNeedingRecheck
SELECT ` + orderColumns + ` FROM orders
WHERE needs_recheck = TRUE
ORDER BY updated_at ASC
LIMIT $1
`

func (r *OrderRepo) ListNeedingRecheck(ctx context.Context, limit int) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listNeedingRecheck, limit)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return orders, nil
}

const listOrdersByUser = `-- name: ListOrdersByUser
SELECT ` + orderColumns + ` FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (r *OrderRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrdersByUser, userID, limit, offset)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return orders, nil
}

func collectOrder(rows pgx.Rows) (models.Order, error) {
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, pgx.ErrNoRows):
		return o, apperrors.ErrOrderNotFound
	default:
		return o, fmt.Errorf("db error: %w", err)
	}
}

func rowToOrder(row pgx.CollectableRow) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.WalletID, &o.Reference, &o.ServiceType, &o.Provider,
		&o.Recipient, &o.ProductCode, &o.Amount, &o.Status,
		&o.ProviderRef, &o.ProviderToken, &o.ProviderResponse, &o.NeedsRecheck,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
