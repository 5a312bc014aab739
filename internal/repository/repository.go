package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) error

	// Return the token even if it is expired or used already
	Get(ctx context.Context, tokenString string) (models.RefreshToken, error)

	// Mark token as used
	// If the token is already used, must not overwrite the existing 'usedAt'
	// and has to return apperrors.ErrRefreshTokenIsUsed
	MarkUsed(ctx context.Context, tokenString string) (usedAt time.Time, err error)
}

// Wallet repository interface
//
// Debit and Credit are the only balance mutation primitives. Both pair the
// balance update with exactly one ledger transaction row and both are
// expected to run inside Storage.InTx. The balance check in Debit happens
// in the UPDATE itself, so it holds even if a caller bypassed the account
// lock.
type WalletRepo interface {
	// Create wallet for user
	// If the (user, currency) wallet exists already has to return apperrors.ErrWalletAlreadyExists
	CreateWallet(ctx context.Context, userID uuid.UUID, currency string) (models.Wallet, error)

	GetWallet(ctx context.Context, walletID uuid.UUID) (models.Wallet, error)
	GetWalletByUserID(ctx context.Context, userID uuid.UUID, currency string) (models.Wallet, error)

	// Atomically decrement balance by t.TotalAmount and insert t.
	// Has to return apperrors.ErrInsufficientFunds when balance < t.TotalAmount
	// at execution time and apperrors.ErrReferenceExists on reference reuse.
	Debit(ctx context.Context, walletID uuid.UUID, t models.Transaction) (models.Transaction, error)

	// Symmetric increment, used for deposits and refunds.
	Credit(ctx context.Context, walletID uuid.UUID, t models.Transaction) (models.Transaction, error)

	// Acquire the per-wallet purchase mutex.
	// Has to return apperrors.ErrWalletLocked if another purchase holds it.
	AcquireLock(ctx context.Context, walletID uuid.UUID, reason string) error

	// Idempotent counterpart of AcquireLock.
	ReleaseLock(ctx context.Context, walletID uuid.UUID) error
}

// Transaction (ledger) repository interface
type TransactionRepo interface {
	GetByReference(ctx context.Context, reference string) (models.Transaction, error)

	// Find the refund transaction recorded for the order reference, if any.
	// Used as the refund idempotency guard.
	FindRefundForReference(ctx context.Context, originalReference string) (models.Transaction, error)

	ListByWallet(ctx context.Context, walletID uuid.UUID, limit int, offset int) ([]models.Transaction, error)

	// Attach provider correlation data to a settled transaction.
	// The only mutation allowed after a transaction reaches a terminal status.
	AttachProviderRef(ctx context.Context, reference string, providerRef string) error
}

type DuplicateQuery struct {
	UserID      uuid.UUID
	ServiceType string
	Recipient   string
	Amount      decimal.Decimal
	Window      time.Duration
}

// Order repository interface
type OrderRepo interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (models.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (models.Order, error)

	// Move a PENDING order to a terminal status and store provider
	// correlation data. Has to return apperrors.ErrOrderSettled when the
	// order already left PENDING.
	SetOutcome(ctx context.Context, orderID uuid.UUID, status string, providerRef string, providerToken string, providerResponse []byte) (models.Order, error)

	SetNeedsRecheck(ctx context.Context, orderID uuid.UUID, needsRecheck bool) error

	// Find a PENDING or COMPLETED order matching all query fields within
	// the trailing window. ErrOrderNotFound when nothing matches.
	FindRecentDuplicate(ctx context.Context, q DuplicateQuery) (models.Order, error)

	ListNeedingRecheck(ctx context.Context, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Order, error)
}

// SavedRecipient repository interface
type RecipientRepo interface {
	// Insert or refresh the (user, service, recipient) triple.
	UpsertRecipient(ctx context.Context, userID uuid.UUID, serviceType string, recipient string) error
	ListRecipients(ctx context.Context, userID uuid.UUID, serviceType string) ([]models.SavedRecipient, error)
}

// Notification repository interface
type NotificationRepo interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	SetDelivery(ctx context.Context, notificationID uuid.UUID, delivery map[string]string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Notification, error)
}

// Storage aggregates the repositories over one DB handle.
// InTx runs fn against a Storage bound to a single transaction.
type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Wallet() WalletRepo
	Transaction() TransactionRepo
	Order() OrderRepo
	Recipient() RecipientRepo
	Notification() NotificationRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
