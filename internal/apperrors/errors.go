package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrWalletAlreadyExists = errors.New("wallet already exists")
	ErrWalletLocked        = errors.New("wallet has a transaction in progress")
	ErrInsufficientFunds   = errors.New("insufficient funds")

	ErrInvalidAmount = errors.New("amount must be positive")

	ErrReferenceExists     = errors.New("transaction reference already exists")
	ErrTransactionNotFound = errors.New("transaction not found")

	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("duplicate order within idempotency window")
	ErrOrderSettled   = errors.New("order already settled")

	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidProduct   = errors.New("invalid or unknown product")

	ErrProviderUnavailable = errors.New("provider unavailable, wallet refunded")

	// ErrRefundFailed means a customer was debited and the compensating
	// credit could not be recorded. Needs manual intervention.
	ErrRefundFailed = errors.New("refund failed, ledger imbalance")

	ErrAlreadyRefunded = errors.New("order already refunded")

	ErrNotificationNotFound = errors.New("notification not found")
)
