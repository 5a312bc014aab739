// Package wallet is the ledger facade: balance reads, deposits and
// withdrawals. Purchases go through the purchase package, which uses the
// same storage primitives.
package wallet

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/service/fees"
)

type cacheInvalidator interface {
	InvalidateWallet(ctx context.Context, userID uuid.UUID)
	InvalidateTransactions(ctx context.Context, userID uuid.UUID)
}

type Service struct {
	storage  repository.Storage
	cache    cacheInvalidator
	logger   logger.Logger
	currency string
}

func NewService(storage repository.Storage, cache cacheInvalidator, l logger.Logger, currency string) *Service {
	if currency == "" {
		currency = models.DefaultCurrency
	}

	return &Service{
		storage:  storage,
		cache:    cache,
		logger:   l,
		currency: currency,
	}
}

// CreateForUser provisions the user's wallet. Called inside the
// registration transaction so a user never exists without one.
func (s *Service) CreateForUser(ctx context.Context, st repository.Storage, userID uuid.UUID) (models.Wallet, error) {
	return st.Wallet().CreateWallet(ctx, userID, s.currency)
}

func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	return s.storage.Wallet().GetWalletByUserID(ctx, userID, s.currency)
}

// Deposit credits the wallet after the deposit fee has been taken off the
// incoming amount.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Transaction, error) {
	var tx models.Transaction

	if !amount.IsPositive() {
		return tx, apperrors.ErrInvalidAmount
	}

	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return tx, err
	}

	fee := fees.Calculate(amount, fees.ClassDeposit)
	credited := amount.Sub(fee)
	if reference == "" {
		reference = newDepositReference()
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		tx, err = st.Wallet().Credit(ctx, wallet.ID, models.Transaction{
			Reference:   reference,
			Type:        models.TransactionTypeDeposit,
			Amount:      amount,
			Fee:         fee,
			TotalAmount: credited,
			Status:      models.TransactionStatusCompleted,
		})
		return err
	})
	if err != nil {
		return tx, err
	}

	s.invalidate(ctx, userID)
	return tx, nil
}

// Withdraw debits amount plus the tiered withdrawal fee. The balance check
// runs inside the debit statement, so concurrent withdrawals cannot
// oversubscribe the wallet.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Transaction, error) {
	var tx models.Transaction

	if !amount.IsPositive() {
		return tx, apperrors.ErrInvalidAmount
	}

	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return tx, err
	}

	fee := fees.Calculate(amount, fees.ClassWithdrawal)
	total := amount.Add(fee)
	if reference == "" {
		reference = newWithdrawalReference()
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		tx, err = st.Wallet().Debit(ctx, wallet.ID, models.Transaction{
			Reference:   reference,
			Type:        models.TransactionTypeWithdrawal,
			Amount:      amount,
			Fee:         fee,
			TotalAmount: total,
			Status:      models.TransactionStatusCompleted,
		})
		return err
	})
	if err != nil {
		return tx, err
	}

	s.invalidate(ctx, userID)
	return tx, nil
}

// Statement lists the wallet's ledger rows, newest first.
func (s *Service) Statement(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]models.Transaction, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.storage.Transaction().ListByWallet(ctx, wallet.ID, limit, offset)
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		s.cache.InvalidateWallet(ctx, userID)
		s.cache.InvalidateTransactions(ctx, userID)
	}()
}

func newDepositReference() string {
	return "DP-" + time.Now().UTC().Format("20060102150405") + "-" + uuid.NewString()[:8]
}

func newWithdrawalReference() string {
	return "WD-" + time.Now().UTC().Format("20060102150405") + "-" + uuid.NewString()[:8]
}
