// Package purchase drives a single bill-payment purchase from validation
// through the provider call to a terminal state. It owns the account lock,
// the debit and the compensating refund. The hard rule throughout: once the
// debit has committed, the only exits are COMPLETED or FAILED-and-refunded.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/service/fees"
	"github.com/emeka-o/billvault/internal/service/provider"
)

const (
	defaultDuplicateWindow = 60 * time.Second
	defaultProviderTimeout = 15 * time.Second
)

type gateway interface {
	Purchase(ctx context.Context, req provider.PurchaseRequest) (provider.Outcome, error)
	QueryStatus(ctx context.Context, reference string) (provider.Outcome, error)
}

type notifier interface {
	Dispatch(ctx context.Context, userID uuid.UUID, eventType string, category string, channels []string, title string, message string, data map[string]string)
}

type cacheInvalidator interface {
	InvalidateWallet(ctx context.Context, userID uuid.UUID)
	InvalidateTransactions(ctx context.Context, userID uuid.UUID)
}

type Config struct {
	Currency        string
	DuplicateWindow time.Duration
	ProviderTimeout time.Duration
}

type Service struct {
	storage  repository.Storage
	gateway  gateway
	catalog  *Catalog
	notifier notifier
	cache    cacheInvalidator
	logger   logger.Logger

	currency        string
	duplicateWindow time.Duration
	providerTimeout time.Duration
}

func NewService(cfg Config, storage repository.Storage, gw gateway, catalog *Catalog, n notifier, cache cacheInvalidator, l logger.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = models.DefaultCurrency
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = defaultDuplicateWindow
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaultProviderTimeout
	}

	return &Service{
		storage:         storage,
		gateway:         gw,
		catalog:         catalog,
		notifier:        n,
		cache:           cache,
		logger:          l,
		currency:        cfg.Currency,
		duplicateWindow: cfg.DuplicateWindow,
		providerTimeout: cfg.ProviderTimeout,
	}
}

// Request is a validated purchase attempt. Amount is honored only for
// open-amount services (airtime, international); everything else prices
// from the catalog by ProductCode.
type Request struct {
	UserID      uuid.UUID
	ServiceType string
	Provider    string
	Recipient   string
	ProductCode string
	Amount      decimal.Decimal
}

// Result is returned to the caller as soon as settlement resolves.
// Notification dispatch and cache invalidation happen after, asynchronously.
type Result struct {
	Reference     string
	OrderID       uuid.UUID
	Status        string
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	TotalAmount   decimal.Decimal
	ProviderToken string
	Message       string
}

// Purchase runs the settlement state machine for one attempt:
//
//	validate -> duplicate check -> lock -> debit -> provider call ->
//	{completed | failed+refunded} -> unlock
//
// The debit lands before the provider call on purpose: the provider can
// fail or hang, and refund is the single recovery path either way.
func (s *Service) Purchase(ctx context.Context, req Request) (Result, error) {
	if err := validateRecipient(req.ServiceType, req.Recipient); err != nil {
		return Result{}, err
	}

	amount := req.Amount
	prv := req.Provider
	if !openAmount(req.ServiceType) {
		product, err := s.catalog.Lookup(req.ServiceType, req.ProductCode)
		if err != nil {
			return Result{}, err
		}
		amount = product.Amount
		if prv == "" {
			prv = product.Provider
		}
	}
	if !amount.IsPositive() {
		return Result{}, apperrors.ErrInvalidProduct
	}

	fee := fees.Calculate(amount, fees.ClassForService(req.ServiceType))
	total := amount.Add(fee)

	wallet, err := s.storage.Wallet().GetWalletByUserID(ctx, req.UserID, s.currency)
	if err != nil {
		return Result{}, err
	}

	// Fast-fail before locking. The authoritative check happens again
	// inside the debit.
	if wallet.Balance.LessThan(total) {
		return Result{}, apperrors.ErrInsufficientFunds
	}

	if err := s.checkDuplicate(ctx, req, amount); err != nil {
		return Result{}, err
	}

	if err := s.storage.Wallet().AcquireLock(ctx, wallet.ID, "purchase:"+req.ServiceType); err != nil {
		return Result{}, err
	}
	defer func() {
		if err := s.storage.Wallet().ReleaseLock(context.WithoutCancel(ctx), wallet.ID); err != nil {
			s.logger.Error("Failed to release wallet lock", "wallet_id", wallet.ID, "error", err)
		}
	}()

	reference := NewReference(time.Now())

	order, err := s.storage.Order().CreateOrder(ctx, models.Order{
		UserID:      req.UserID,
		WalletID:    wallet.ID,
		Reference:   reference,
		ServiceType: req.ServiceType,
		Provider:    prv,
		Recipient:   req.Recipient,
		ProductCode: req.ProductCode,
		Amount:      amount,
		Status:      models.OrderStatusPending,
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Reference:   reference,
		OrderID:     order.ID,
		Amount:      amount,
		Fee:         fee,
		TotalAmount: total,
	}

	// Debit and ledger row commit together.
	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		_, err := st.Wallet().Debit(ctx, wallet.ID, models.Transaction{
			Reference:   reference,
			Type:        models.TransactionTypePurchase,
			Amount:      amount,
			Fee:         fee,
			TotalAmount: total,
			Status:      models.TransactionStatusCompleted,
			Metadata: map[string]string{
				"order_id":     order.ID.String(),
				"service_type": req.ServiceType,
				"recipient":    req.Recipient,
			},
		})
		return err
	})
	if err != nil {
		// No money moved: settle the order FAILED without a refund row.
		if _, settleErr := s.storage.Order().SetOutcome(ctx, order.ID, models.OrderStatusFailed, "", "", nil); settleErr != nil {
			s.logger.Error("Failed to settle undebited order", "order_id", order.ID, "error", settleErr)
		}
		return Result{}, err
	}

	outcome := s.callProvider(ctx, req, prv, amount, reference)

	switch outcome.Status {
	case provider.StatusDelivered:
		if settled, err := s.storage.Order().SetOutcome(ctx, order.ID, models.OrderStatusCompleted, outcome.ProviderRef, outcome.Token, outcome.Raw); err != nil {
			s.logger.Error("Failed to mark order completed", "order_id", order.ID, "reference", reference, "error", err)
			order.Status = models.OrderStatusCompleted
		} else {
			order = settled
		}
		if err := s.storage.Transaction().AttachProviderRef(ctx, reference, outcome.ProviderRef); err != nil {
			s.logger.Error("Failed to attach provider ref", "reference", reference, "error", err)
		}
		if err := s.storage.Recipient().UpsertRecipient(ctx, req.UserID, req.ServiceType, req.Recipient); err != nil {
			s.logger.Warn("Failed to save recipient", "user_id", req.UserID, "error", err)
		}

		result.Status = models.OrderStatusCompleted
		result.ProviderToken = outcome.Token
		result.Message = "Purchase completed"

		s.afterSettlement(ctx, order, result, outcome)
		return result, nil

	case provider.StatusFailed:
		if err := s.settleFailed(ctx, order, outcome, false); err != nil {
			return result, err
		}

		result.Status = models.OrderStatusFailed
		result.Message = "Purchase failed at provider; wallet refunded"

		order.Status = models.OrderStatusFailed
		s.afterSettlement(ctx, order, result, outcome)
		return result, apperrors.ErrProviderUnavailable

	default:
		// Indeterminate: refund first, let the reconciler sort out a late
		// provider-side success. The customer is made whole now.
		if err := s.settleFailed(ctx, order, outcome, true); err != nil {
			return result, err
		}

		result.Status = models.OrderStatusFailed
		result.Message = "Provider did not confirm delivery; wallet refunded"

		order.Status = models.OrderStatusFailed
		s.afterSettlement(ctx, order, result, outcome)
		return result, apperrors.ErrProviderUnavailable
	}
}

// checkDuplicate is the advisory pre-filter: same user, service, recipient
// and amount inside the trailing window means a resubmission, not a new
// intent.
func (s *Service) checkDuplicate(ctx context.Context, req Request, amount decimal.Decimal) error {
	_, err := s.storage.Order().FindRecentDuplicate(ctx, repository.DuplicateQuery{
		UserID:      req.UserID,
		ServiceType: req.ServiceType,
		Recipient:   req.Recipient,
		Amount:      amount,
		Window:      s.duplicateWindow,
	})

	switch {
	case err == nil:
		return apperrors.ErrDuplicateOrder
	case errors.Is(err, apperrors.ErrOrderNotFound):
		return nil
	default:
		return err
	}
}

// callProvider maps a transport-level failure to an indeterminate outcome,
// so the switch above it stays a three-way branch over a closed set.
func (s *Service) callProvider(ctx context.Context, req Request, prv string, amount decimal.Decimal, reference string) provider.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	outcome, err := s.gateway.Purchase(callCtx, provider.PurchaseRequest{
		Reference:   reference,
		ServiceType: req.ServiceType,
		Recipient:   req.Recipient,
		ProductCode: req.ProductCode,
		Amount:      amount,
		Currency:    s.currency,
	})
	if err != nil {
		s.logger.Warn("Provider outcome indeterminate", "reference", reference, "provider", prv, "error", err)
		return provider.Outcome{Status: provider.StatusPending, Message: err.Error()}
	}

	return outcome
}

// afterSettlement fires the side effects that must not block or fail the
// purchase response: cache invalidation and user notification.
func (s *Service) afterSettlement(ctx context.Context, order models.Order, result Result, outcome provider.Outcome) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		s.cache.InvalidateWallet(ctx, order.UserID)
		s.cache.InvalidateTransactions(ctx, order.UserID)

		title := "Purchase successful"
		message := fmt.Sprintf("Your %s purchase of %s %s for %s was successful.", order.ServiceType, s.currency, result.Amount, order.Recipient)
		eventType := "purchase.completed"
		if order.Status != models.OrderStatusCompleted {
			title = "Purchase failed"
			message = fmt.Sprintf("Your %s purchase of %s %s for %s failed. %s %s has been returned to your wallet.", order.ServiceType, s.currency, result.Amount, order.Recipient, s.currency, result.TotalAmount)
			eventType = "purchase.failed"
		}

		data := map[string]string{
			"reference": order.Reference,
			"order_id":  order.ID.String(),
			"status":    order.Status,
		}
		if outcome.Token != "" {
			data["token"] = outcome.Token
		}

		s.notifier.Dispatch(ctx, order.UserID, eventType, models.CategoryTransaction,
			[]string{models.ChannelEmail, models.ChannelSms, models.ChannelPush},
			title, message, data)
	}()
}
