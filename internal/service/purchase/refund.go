package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/service/provider"
)

// settleFailed moves the order to FAILED and credits the refund in one
// transaction: the caller never observes a failed order whose money has not
// come back. A settleFailed error means a debited customer with no
// compensating credit, which is why it escalates to ErrRefundFailed and the
// loudest log line in the engine.
func (s *Service) settleFailed(ctx context.Context, order models.Order, outcome provider.Outcome, needsRecheck bool) error {
	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		if _, err := st.Order().SetOutcome(ctx, order.ID, models.OrderStatusFailed, outcome.ProviderRef, "", outcome.Raw); err != nil {
			return err
		}

		if err := refundOrder(ctx, st, order, outcome.Message); err != nil {
			return err
		}

		if needsRecheck {
			return st.Order().SetNeedsRecheck(ctx, order.ID, true)
		}
		return nil
	})

	if err != nil {
		s.logger.Error("REFUND FAILED: debited customer without compensating credit, manual intervention required",
			"order_id", order.ID,
			"reference", order.Reference,
			"wallet_id", order.WalletID,
			"error", err,
		)
		return fmt.Errorf("%w: order %s: %v", apperrors.ErrRefundFailed, order.Reference, err)
	}

	return nil
}

// Refund compensates an already-failed order. Exposed for administrative
// replays; the purchase path runs the same logic via settleFailed.
func (s *Service) Refund(ctx context.Context, orderID uuid.UUID) (models.Transaction, error) {
	var refund models.Transaction

	order, err := s.storage.Order().GetOrder(ctx, orderID)
	if err != nil {
		return refund, err
	}
	if order.Status != models.OrderStatusFailed {
		return refund, apperrors.ErrOrderSettled
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		if err := refundOrder(ctx, st, order, "administrative refund"); err != nil {
			return err
		}

		var err error
		refund, err = st.Transaction().FindRefundForReference(ctx, order.Reference)
		return err
	})

	return refund, err
}

// refundOrder writes the compensating credit for one failed order.
//
// Idempotency is enforced twice: the lookup below catches a repeat call
// early, and the derived refund reference makes the transactions unique
// index reject a concurrent double-insert that slipped past the lookup.
func refundOrder(ctx context.Context, st repository.Storage, order models.Order, reason string) error {
	_, err := st.Transaction().FindRefundForReference(ctx, order.Reference)
	switch {
	case err == nil:
		return apperrors.ErrAlreadyRefunded
	case errors.Is(err, apperrors.ErrTransactionNotFound):
		// no refund yet, proceed
	default:
		return err
	}

	original, err := st.Transaction().GetByReference(ctx, order.Reference)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"original_reference": order.Reference,
		"order_id":           order.ID.String(),
	}
	if reason != "" {
		metadata["reason"] = reason
	}

	// The refund restores the full total, fee included: a failed purchase
	// costs the customer exactly nothing.
	_, err = st.Wallet().Credit(ctx, order.WalletID, models.Transaction{
		Reference:   order.Reference + "-RF",
		Type:        models.TransactionTypeRefund,
		Amount:      original.Amount,
		Fee:         original.Fee,
		TotalAmount: original.TotalAmount,
		Status:      models.TransactionStatusCompleted,
		Metadata:    metadata,
	})
	if errors.Is(err, apperrors.ErrReferenceExists) {
		return apperrors.ErrAlreadyRefunded
	}
	return err
}
