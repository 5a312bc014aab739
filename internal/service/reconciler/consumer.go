package reconciler

import (
	"context"
	"errors"
	"sync"

	"github.com/emeka-o/billvault/internal/apperrors"
	"github.com/emeka-o/billvault/internal/logger"
	"github.com/emeka-o/billvault/internal/models"
	"github.com/emeka-o/billvault/internal/repository"
	"github.com/emeka-o/billvault/internal/service/provider"
)

type consumer struct {
	countWorkers int

	storage repository.Storage
	gateway gateway
	logger  logger.Logger
}

func (c *consumer) consume(ctx context.Context, in <-chan models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Reconciler consumer stopped")
	}()

	return idleStopped
}

func (c *consumer) worker(ctx context.Context, in <-chan models.Order) {
	for {
		select {
		case <-ctx.Done():
			return

		case order, ok := <-in:
			if !ok {
				c.logger.Debug("Reconciler worker stopped, input channel closed")
				return
			}

			c.reconcile(ctx, order)
		}
	}
}

// reconcile requeries one refunded order and settles what it finds:
//
//   - delivered: the customer got the service and the refund, so the charge
//     is re-applied as an ADJUSTMENT debit and the recheck flag cleared
//   - failed: the defensive refund was right, clear the flag
//   - pending or unreachable: leave the flag, the next pass retries
func (c *consumer) reconcile(ctx context.Context, order models.Order) {
	outcome, err := c.gateway.QueryStatus(ctx, order.Reference)
	if err != nil {
		c.logger.Warn("Recheck query failed, will retry", "reference", order.Reference, "error", err)
		return
	}

	switch outcome.Status {
	case provider.StatusDelivered:
		if err := c.reapplyCharge(ctx, order, outcome); err != nil {
			c.logger.Error("Failed to re-apply charge for late-delivered order",
				"reference", order.Reference, "order_id", order.ID, "error", err)
			return
		}
		c.logger.Info("Late provider success reconciled", "reference", order.Reference, "provider_ref", outcome.ProviderRef)

	case provider.StatusFailed:
		if err := c.storage.Order().SetNeedsRecheck(ctx, order.ID, false); err != nil {
			c.logger.Error("Failed to clear recheck flag", "reference", order.Reference, "error", err)
		}

	default:
		c.logger.Debug("Order still pending at provider", "reference", order.Reference)
	}
}

func (c *consumer) reapplyCharge(ctx context.Context, order models.Order, outcome provider.Outcome) error {
	// An earlier pass may have re-applied the charge already and lost the
	// race on clearing the flag. Checking the derived reference up front
	// keeps this branch from tripping over the balance check below.
	_, err := c.storage.Transaction().GetByReference(ctx, order.Reference+"-ADJ")
	switch {
	case err == nil:
		return c.storage.Order().SetNeedsRecheck(ctx, order.ID, false)
	case errors.Is(err, apperrors.ErrTransactionNotFound):
		// not re-applied yet
	default:
		return err
	}

	original, err := c.storage.Transaction().GetByReference(ctx, order.Reference)
	if err != nil {
		return err
	}

	err = c.storage.InTx(ctx, func(st repository.Storage) error {
		// The derived reference keeps a double re-apply impossible even if
		// two reconciler passes race on the same order.
		_, err := st.Wallet().Debit(ctx, order.WalletID, models.Transaction{
			Reference:   order.Reference + "-ADJ",
			Type:        models.TransactionTypeAdjustment,
			Amount:      original.Amount,
			Fee:         original.Fee,
			TotalAmount: original.TotalAmount,
			Status:      models.TransactionStatusCompleted,
			Metadata: map[string]string{
				"original_reference": order.Reference,
				"order_id":           order.ID.String(),
				"provider_ref":       outcome.ProviderRef,
				"reason":             "provider delivered after defensive refund",
			},
		})
		if err != nil {
			return err
		}

		return st.Order().SetNeedsRecheck(ctx, order.ID, false)
	})

	if errors.Is(err, apperrors.ErrReferenceExists) {
		// Another pass already re-applied it; just clear the flag.
		return c.storage.Order().SetNeedsRecheck(ctx, order.ID, false)
	}
	return err
}
